package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqldeploy/sqldeploy"
)

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <kind> <name>",
		Short: "Create a starter script for a database object",
		Long: `Create a starter script for a database object.

The kind is one of table, view, function, procedure or trigger, and the
name is the object name, optionally schema-qualified (store.v_orders).
The script lands in the kind's subdirectory of the scripts directory.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}

			dialect, err := resolveDialect(cfg)
			if err != nil {
				return err
			}

			path, err := sqldeploy.ScaffoldScript(cfg.ScriptsDir, dialect, sqldeploy.ObjectKind(args[0]), args[1])
			if err != nil {
				return fmt.Errorf("failed to create script: %w", err)
			}

			fmt.Printf("Created script: %s\n", path)
			return nil
		},
	}
}
