package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sqldeploy/sqldeploy"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which objects exist and when they were deployed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}

			d, err := sqldeploy.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to create deployer: %w", err)
			}
			defer func() {
				_ = d.Close()
			}()

			statuses, err := d.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Script", "Object", "Kind", "Exists", "Last Applied", "Changed"})

			for _, status := range statuses {
				exists := "no"
				if status.Exists {
					exists = "yes"
				}

				lastApplied := "-"
				if status.LastApplied != nil {
					lastApplied = status.LastApplied.Format("2006-01-02 15:04:05")
				}

				changed := ""
				if status.LastChecksum != "" && status.LastChecksum != status.Checksum {
					changed = "yes"
				}

				kind := string(status.CatalogKind)
				if kind == "" {
					kind = string(status.Object.Kind)
				}

				table.Append([]string{
					status.Script,
					status.Object.String(),
					kind,
					exists,
					lastApplied,
					changed,
				})
			}

			table.Render()
			return nil
		},
	}
}
