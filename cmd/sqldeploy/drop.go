package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sqldeploy/sqldeploy"
)

func newDropCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop every object the scripts deploy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}

			if !yes {
				fmt.Fprint(cmd.OutOrStdout(), "Drop all deployed objects? [y/N]: ")

				reader := bufio.NewReader(cmd.InOrStdin())
				line, _ := reader.ReadString('\n')

				answer := strings.ToLower(strings.TrimSpace(line))
				if answer != "y" && answer != "yes" {
					fmt.Println("Aborted")
					return nil
				}
			}

			d, err := sqldeploy.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to create deployer: %w", err)
			}
			defer func() {
				_ = d.Close()
			}()

			results, err := d.Drop(cmd.Context())
			printResults(results)
			if err != nil {
				return fmt.Errorf("drop failed: %w", err)
			}

			fmt.Println("All objects dropped")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}
