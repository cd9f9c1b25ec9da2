package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sqldeploy/sqldeploy"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent deploy ledger entries",
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

			records, err := d.History(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to get history: %w", err)
			}

			if len(records) == 0 {
				fmt.Println("No deploys recorded yet")
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Run", "Script", "Outcome", "Batches", "Applied At", "Error"})

			for _, record := range records {
				errText := record.Error
				if len(errText) > 60 {
					errText = errText[:57] + "..."
				}

				table.Append([]string{
					shortRunID(record.RunID),
					record.Script,
					record.Outcome.String(),
					strconv.Itoa(record.BatchesApplied),
					record.AppliedAt.Format("2006-01-02 15:04:05"),
					errText,
				})
			}

			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of ledger entries to show")

	return cmd
}

func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
