package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sqldeploy",
		Short: "Database object deployment tool",
		Long:  "sqldeploy deploys idempotent database object scripts to SQL databases",
	}

	cmd.PersistentFlags().StringVar(&flags.dsn, "dsn", "", "database connection string")
	cmd.PersistentFlags().StringVar(&flags.driver, "driver", "", "database/sql driver name (postgres, sqlite)")
	cmd.PersistentFlags().StringVar(&flags.dialect, "dialect", "", "SQL dialect (postgres, sqlite, mssql)")
	cmd.PersistentFlags().StringVar(&flags.scriptsDir, "scripts", "", "directory holding object scripts")
	cmd.PersistentFlags().StringVar(&flags.separator, "separator", "", "batch separator line override")
	cmd.PersistentFlags().StringVar(&flags.historyTable, "history-table", "", "deploy history table name")
	cmd.PersistentFlags().DurationVar(&flags.batchTimeout, "batch-timeout", 0, "per-batch execution timeout")
	cmd.PersistentFlags().IntVar(&flags.maxPasses, "max-passes", 0, "maximum deploy passes over failing scripts")
	cmd.PersistentFlags().BoolVar(&flags.noHistory, "no-history", false, "skip the deploy history ledger")
	cmd.PersistentFlags().StringArrayVar(&flags.vars, "var", nil, "scripting variable as KEY=VALUE (repeatable)")

	cmd.AddCommand(newDeployCmd())
	cmd.AddCommand(newDropCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}
