package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sqldeploy/sqldeploy"
)

func newDeployCmd() *cobra.Command {
	var txn string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy all object scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}

			if dryRun {
				return printPlan(cfg)
			}

			d, err := sqldeploy.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to create deployer: %w", err)
			}
			defer func() {
				_ = d.Close()
			}()

			var results []sqldeploy.ApplyResult
			switch txn {
			case "":
				results, err = d.Deploy(cmd.Context())
			case "per-script":
				results, err = d.Run(cmd.Context(), sqldeploy.TxnPerScript)
			case "all":
				results, err = d.Run(cmd.Context(), sqldeploy.TxnAllOrNothing)
			default:
				return fmt.Errorf("unknown transaction mode %q (use per-script or all)", txn)
			}

			printResults(results)
			if err != nil {
				return fmt.Errorf("deploy failed: %w", err)
			}

			fmt.Println("All scripts applied successfully")
			return nil
		},
	}

	cmd.Flags().StringVar(&txn, "txn", "", "transaction mode: per-script or all (default retries failures in passes)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print scripts and their batches without executing anything")

	return cmd
}

func printResults(results []sqldeploy.ApplyResult) {
	for _, result := range results {
		switch result.Outcome {
		case sqldeploy.OutcomeApplied:
			fmt.Printf("applied  %s (%d batches)\n", result.Script, result.BatchesApplied)
		case sqldeploy.OutcomeFailed:
			fmt.Printf("failed   %s: %v\n", result.Script, result.Err)
		case sqldeploy.OutcomeSkipped:
			fmt.Printf("skipped  %s\n", result.Script)
		default:
			fmt.Printf("pending  %s\n", result.Script)
		}
	}
}

func printPlan(cfg sqldeploy.Config) error {
	dialect, err := resolveDialect(cfg)
	if err != nil {
		return err
	}

	scripts, err := sqldeploy.LoadScripts(os.DirFS(cfg.ScriptsDir), ".")
	if err != nil {
		return fmt.Errorf("failed to load scripts: %w", err)
	}

	for _, script := range scripts {
		batches := dialect.SplitBatches(sqldeploy.InsertVariables(script.SQL, cfg.Variables))

		target := ""
		if !script.Object.IsZero() {
			target = fmt.Sprintf(" -> %s %s", script.Object.Kind, script.Object.String())
		}
		fmt.Printf("%s (%d batches)%s\n", script.Name, len(batches), target)
	}

	fmt.Printf("%d scripts\n", len(scripts))
	return nil
}
