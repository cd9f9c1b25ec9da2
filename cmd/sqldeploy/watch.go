package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/sqldeploy/sqldeploy"
)

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Redeploy whenever a script changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer watcher.Close()

			if err := addWatchDirs(watcher, cfg.ScriptsDir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", cfg.ScriptsDir, err)
			}

			fmt.Printf("Watching %s\n", cfg.ScriptsDir)

			if err := deployOnce(cmd.Context(), cfg); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Deploy failed: %v\n", err)
			}

			timer := time.NewTimer(time.Hour)
			if !timer.Stop() {
				<-timer.C
			}

			for {
				select {
				case <-cmd.Context().Done():
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}

					// New kind subdirectories need watching too.
					if event.Op.Has(fsnotify.Create) {
						if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
							_ = watcher.Add(event.Name)
							continue
						}
					}

					if filepath.Ext(event.Name) != ".sql" {
						continue
					}
					if !event.Op.Has(fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename) {
						continue
					}

					timer.Reset(debounce)

				case <-timer.C:
					if err := deployOnce(cmd.Context(), cfg); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "Deploy failed: %v\n", err)
					}

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "Watcher error: %v\n", err)
				}
			}
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "delay before redeploying after a change")

	return cmd
}

// deployOnce builds a fresh deployer so script changes on disk are picked
// up on every cycle.
func deployOnce(ctx context.Context, cfg sqldeploy.Config) error {
	d, err := sqldeploy.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = d.Close()
	}()

	results, err := d.Deploy(ctx)
	printResults(results)
	return err
}

func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
