package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/pellucidb/pellucid/internal/cli"
)

// watchCmd re-plans whenever a schema document changes.
func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-plan on every schema document change",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("file watcher failed: %w", err)
			}
			defer watcher.Close()

			// Watch the schema directory recursively.
			filepath.Walk(cfg.SchemaDir, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return nil
				}
				if info.IsDir() {
					watcher.Add(path)
				}
				return nil
			})

			fmt.Printf("Watching %s for changes. Press Ctrl+C to stop.\n\n", cfg.SchemaDir)
			replan()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

			// Debounce: editors fire several events per save.
			var pending *time.Timer
			fire := make(chan struct{}, 1)

			for {
				select {
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
						continue
					}
					if pending != nil {
						pending.Stop()
					}
					pending = time.AfterFunc(250*time.Millisecond, func() {
						select {
						case fire <- struct{}{}:
						default:
						}
					})
				case <-fire:
					replan()
				case _, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
				case <-sig:
					fmt.Println()
					return nil
				}
			}
		},
	}
}

// replan computes and prints the current plan, reporting errors
// without exiting the watch loop.
func replan() {
	progress := cli.NewPlanProgress()
	progress.Phase("compiling schema documents")

	client, err := newClient()
	if err != nil {
		progress.Fail("planning failed")
		fmt.Fprint(os.Stderr, cli.FormatError(err))
		return
	}
	defer client.Close()

	progress.Phase("diffing against snapshot")
	plan, err := client.Plan()
	if err != nil {
		progress.Fail("planning failed")
		fmt.Fprint(os.Stderr, cli.FormatError(err))
		return
	}

	progress.Clear()
	fmt.Printf("--- %s ---\n", time.Now().Format("15:04:05"))
	printPlan(plan, false)
	fmt.Println()
}
