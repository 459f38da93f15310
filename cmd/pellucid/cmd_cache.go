package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pellucidb/pellucid/internal/cli"
	"github.com/pellucidb/pellucid/pkg/pellucid"
)

// cacheCmd inspects or clears the snapshot cache.
func cacheCmd() *cobra.Command {
	var clear, remove bool

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the snapshot cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// Remove mode deletes the whole cache directory.
			if remove {
				if err := pellucid.RemoveCache(cfg.ProjectRoot); err != nil {
					return err
				}
				fmt.Println("Cache removed.")
				return nil
			}

			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if clear {
				if err := client.ClearCache(); err != nil {
					return err
				}
				fmt.Println("Cache cleared.")
				return nil
			}

			stats, err := client.CacheStats()
			if err != nil {
				return fmt.Errorf("failed to get cache stats: %w", err)
			}

			table := cli.NewTable("key", "value")
			table.AddRow("cache path", client.CachePath())
			table.AddRow("snapshots", fmt.Sprintf("%d", stats.Snapshots))
			table.AddRow("fingerprints", fmt.Sprintf("%d", stats.Fingerprints))
			table.AddRow("database size", fmt.Sprintf("%d bytes", stats.DatabaseSize))
			fmt.Print(table.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Clear all snapshots and fingerprints")
	cmd.Flags().BoolVar(&remove, "remove", false, "Delete the cache directory")

	return cmd
}
