package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pellucidb/pellucid/pkg/pellucid"
)

// driftCmd compares the schema documents against the applied snapshot.
func driftCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Compare schema documents against the applied snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			result, err := client.CheckDrift()
			if err != nil {
				return err
			}

			if !quiet {
				fmt.Print(pellucid.FormatDriftResult(result))
			}

			if result.HasDrift {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Exit code only, no output")

	return cmd
}
