package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pellucidb/pellucid/internal/cli"
)

// snapshotCmd exports or imports the head snapshot.
func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import the applied snapshot",
	}

	cmd.AddCommand(snapshotExportCmd(), snapshotImportCmd())
	return cmd
}

func snapshotExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the applied snapshot to a snapshot document",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.ExportSnapshot(out); err != nil {
				return err
			}
			fmt.Print(cli.FormatSuccess("snapshot written to " + out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "snapshot.yaml", "Output file path")
	return cmd
}

func snapshotImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the applied snapshot with a snapshot document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.ImportSnapshot(args[0]); err != nil {
				return err
			}
			fmt.Print(cli.FormatSuccess("snapshot imported from " + args[0]))
			return nil
		},
	}
}
