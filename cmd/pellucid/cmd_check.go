package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pellucidb/pellucid/internal/cli"
)

// checkCmd compiles the schema documents and reports problems.
func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compile schema documents and report problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newCachelessClient()
			if err != nil {
				return err
			}
			defer client.Close()

			target, err := client.TargetSchema()
			if err != nil {
				return err
			}

			fp, err := target.Fingerprint()
			if err != nil {
				return err
			}

			fmt.Print(cli.FormatSuccess(
				fmt.Sprintf("schema compiles cleanly: %s",
					cli.FormatCount(len(fp.Objects), "object", "objects"))))
			return nil
		},
	}
}
