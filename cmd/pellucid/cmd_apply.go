package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pellucidb/pellucid/internal/cli"
)

// applyCmd plans and applies, storing the new snapshot.
func applyCmd() *cobra.Command {
	var file string
	var banCreate, banDelete []string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the migration plan and store the new snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			// Imperative mode: apply a single document directly.
			if file != "" {
				if err := client.ApplyDocument(file); err != nil {
					return err
				}
				fmt.Print(cli.FormatSuccess("applied " + file))
				return nil
			}

			plan, err := client.Plan(planOptions(banCreate, banDelete)...)
			if err != nil {
				return err
			}

			if plan.IsEmpty() {
				fmt.Println("No changes detected.")
				return nil
			}

			printPlan(plan, false)
			fmt.Println()

			if err := client.Apply(plan); err != nil {
				return err
			}

			s := plan.Summarize()
			fmt.Print(cli.FormatSuccess(fmt.Sprintf(
				"applied %s", cli.FormatCount(s.Creates+s.Alters+s.Deletes, "change", "changes"))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Apply a single DDL document directly")
	cmd.Flags().StringArrayVar(&banCreate, "ban-create", nil, "Forbid creating the named object")
	cmd.Flags().StringArrayVar(&banDelete, "ban-delete", nil, "Forbid deleting the named object")

	return cmd
}
