package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pellucidb/pellucid/internal/cli"
	"github.com/pellucidb/pellucid/pkg/pellucid"
)

// planCmd shows the migration plan without applying it.
func planCmd() *cobra.Command {
	var full bool
	var banCreate, banDelete []string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the migration plan from the snapshot to the schema documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			plan, err := client.Plan(planOptions(banCreate, banDelete)...)
			if err != nil {
				return err
			}

			printPlan(plan, full)
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Show the full command tree")
	cmd.Flags().StringArrayVar(&banCreate, "ban-create", nil, "Forbid creating the named object")
	cmd.Flags().StringArrayVar(&banDelete, "ban-delete", nil, "Forbid deleting the named object")

	return cmd
}

// planOptions converts ban flags into plan options.
func planOptions(banCreate, banDelete []string) []pellucid.PlanOption {
	var opts []pellucid.PlanOption
	for _, name := range banCreate {
		opts = append(opts, pellucid.BanCreation(name))
	}
	for _, name := range banDelete {
		opts = append(opts, pellucid.BanDeletion(name))
	}
	return opts
}

// printPlan renders a plan as a marker list, or as the full command
// tree when requested.
func printPlan(plan *pellucid.Plan, full bool) {
	if plan.IsEmpty() {
		fmt.Println("No changes detected.")
		return
	}

	if full {
		fmt.Print(plan.String())
		return
	}

	list := cli.NewList()
	for _, st := range plan.Statements() {
		line := fmt.Sprintf("%s %s", st.Kind, st.Name)
		if st.Detail != "" {
			line += " " + cli.Dim("("+st.Detail+")")
		}
		switch st.Op {
		case "create":
			list.AddCreate(line)
		case "drop":
			list.AddDelete(line)
		default:
			list.AddAlter(line)
		}
	}

	s := plan.Summarize()
	fmt.Printf("Plan: %s to create, %s to alter, %s to drop\n",
		cli.Created(fmt.Sprintf("%d", s.Creates)),
		cli.Altered(fmt.Sprintf("%d", s.Alters)),
		cli.Deleted(fmt.Sprintf("%d", s.Deletes)))
	fmt.Println()
	fmt.Print(list.String())
}
