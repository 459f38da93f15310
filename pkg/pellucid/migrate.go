package pellucid

import (
	"fmt"
	"strings"

	"github.com/pellucidb/pellucid/internal/delta"
	"github.com/pellucidb/pellucid/internal/schema"
)

// Plan is an ordered migration command tree taking the current snapshot
// to the target snapshot. Plans are produced by Client.Plan and applied
// with Client.Apply.
type Plan struct {
	root    *delta.DeltaRoot
	current *schema.Schema
	target  *schema.Schema
}

// Statement describes one top-level command of a plan.
type Statement struct {
	// Op is the command verb: create, alter, drop, rename, or rebase.
	Op string

	// Kind is the object kind the command addresses.
	Kind string

	// Name is the fully qualified object name.
	Name string

	// Detail carries verb-specific extra information, such as the new
	// name of a rename.
	Detail string
}

// Summary counts the top-level commands of a plan by verb.
type Summary struct {
	Creates int
	Alters  int
	Deletes int
}

// Plan computes the migration plan from the last applied snapshot to
// the schema documents on disk.
func (c *Client) Plan(opts ...PlanOption) (*Plan, error) {
	current, err := c.CurrentSchema()
	if err != nil {
		return nil, err
	}
	target, err := c.TargetSchema()
	if err != nil {
		return nil, err
	}
	return c.PlanBetween(current, target, opts...)
}

// PlanBetween computes the migration plan between two explicit snapshots.
func (c *Client) PlanBetween(current, target *schema.Schema, opts ...PlanOption) (*Plan, error) {
	cfg := applyPlanOptions(opts)

	root, err := delta.DiffSchemas(current, target, guidanceFrom(cfg))
	if err != nil {
		return nil, err
	}

	c.log("planned %d commands", len(root.Subcommands(true)))
	return &Plan{root: root, current: current, target: target}, nil
}

// guidanceFrom converts plan options into differ guidance.
func guidanceFrom(cfg *PlanConfig) *delta.Guidance {
	if len(cfg.BanCreations) == 0 && len(cfg.BanDeletions) == 0 && len(cfg.BanAlters) == 0 {
		return nil
	}
	g := &delta.Guidance{
		BannedCreations: map[string]bool{},
		BannedDeletions: map[string]bool{},
		BannedAlters:    map[[2]string]bool{},
	}
	for _, n := range cfg.BanCreations {
		g.BannedCreations[n] = true
	}
	for _, n := range cfg.BanDeletions {
		g.BannedDeletions[n] = true
	}
	for _, pair := range cfg.BanAlters {
		g.BannedAlters[pair] = true
	}
	return g
}

// IsEmpty reports whether the plan contains no commands.
func (p *Plan) IsEmpty() bool {
	return p == nil || !p.root.HasSubcommands()
}

// Statements returns the top-level commands of the plan in application
// order.
func (p *Plan) Statements() []Statement {
	if p == nil {
		return nil
	}
	var out []Statement
	for _, cmd := range p.root.Subcommands(true) {
		if st, ok := describeCommand(cmd); ok {
			out = append(out, st)
		}
	}
	return out
}

// describeCommand converts one command into its statement form.
func describeCommand(cmd delta.Command) (Statement, bool) {
	switch v := cmd.(type) {
	case *delta.CreateObject:
		return Statement{Op: "create", Kind: v.Kind.String(), Name: v.ClassName.String()}, true
	case *delta.AlterObject:
		st := Statement{Op: "alter", Kind: v.Kind.String(), Name: v.ClassName.String()}
		if rename := renameIn(v); rename != "" {
			st.Detail = "renames to " + rename
		}
		return st, true
	case *delta.DeleteObject:
		return Statement{Op: "drop", Kind: v.Kind.String(), Name: v.ClassName.String()}, true
	case *delta.RenameObject:
		return Statement{
			Op:     "rename",
			Kind:   v.Kind.String(),
			Name:   v.ClassName.String(),
			Detail: "to " + v.NewName.String(),
		}, true
	case *delta.RebaseObject:
		return Statement{Op: "rebase", Kind: v.Kind.String(), Name: v.ClassName.String()}, true
	}
	return Statement{}, false
}

// renameIn finds the new name set by a nested rename, if any.
func renameIn(cmd delta.Command) string {
	for _, r := range delta.SubcommandsOf[*delta.RenameObject](cmd) {
		return r.NewName.String()
	}
	return ""
}

// Summarize counts the plan's top-level commands by verb. Renames and
// rebases count as alters.
func (p *Plan) Summarize() Summary {
	var s Summary
	for _, st := range p.Statements() {
		switch st.Op {
		case "create":
			s.Creates++
		case "drop":
			s.Deletes++
		default:
			s.Alters++
		}
	}
	return s
}

// String renders the full command tree for display and debugging.
func (p *Plan) String() string {
	if p.IsEmpty() {
		return "(no changes)"
	}
	var b strings.Builder
	for _, cmd := range p.root.Subcommands(true) {
		writeTree(&b, cmd, 0)
	}
	return b.String()
}

// subcommander matches every command type; the method is promoted from
// the shared command base.
type subcommander interface {
	Subcommands(includePrereqs bool) []delta.Command
}

func writeTree(b *strings.Builder, cmd delta.Command, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(cmd.String())
	b.WriteString("\n")
	sc, ok := cmd.(subcommander)
	if !ok {
		return
	}
	for _, sub := range sc.Subcommands(true) {
		writeTree(b, sub, depth+1)
	}
}

// Apply executes a plan against the current snapshot and stores the
// result as the new head snapshot.
func (c *Client) Apply(plan *Plan) error {
	if plan.IsEmpty() {
		return nil
	}

	// Application expands canonical side effects into the tree itself;
	// run against a copy so the plan stays inspectable and reusable.
	root := delta.CopyTree(plan.root).(*delta.DeltaRoot)
	next, err := root.Apply(delta.NewContext(), plan.current)
	if err != nil {
		return &PlanError{Cause: err}
	}

	if err := c.saveHead(next); err != nil {
		return err
	}

	s := plan.Summarize()
	c.log("applied plan: %d created, %d altered, %d dropped", s.Creates, s.Alters, s.Deletes)
	return nil
}

// Migrate plans and applies in one step, returning the applied plan.
func (c *Client) Migrate(opts ...PlanOption) (*Plan, error) {
	plan, err := c.Plan(opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Apply(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// ApplyDocument compiles a single DDL document against the current
// snapshot and applies it directly, bypassing the differ. Used for
// imperative one-off changes.
func (c *Client) ApplyDocument(path string) error {
	current, err := c.CurrentSchema()
	if err != nil {
		return err
	}

	doc, err := c.parseDocument(path)
	if err != nil {
		return err
	}

	root, err := delta.CompileDDL(current, doc)
	if err != nil {
		return err
	}

	next, err := root.Apply(delta.NewContext(), current)
	if err != nil {
		return &PlanError{Cause: err}
	}

	return c.saveHead(next)
}

// Ensure Statement formats consistently in logs.
func (s Statement) String() string {
	if s.Detail != "" {
		return fmt.Sprintf("%s %s %s (%s)", s.Op, s.Kind, s.Name, s.Detail)
	}
	return fmt.Sprintf("%s %s %s", s.Op, s.Kind, s.Name)
}
