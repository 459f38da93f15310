package delta

import (
	"fmt"
	"strings"

	"github.com/pellucidb/pellucid/internal/schema"
)

// Command is one node of a schema change tree. Prerequisites apply
// before the command's own work; subcommands apply inside it.
type Command interface {
	// base exposes the shared tree state. Keeping it unexported
	// closes the hierarchy to this package.
	base() *CommandBase

	// Apply executes the command against a snapshot and returns the
	// resulting snapshot.
	Apply(ctx *Context, s *schema.Schema) (*schema.Schema, error)

	fmt.Stringer
}

// group marks commands whose children are spliced into the parent on
// Add instead of nesting.
type group interface {
	Command
	isGroup()
}

// CommandBase carries the tree linkage shared by every command.
type CommandBase struct {
	beforeOps []Command
	ops       []Command

	// attrs indexes the live attribute setter per attribute name.
	// It is maintained in lockstep with ops.
	attrs map[string]*SetAttribute

	// Canonical marks trees that have been fully expanded: every
	// implied side effect is already present as an explicit
	// subcommand, so Apply performs no further expansion.
	Canonical bool

	// Annotations carries free-form values attached by planners.
	Annotations map[string]any
}

func (b *CommandBase) base() *CommandBase { return b }

// Add appends a subcommand. Groups are spliced: their children are
// added directly and the group itself is dropped. Adding an attribute
// setter displaces any previous live setter for the same attribute.
func (b *CommandBase) Add(cmd Command) {
	if cmd == nil {
		return
	}
	if g, ok := cmd.(group); ok {
		for _, sub := range g.base().Subcommands(true) {
			b.Add(sub)
		}
		return
	}
	if sa, ok := cmd.(*SetAttribute); ok {
		b.registerAttr(sa)
	}
	b.ops = append(b.ops, cmd)
}

// AddPrerequisite appends a command to the prerequisite list, which
// applies before the command's own changes.
func (b *CommandBase) AddPrerequisite(cmd Command) {
	if cmd == nil {
		return
	}
	if g, ok := cmd.(group); ok {
		for _, sub := range g.base().Subcommands(true) {
			b.AddPrerequisite(sub)
		}
		return
	}
	if sa, ok := cmd.(*SetAttribute); ok {
		b.registerAttr(sa)
	}
	b.beforeOps = append(b.beforeOps, cmd)
}

// Prepend inserts a subcommand at the front of the main list.
func (b *CommandBase) Prepend(cmd Command) {
	if cmd == nil {
		return
	}
	if g, ok := cmd.(group); ok {
		subs := g.base().Subcommands(true)
		for i := len(subs) - 1; i >= 0; i-- {
			b.Prepend(subs[i])
		}
		return
	}
	if sa, ok := cmd.(*SetAttribute); ok {
		b.registerAttr(sa)
	}
	b.ops = append([]Command{cmd}, b.ops...)
}

// AddAll appends a sequence of subcommands in order.
func (b *CommandBase) AddAll(cmds ...Command) {
	for _, cmd := range cmds {
		b.Add(cmd)
	}
}

// registerAttr records sa as the live setter for its attribute,
// removing any displaced setter from both lists.
func (b *CommandBase) registerAttr(sa *SetAttribute) {
	if b.attrs == nil {
		b.attrs = map[string]*SetAttribute{}
	}
	if prev, ok := b.attrs[sa.Name]; ok && prev != sa {
		b.remove(prev)
	}
	b.attrs[sa.Name] = sa
}

func (b *CommandBase) remove(cmd Command) bool {
	for i, c := range b.beforeOps {
		if c == cmd {
			b.beforeOps = append(b.beforeOps[:i], b.beforeOps[i+1:]...)
			return true
		}
	}
	for i, c := range b.ops {
		if c == cmd {
			b.ops = append(b.ops[:i], b.ops[i+1:]...)
			return true
		}
	}
	return false
}

// Discard removes a subcommand from whichever list holds it. Removing
// a live attribute setter clears its table entry.
func (b *CommandBase) Discard(cmd Command) {
	if !b.remove(cmd) {
		return
	}
	if sa, ok := cmd.(*SetAttribute); ok {
		if b.attrs[sa.Name] == sa {
			delete(b.attrs, sa.Name)
		}
	}
}

// ReplaceAll substitutes the entire subcommand tree, prerequisites
// included, with the given commands. The attribute table is rebuilt
// from scratch so displaced setters drop out.
func (b *CommandBase) ReplaceAll(cmds ...Command) {
	b.beforeOps = nil
	b.ops = nil
	b.attrs = nil
	for _, cmd := range cmds {
		b.Add(cmd)
	}
}

// Replace swaps an existing subcommand for another in place, returning
// false when the existing command is not in the tree.
func (b *CommandBase) Replace(existing, with Command) bool {
	lists := [][]Command{b.beforeOps, b.ops}
	for _, list := range lists {
		for i, c := range list {
			if c != existing {
				continue
			}
			if sa, ok := existing.(*SetAttribute); ok && b.attrs[sa.Name] == sa {
				delete(b.attrs, sa.Name)
			}
			if sa, ok := with.(*SetAttribute); ok {
				b.registerAttr(sa)
			}
			list[i] = with
			return true
		}
	}
	return false
}

// Subcommands returns the child commands in application order:
// prerequisites first when includePrereqs is set, then the main list.
func (b *CommandBase) Subcommands(includePrereqs bool) []Command {
	var out []Command
	if includePrereqs {
		out = append(out, b.beforeOps...)
	}
	return append(out, b.ops...)
}

// HasSubcommands reports whether any child commands exist.
func (b *CommandBase) HasSubcommands() bool {
	return len(b.beforeOps) > 0 || len(b.ops) > 0
}

// Prerequisites returns only the prerequisite list.
func (b *CommandBase) Prerequisites() []Command {
	return b.beforeOps
}

// AttributeCmd returns the live setter for an attribute, or nil.
func (b *CommandBase) AttributeCmd(name string) *SetAttribute {
	return b.attrs[name]
}

// AttributeValue returns the value the live setter assigns to an
// attribute, or nil when no setter exists.
func (b *CommandBase) AttributeValue(name string) any {
	if sa, ok := b.attrs[name]; ok {
		return sa.Value
	}
	return nil
}

// HasAttribute reports whether an attribute has a live setter.
func (b *CommandBase) HasAttribute(name string) bool {
	_, ok := b.attrs[name]
	return ok
}

// SetAttributeValue installs or updates the setter for an attribute
// and returns it.
func (b *CommandBase) SetAttributeValue(name string, value any) *SetAttribute {
	if sa, ok := b.attrs[name]; ok {
		sa.Value = value
		return sa
	}
	sa := &SetAttribute{Name: name, Value: value}
	b.Add(sa)
	return sa
}

// DiscardAttribute removes the live setter for an attribute.
func (b *CommandBase) DiscardAttribute(name string) {
	if sa, ok := b.attrs[name]; ok {
		b.Discard(sa)
	}
}

// LocalAttributeValue returns the value explicitly assigned to an
// attribute, ignoring setters merged down from inheritance.
func (b *CommandBase) LocalAttributeValue(name string) any {
	if sa, ok := b.attrs[name]; ok && sa.Source != SourceInheritance {
		return sa.Value
	}
	return nil
}

// NonattrSubcommandCount counts child commands that are not attribute
// setters.
func (b *CommandBase) NonattrSubcommandCount() int {
	n := 0
	for _, cmd := range b.Subcommands(true) {
		if _, ok := cmd.(*SetAttribute); !ok {
			n++
		}
	}
	return n
}

// SetAnnotation attaches a planner value to the command.
func (b *CommandBase) SetAnnotation(name string, value any) {
	if b.Annotations == nil {
		b.Annotations = map[string]any{}
	}
	b.Annotations[name] = value
}

// Annotation reads a planner value off the command.
func (b *CommandBase) Annotation(name string) any {
	return b.Annotations[name]
}

// applySubcommands runs prerequisites then subcommands against a
// snapshot under the given context.
func applySubcommands(ctx *Context, s *schema.Schema, b *CommandBase) (*schema.Schema, error) {
	var err error
	for _, cmd := range b.beforeOps {
		if s, err = cmd.Apply(ctx, s); err != nil {
			return nil, err
		}
	}
	for _, cmd := range b.ops {
		if s, err = cmd.Apply(ctx, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// CommandGroup is a plain container. Its children splice into any
// command it is added to.
type CommandGroup struct {
	CommandBase
}

func (g *CommandGroup) isGroup() {}

func (g *CommandGroup) Apply(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	return applySubcommands(ctx, s, &g.CommandBase)
}

func (g *CommandGroup) String() string {
	return fmt.Sprintf("<CommandGroup [%d]>", len(g.Subcommands(true)))
}

// DeltaRoot is the root of a migration command tree.
type DeltaRoot struct {
	CommandBase

	// ModAliases carries the module alias table of the document the
	// tree was compiled from, scoped to the tree via the context.
	ModAliases map[string]string
}

func (r *DeltaRoot) isGroup() {}

// Apply executes the whole tree. Module commands run first so that
// later commands can resolve names in freshly created modules.
func (r *DeltaRoot) Apply(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	release := ctx.Push(r)
	defer release()
	ctx.Current().ModAliases = r.ModAliases

	var rest []Command
	var err error
	for _, cmd := range r.Subcommands(true) {
		oc, ok := commandObject(cmd)
		if ok && oc.Kind == schema.KindModule {
			if s, err = cmd.Apply(ctx, s); err != nil {
				return nil, err
			}
			continue
		}
		rest = append(rest, cmd)
	}
	for _, cmd := range rest {
		if s, err = cmd.Apply(ctx, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (r *DeltaRoot) String() string {
	return fmt.Sprintf("<DeltaRoot [%d]>", len(r.Subcommands(true)))
}

// SubcommandsOf returns the child commands of one concrete type,
// prerequisites included, in application order.
func SubcommandsOf[T Command](cmd Command) []T {
	var out []T
	for _, sub := range cmd.base().Subcommands(true) {
		if t, ok := sub.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// SubcommandsForKind returns the object subcommands addressing a given
// object kind.
func SubcommandsForKind(cmd Command, kind schema.Kind) []ObjectCommand {
	var out []ObjectCommand
	for _, sub := range cmd.base().Subcommands(true) {
		if oc, ok := sub.(ObjectCommand); ok && oc.objectBase().Kind == kind {
			out = append(out, oc)
		}
	}
	return out
}

// CopyTree returns a deep copy of a command tree. Applying a tree
// resolves objects and expands canonical subcommands in place; copy
// first when the tree must stay reusable.
func CopyTree(cmd Command) Command {
	dup := shallowCopy(cmd)
	src, dst := cmd.base(), dup.base()
	dst.beforeOps = nil
	dst.ops = nil
	dst.attrs = nil
	if src.Annotations != nil {
		dst.Annotations = make(map[string]any, len(src.Annotations))
		for k, v := range src.Annotations {
			dst.Annotations[k] = v
		}
	}
	for _, c := range src.beforeOps {
		dst.AddPrerequisite(CopyTree(c))
	}
	for _, c := range src.ops {
		dst.Add(CopyTree(c))
	}
	return dup
}

// shallowCopy duplicates one command node. The hierarchy is closed, so
// an unknown type here is a programming error.
func shallowCopy(cmd Command) Command {
	switch v := cmd.(type) {
	case *CreateObject:
		dup := *v
		return &dup
	case *AlterObject:
		dup := *v
		return &dup
	case *DeleteObject:
		dup := *v
		return &dup
	case *RenameObject:
		dup := *v
		return &dup
	case *RebaseObject:
		dup := *v
		return &dup
	case *SetAttribute:
		dup := *v
		return &dup
	case *CommandGroup:
		dup := *v
		return &dup
	case *DeltaRoot:
		dup := *v
		return &dup
	}
	panic(fmt.Sprintf("delta: cannot copy unknown command type %T", cmd))
}

// dumpTree renders a command tree for debugging and error reports.
func dumpTree(cmd Command, indent int) string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("  ", indent))
	sb.WriteString(cmd.String())
	sb.WriteString("\n")
	for _, sub := range cmd.base().Subcommands(true) {
		sb.WriteString(dumpTree(sub, indent+1))
	}
	return sb.String()
}
