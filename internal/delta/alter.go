package delta

import (
	"fmt"

	"github.com/pellucidb/pellucid/internal/schema"
)

// AlterObject changes fields of an existing object. Renames and
// rebases travel as subcommands of an alter.
type AlterObject struct {
	ObjectCommandBase

	// IfExists makes alteration of a missing object a no-op instead
	// of an error.
	IfExists bool
}

func (a *AlterObject) Apply(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	if err := a.validateLegalCommand(ctx); err != nil {
		return nil, err
	}

	o, err := a.resolve(ctx, s)
	if err != nil {
		if a.IfExists {
			return s, nil
		}
		return nil, err
	}
	a.scls = o

	release := ctx.Push(a)
	defer release()

	if s, err = a.alterBegin(ctx, s); err != nil {
		return nil, err
	}
	if s, err = a.alterInnards(ctx, s); err != nil {
		return nil, err
	}
	return a.alterFinalize(ctx, s)
}

// alterBegin applies prerequisites and rename/rebase fragments, then
// the attribute table. Fragments run first so that attribute
// expressions compile against the renamed schema. When a changed field
// is consumed by other objects' expressions, those referrers are
// suspended first and queued for restoration.
func (a *AlterObject) alterBegin(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	s, err := applyPrerequisites(ctx, s, &a.CommandBase)
	if err != nil {
		return nil, err
	}
	for _, cmd := range a.Subcommands(false) {
		if !isAlterFragment(cmd) {
			continue
		}
		if s, err = cmd.Apply(ctx, s); err != nil {
			return nil, err
		}
	}
	if a.scls, err = s.GetByID(a.scls.ID); err != nil {
		return nil, err
	}

	attrs, err := a.resolvedAttributes(ctx, s, a)
	if err != nil {
		return nil, err
	}
	if len(attrs) == 0 {
		return s, nil
	}

	if !ctx.Canonical() && a.changesReferencedShape(attrs) {
		if s, err = propagateExprRefs(ctx, s, a, a.scls); err != nil {
			return nil, err
		}
		// The suspension pass may have replaced the object.
		if a.scls, err = s.GetByID(a.scls.ID); err != nil {
			return nil, err
		}
	}

	if s, err = s.Update(a.scls, attrs); err != nil {
		return nil, err
	}
	a.scls, err = s.GetByID(a.scls.ID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// changesReferencedShape reports whether the pending attribute set
// touches fields that expressions of other objects depend on.
func (a *AlterObject) changesReferencedShape(attrs map[string]any) bool {
	for name := range attrs {
		switch name {
		case "target", "expr", "body", "rtype":
			return true
		}
	}
	return false
}

// alterInnards applies the remaining child commands: attribute setters
// were consumed into the attribute table and fragments already ran in
// the begin phase.
func (a *AlterObject) alterInnards(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	var err error
	for _, cmd := range a.Subcommands(false) {
		if _, ok := cmd.(*SetAttribute); ok {
			continue
		}
		if isAlterFragment(cmd) {
			continue
		}
		if s, err = cmd.Apply(ctx, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// alterFinalize runs the deferred restoration work queued while the
// begin phase suspended referrers of the altered object.
func (a *AlterObject) alterFinalize(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	return finalizeAffectedRefs(ctx, s, a)
}

// isAlterFragment reports whether a subcommand is a rename or rebase
// fragment, which the begin phase applies ahead of the attribute table.
func isAlterFragment(cmd Command) bool {
	switch cmd.(type) {
	case *RenameObject, *RebaseObject:
		return true
	}
	return false
}

func (a *AlterObject) String() string {
	return fmt.Sprintf("<AlterObject %s %s>", a.Kind, a.ClassName)
}
