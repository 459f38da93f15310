package delta

import (
	"fmt"
	"strings"

	"github.com/pellucidb/pellucid/internal/schema"
)

// RenameObject changes an object's name. Canonically the rename
// cascades to owned sub-objects, whose qualified names re-root under
// the new owner, and suspends expressions that reference the old name.
type RenameObject struct {
	ObjectCommandBase

	NewName schema.Name
}

func (r *RenameObject) Apply(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	if err := r.validateLegalCommand(ctx); err != nil {
		return nil, err
	}

	o, err := r.resolve(ctx, s)
	if err != nil {
		return nil, err
	}
	r.scls = o

	release := ctx.Push(r)
	defer release()
	done := ctx.MarkRenaming(o.Name)
	defer done()

	if !ctx.Canonical() && ctx.Once(r, "renamecanon") {
		if s, err = r.canonicalize(ctx, s); err != nil {
			return nil, err
		}
		if r.scls, err = s.GetByID(o.ID); err != nil {
			return nil, err
		}
	}

	if s, err = r.renameBegin(ctx, s); err != nil {
		return nil, err
	}
	if s, err = applyInnards(ctx, s, &r.CommandBase); err != nil {
		return nil, err
	}
	return finalizeAffectedRefs(ctx, s, r)
}

// canonicalize expands the rename: owned sub-objects get cascading
// renames, and expression referrers of the object are suspended until
// the finalize phase recompiles them against the new name.
func (r *RenameObject) canonicalize(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	s, err := propagateExprRefs(ctx, s, r, r.scls)
	if err != nil {
		return nil, err
	}

	if !ctx.EnableRecursion() {
		return s, nil
	}
	prefix := r.scls.Name.String() + "."
	for _, o := range s.Objects(schema.KindAny) {
		if !strings.HasPrefix(o.Name.String(), prefix) {
			continue
		}
		if o.Name.Owner().String() != r.scls.Name.String() {
			continue
		}
		sub := &RenameObject{NewName: o.Name.WithOwner(r.NewName)}
		sub.ClassName = o.Name
		sub.Kind = o.Kind
		sub.Canonical = true
		r.Add(sub)
	}
	return s, nil
}

// renameBegin applies the name change itself and records it for
// reference mapping in the rest of the tree.
func (r *RenameObject) renameBegin(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	old := r.scls.Name
	t := ctx.Current()
	t.SetFlag(FlagRenaming, true)

	s, err := s.Update(r.scls, map[string]any{"name": r.NewName})
	if err != nil {
		return nil, err
	}
	r.scls, err = s.GetByID(r.scls.ID)
	if err != nil {
		return nil, err
	}
	ctx.RecordRename(old, r.NewName)
	return s, nil
}

func (r *RenameObject) String() string {
	return fmt.Sprintf("<RenameObject %s %s -> %s>", r.Kind, r.ClassName, r.NewName)
}
