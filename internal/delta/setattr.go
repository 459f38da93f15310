package delta

import (
	"fmt"

	"github.com/pellucidb/pellucid/internal/schema"
	"github.com/pellucidb/pellucid/internal/serr"
)

// SetAttribute assigns one attribute of the object addressed by the
// enclosing object command. Inside create and alter trees the setter
// is consumed into the attribute table during the begin phase; Apply
// only runs for setters applied out of band.
type SetAttribute struct {
	CommandBase

	Name  string
	Value any

	// OldValue records the attribute's previous value when known,
	// for inversion and review output.
	OldValue    any
	HasOldValue bool

	// Source records where the value came from. Empty means an
	// explicit assignment; SourceInheritance marks values merged down
	// from base objects.
	Source string
}

// SourceInheritance marks attribute values that were inherited rather
// than written in the schema.
const SourceInheritance = "inheritance"

func (sa *SetAttribute) Apply(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	oc, _, ok := TokenFor[ObjectCommand](ctx)
	if !ok {
		return nil, serr.New(serr.ErrInternal, "attribute setter applied outside of an object command").
			With("attribute", sa.Name)
	}
	b := oc.objectBase()

	v, err := b.resolveAttr(ctx, s, sa.Name, sa.Value)
	if err != nil {
		return nil, err
	}
	o, err := b.resolve(ctx, s)
	if err != nil {
		return nil, err
	}
	return s.Update(o, map[string]any{sa.Name: v})
}

func (sa *SetAttribute) String() string {
	return fmt.Sprintf("<SetAttribute %s := %v>", sa.Name, sa.Value)
}

// RebaseObject replaces the base list of an inheriting object.
type RebaseObject struct {
	ObjectCommandBase

	NewBases []schema.Name
}

func (r *RebaseObject) Apply(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	if err := r.validateLegalCommand(ctx); err != nil {
		return nil, err
	}
	if !r.Kind.Inheriting() {
		return nil, serr.New(serr.ErrDefinition, "object kind does not support inheritance").
			With("kind", r.Kind.String()).
			With("name", r.ClassName.String())
	}

	o, err := r.resolve(ctx, s)
	if err != nil {
		return nil, err
	}
	r.scls = o

	release := ctx.Push(r)
	defer release()

	bases := make([]schema.Name, len(r.NewBases))
	for i, b := range r.NewBases {
		bases[i] = ctx.RenameOf(b)
		if !ctx.TestMode && !s.Has(r.Kind, bases[i]) {
			return nil, serr.New(serr.ErrObjectNotFound, "base object does not exist").
				With("base", bases[i].String()).
				With("name", r.ClassName.String())
		}
	}
	if s, err = s.Update(o, map[string]any{"bases": bases}); err != nil {
		return nil, err
	}
	r.scls, err = s.GetByID(o.ID)
	if err != nil {
		return nil, err
	}
	return applyInnards(ctx, s, &r.CommandBase)
}

func (r *RebaseObject) String() string {
	return fmt.Sprintf("<RebaseObject %s %s>", r.Kind, r.ClassName)
}
