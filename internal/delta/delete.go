package delta

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pellucidb/pellucid/internal/schema"
)

// DeleteObject removes an object and, canonically, everything the
// object owns.
type DeleteObject struct {
	ObjectCommandBase

	// IfUnused turns the delete into a no-op while anything still
	// refers to the object.
	IfUnused bool

	// IfExists makes deletion of a missing object a no-op instead of
	// an error.
	IfExists bool
}

func (d *DeleteObject) Apply(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	if err := d.validateLegalCommand(ctx); err != nil {
		return nil, err
	}

	o, err := d.resolve(ctx, s)
	if err != nil {
		if d.IfExists {
			return s, nil
		}
		return nil, err
	}
	d.scls = o

	release := ctx.Push(d)
	defer release()

	if d.IfUnused && d.hasReferrers(ctx, s, o) {
		discardFromParent(ctx, d)
		return s, nil
	}

	if !ctx.Canonical() && ctx.Once(d, "delcanon") {
		if s, err = d.canonicalize(ctx, s); err != nil {
			return nil, err
		}
		if d.scls, err = s.GetByID(o.ID); err != nil {
			return nil, err
		}
	}

	if s, err = d.deleteBegin(ctx, s); err != nil {
		return nil, err
	}
	if s, err = applyInnards(ctx, s, &d.CommandBase); err != nil {
		return nil, err
	}
	return d.deleteFinalize(ctx, s)
}

// hasReferrers reports whether anything still refers to the object,
// excluding referrers being deleted by an enclosing command. Owned
// sub-objects count: an if_unused delete is meant for bare objects.
func (d *DeleteObject) hasReferrers(ctx *Context, s *schema.Schema, o *schema.Object) bool {
	for _, r := range s.Referrers(o) {
		if ctx.IsDeleting(r.Name) {
			continue
		}
		return true
	}
	return false
}

// canonicalize suspends expression referrers of the object, then
// expands the delete to cover owned sub-objects. Owned objects that
// depend on each other are removed dependents-first.
func (d *DeleteObject) canonicalize(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	s, err := propagateExprRefs(ctx, s, d, d.scls)
	if err != nil {
		return nil, err
	}

	if !ctx.EnableRecursion() {
		return s, nil
	}
	prefix := d.ClassName.String() + "."
	var owned []*schema.Object
	for _, o := range s.Objects(schema.KindAny) {
		name := o.Name.String()
		if strings.HasPrefix(name, prefix) {
			owned = append(owned, o)
		}
	}
	if len(owned) == 0 {
		return s, nil
	}

	ordered, err := orderForDeletion(s, owned)
	if err != nil {
		return nil, err
	}
	for _, o := range ordered {
		sub := &DeleteObject{}
		sub.ClassName = o.Name
		sub.Kind = o.Kind
		sub.Canonical = true
		d.AddPrerequisite(sub)
	}
	return s, nil
}

// deleteNode adapts an object for toposorting among its co-deleted
// peers.
type deleteNode struct {
	obj  *schema.Object
	deps []string
}

func (n deleteNode) ID() string             { return n.obj.Name.String() }
func (n deleteNode) Dependencies() []string { return n.deps }

// orderForDeletion sorts co-deleted objects so that referrers go
// before the objects they reference.
func orderForDeletion(s *schema.Schema, objs []*schema.Object) ([]*schema.Object, error) {
	inSet := make(map[string]bool, len(objs))
	for _, o := range objs {
		inSet[o.Name.String()] = true
	}

	nodes := make([]deleteNode, 0, len(objs))
	for _, o := range objs {
		var deps []string
		for _, r := range s.Referrers(o) {
			// A referrer in the set must be deleted before o, so o
			// depends on it.
			if inSet[r.Name.String()] {
				deps = append(deps, r.Name.String())
			}
		}
		sort.Strings(deps)
		nodes = append(nodes, deleteNode{obj: o, deps: deps})
	}

	ordered, err := TopoSort(nodes, true)
	if err != nil {
		return nil, err
	}
	out := make([]*schema.Object, len(ordered))
	for i, n := range ordered {
		out[i] = n.obj
	}
	return out, nil
}

// deleteBegin applies the prerequisite deletes covering owned
// sub-objects.
func (d *DeleteObject) deleteBegin(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	return applyPrerequisites(ctx, s, &d.CommandBase)
}

// deleteFinalize verifies that nothing outside the deletion still
// depends on the object now that owned sub-objects and suspended
// referrers are out of the way, then removes the object itself.
func (d *DeleteObject) deleteFinalize(ctx *Context, s *schema.Schema) (*schema.Schema, error) {
	o, err := s.GetByID(d.scls.ID)
	if err != nil {
		return nil, err
	}
	if err := verifyRefs(ctx, s, o); err != nil {
		return nil, err
	}
	if s, err = s.Delete(o); err != nil {
		return nil, err
	}
	return finalizeAffectedRefs(ctx, s, d)
}

func (d *DeleteObject) String() string {
	return fmt.Sprintf("<DeleteObject %s %s>", d.Kind, d.ClassName)
}
