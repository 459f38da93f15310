package schema

import (
	"sort"

	"github.com/google/uuid"

	"github.com/pellucidb/pellucid/internal/expr"
	"github.com/pellucidb/pellucid/internal/serr"
)

// Schema is an immutable snapshot of schema state. Mutating methods
// return a new snapshot sharing unchanged objects with the receiver.
type Schema struct {
	objects map[uuid.UUID]*Object
	names   map[Kind]map[string]uuid.UUID
	// refs maps a target object id to the ids of objects holding a
	// reference to it (bases, target, expression refs, owner links).
	refs map[uuid.UUID]map[uuid.UUID]struct{}
}

// New returns an empty snapshot.
func New() *Schema {
	return &Schema{
		objects: map[uuid.UUID]*Object{},
		names:   map[Kind]map[string]uuid.UUID{},
		refs:    map[uuid.UUID]map[uuid.UUID]struct{}{},
	}
}

func (s *Schema) clone() *Schema {
	dup := &Schema{
		objects: make(map[uuid.UUID]*Object, len(s.objects)),
		names:   make(map[Kind]map[string]uuid.UUID, len(s.names)),
		refs:    make(map[uuid.UUID]map[uuid.UUID]struct{}, len(s.refs)),
	}
	for id, o := range s.objects {
		dup.objects[id] = o
	}
	for k, m := range s.names {
		nm := make(map[string]uuid.UUID, len(m))
		for n, id := range m {
			nm[n] = id
		}
		dup.names[k] = nm
	}
	for id, m := range s.refs {
		rm := make(map[uuid.UUID]struct{}, len(m))
		for r := range m {
			rm[r] = struct{}{}
		}
		dup.refs[id] = rm
	}
	return dup
}

// Get resolves a name to an object of the given kind. KindAny and
// pseudo-kinds search across all kinds.
func (s *Schema) Get(kind Kind, name Name) (*Object, error) {
	if o := s.lookup(kind, name); o != nil {
		return o, nil
	}
	return nil, serr.New(serr.ErrObjectNotFound, "schema object does not exist").
		With("kind", kind.String()).
		With("name", name.String())
}

// Has reports whether a name resolves for the given kind.
func (s *Schema) Has(kind Kind, name Name) bool {
	return s.lookup(kind, name) != nil
}

func (s *Schema) lookup(kind Kind, name Name) *Object {
	key := name.String()
	if m := s.names[kind]; m != nil {
		if id, ok := m[key]; ok {
			return s.objects[id]
		}
	}
	if kind == KindAny || kind == KindPointer {
		for k, m := range s.names {
			if !k.IsA(kind) {
				continue
			}
			if id, ok := m[key]; ok {
				return s.objects[id]
			}
		}
	}
	return nil
}

// GetByID returns the object with the given id.
func (s *Schema) GetByID(id uuid.UUID) (*Object, error) {
	if o, ok := s.objects[id]; ok {
		return o, nil
	}
	return nil, serr.New(serr.ErrObjectNotFound, "schema object id does not exist").
		With("id", id.String())
}

// Add inserts an object into the snapshot.
func (s *Schema) Add(o *Object) (*Schema, error) {
	if s.lookup(o.Kind, o.Name) != nil {
		return nil, serr.New(serr.ErrObjectExists, "schema object already exists").
			With("kind", o.Kind.String()).
			With("name", o.Name.String())
	}
	dup := s.clone()
	dup.objects[o.ID] = o
	m := dup.names[o.Kind]
	if m == nil {
		m = map[string]uuid.UUID{}
		dup.names[o.Kind] = m
	}
	m[o.Name.String()] = o.ID
	dup.indexRefs(o)
	return dup, nil
}

// Update replaces field values on an object, returning the updated
// snapshot. A "name" entry renames the object in the name index.
func (s *Schema) Update(o *Object, fields map[string]any) (*Schema, error) {
	cur, ok := s.objects[o.ID]
	if !ok {
		return nil, serr.New(serr.ErrObjectNotFound, "cannot update unknown object").
			With("name", o.Name.String())
	}
	dup := s.clone()
	dup.unindexRefs(cur)
	next := cur.clone()
	for name, v := range fields {
		switch name {
		case "id":
			return nil, serr.New(serr.ErrImmutableID, "object id is immutable").
				With("name", cur.Name.String())
		case "name":
			newName, _ := v.(Name)
			delete(dup.names[next.Kind], next.Name.String())
			next.Name = newName
			dup.names[next.Kind][newName.String()] = next.ID
		default:
			if _, known := next.Kind.Field(name); !known {
				return nil, serr.New(serr.ErrInvalidField, "unknown field for object kind").
					With("kind", next.Kind.String()).
					With("field", name).
					With("name", cur.Name.String())
			}
			if v == nil {
				delete(next.fields, name)
			} else {
				next.fields[name] = v
			}
		}
	}
	dup.objects[next.ID] = next
	dup.indexRefs(next)
	return dup, nil
}

// Delete removes an object from the snapshot.
func (s *Schema) Delete(o *Object) (*Schema, error) {
	cur, ok := s.objects[o.ID]
	if !ok {
		return nil, serr.New(serr.ErrObjectNotFound, "cannot delete unknown object").
			With("name", o.Name.String())
	}
	dup := s.clone()
	dup.unindexRefs(cur)
	delete(dup.objects, cur.ID)
	delete(dup.names[cur.Kind], cur.Name.String())
	delete(dup.refs, cur.ID)
	return dup, nil
}

// Objects returns all objects matching the (possibly pseudo-) kind,
// sorted by name for deterministic iteration.
func (s *Schema) Objects(kind Kind) []*Object {
	var out []*Object
	for _, o := range s.objects {
		if o.Kind.IsA(kind) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name.String() < out[j].Name.String()
	})
	return out
}

// Referrers returns the objects holding any reference to o, sorted by
// name.
func (s *Schema) Referrers(o *Object) []*Object {
	var out []*Object
	for id := range s.refs[o.ID] {
		if r, ok := s.objects[id]; ok {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name.String() < out[j].Name.String()
	})
	return out
}

// ExprReferrers returns the referrers whose reference to o comes from a
// compiled expression field, paired with the field name.
func (s *Schema) ExprReferrers(o *Object) []ExprRef {
	var out []ExprRef
	target := o.Name.String()
	for _, r := range s.Referrers(o) {
		for _, f := range r.Kind.Fields() {
			if !f.Expr {
				continue
			}
			e := r.Expr(f.Name)
			if e == nil {
				continue
			}
			for _, ref := range e.Refs {
				if ref == target {
					out = append(out, ExprRef{Object: r, Field: f.Name})
					break
				}
			}
		}
	}
	return out
}

// References returns the objects o refers to (owner, bases, targets,
// expression refs), sorted by name.
func (s *Schema) References(o *Object) []*Object {
	seen := map[uuid.UUID]bool{}
	var out []*Object
	for _, n := range referenceNames(o) {
		t := s.lookup(KindAny, ParseName(n))
		if t == nil || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name.String() < out[j].Name.String()
	})
	return out
}

// ExprRef names an expression field on a referrer object.
type ExprRef struct {
	Object *Object
	Field  string
}

// referenceNames collects every name an object refers to.
func referenceNames(o *Object) []string {
	var names []string
	if o.Name.IsOwned() {
		names = append(names, o.Name.Owner().String())
	}
	for _, b := range o.Bases() {
		names = append(names, b.String())
	}
	for _, f := range o.Kind.Fields() {
		v, ok := o.fields[f.Name]
		if !ok {
			continue
		}
		switch tv := v.(type) {
		case Name:
			names = append(names, tv.String())
		case *Shell:
			names = append(names, tv.Name.String())
		case *expr.Expression:
			names = append(names, tv.Refs...)
		}
	}
	return names
}

func (s *Schema) indexRefs(o *Object) {
	for _, n := range referenceNames(o) {
		t := s.lookup(KindAny, ParseName(n))
		if t == nil {
			continue
		}
		m := s.refs[t.ID]
		if m == nil {
			m = map[uuid.UUID]struct{}{}
			s.refs[t.ID] = m
		}
		m[o.ID] = struct{}{}
	}
}

func (s *Schema) unindexRefs(o *Object) {
	for _, n := range referenceNames(o) {
		t := s.lookup(KindAny, ParseName(n))
		if t == nil {
			continue
		}
		if m := s.refs[t.ID]; m != nil {
			delete(m, o.ID)
		}
	}
}
