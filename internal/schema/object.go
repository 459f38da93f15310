package schema

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/pellucidb/pellucid/internal/expr"
)

// Object is one schema object in a snapshot. Objects are treated as
// immutable once placed in a Schema; mutation goes through Schema
// methods that copy on write.
type Object struct {
	ID   uuid.UUID
	Name Name
	Kind Kind

	// fields holds the kind-specific storable fields. Values are
	// strings, bools, Names, []Name, or *expr.Expression.
	fields map[string]any
}

// NewObject allocates an object with a fresh stable id.
func NewObject(kind Kind, name Name) *Object {
	return NewObjectWithID(kind, name, uuid.New())
}

// NewObjectWithID allocates an object under an externally supplied id.
// Used when replaying changes that carry ids minted elsewhere.
func NewObjectWithID(kind Kind, name Name, id uuid.UUID) *Object {
	return &Object{
		ID:     id,
		Name:   name,
		Kind:   kind,
		fields: map[string]any{},
	}
}

// Get returns a field value, or nil when unset.
func (o *Object) Get(name string) any {
	switch name {
	case "name":
		return o.Name
	case "id":
		return o.ID
	}
	return o.fields[name]
}

// Has reports whether the field is set.
func (o *Object) Has(name string) bool {
	if name == "name" || name == "id" {
		return true
	}
	_, ok := o.fields[name]
	return ok
}

// FieldNames returns the set field names in sorted order.
func (o *Object) FieldNames() []string {
	names := make([]string, 0, len(o.fields))
	for n := range o.fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Bases returns the declared base names of an inheriting object.
func (o *Object) Bases() []Name {
	bases, _ := o.fields["bases"].([]Name)
	return bases
}

// Expr returns a field value as a compiled expression, or nil.
func (o *Object) Expr(name string) *expr.Expression {
	e, _ := o.fields[name].(*expr.Expression)
	return e
}

// VerboseName renders the object for error messages, e.g.
// "property 'email' of type 'default::User'".
func (o *Object) VerboseName() string {
	if o.Name.IsOwned() {
		return fmt.Sprintf("%s '%s' of type '%s'", o.Kind, o.Name.Short(), o.Name.Owner())
	}
	return fmt.Sprintf("%s '%s'", o.Kind, o.Name)
}

// clone returns a shallow copy with an independent field map.
func (o *Object) clone() *Object {
	dup := *o
	dup.fields = make(map[string]any, len(o.fields))
	for k, v := range o.fields {
		dup.fields[k] = v
	}
	return &dup
}

// Shell is an unresolved forward reference to an object by name. Shells
// appear in command attributes before the target exists in the schema;
// resolving one against a snapshot yields the real object.
type Shell struct {
	Name Name
	Kind Kind
}

// Resolve looks the shell up in a snapshot.
func (s *Shell) Resolve(sch *Schema) (*Object, error) {
	return sch.Get(s.Kind, s.Name)
}

func (s *Shell) String() string {
	return fmt.Sprintf("<unresolved %s '%s'>", s.Kind, s.Name)
}
