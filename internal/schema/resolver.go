package schema

import "github.com/pellucidb/pellucid/internal/serr"

// Resolver adapts a snapshot to expression type inference. It
// implements expr.Resolver.
type Resolver struct {
	Schema *Schema
}

// RefType resolves a qualified name to the value type it yields in an
// expression: pointers yield their target type, functions their return
// type, and types themselves.
func (r Resolver) RefType(name string) (string, error) {
	o, err := r.Schema.Get(KindAny, ParseName(name))
	if err != nil {
		return "", err
	}
	switch o.Kind {
	case KindProperty, KindLink:
		if t, ok := o.Get("target").(Name); ok {
			return t.String(), nil
		}
		return "", nil
	case KindFunction:
		if t, ok := o.Get("rtype").(Name); ok {
			return t.String(), nil
		}
		return "", nil
	case KindType:
		return o.Name.String(), nil
	}
	return "", serr.New(serr.ErrExprRef, "object cannot be referenced in an expression").
		With("name", name).
		With("kind", o.Kind.String())
}
