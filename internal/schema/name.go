package schema

import "strings"

// Name is the fully-qualified name of a schema object.
//
// Top-level objects are written "module::object" (e.g. "default::User").
// Objects owned by another object carry their owner as a dotted qualifier
// in the object part: "default::User.email" is the property "email" of
// the type "default::User". Modules use a bare name with no module part.
type Name struct {
	Module string
	Object string
}

// ParseName parses "module::object" or a bare module name.
func ParseName(s string) Name {
	if i := strings.Index(s, "::"); i >= 0 {
		return Name{Module: s[:i], Object: s[i+2:]}
	}
	return Name{Object: s}
}

// String renders the name back to its canonical form.
func (n Name) String() string {
	if n.Module == "" {
		return n.Object
	}
	return n.Module + "::" + n.Object
}

// IsZero reports whether the name is empty.
func (n Name) IsZero() bool {
	return n.Module == "" && n.Object == ""
}

// IsOwned reports whether the name denotes a sub-object owned by
// another object (i.e. the object part contains a dotted qualifier).
func (n Name) IsOwned() bool {
	return strings.Contains(n.Object, ".")
}

// Owner returns the name of the owning object for an owned name.
// For "default::User.email" it returns "default::User". For names with
// no qualifier it returns the zero Name.
func (n Name) Owner() Name {
	i := strings.LastIndex(n.Object, ".")
	if i < 0 {
		return Name{}
	}
	return Name{Module: n.Module, Object: n.Object[:i]}
}

// Short returns the unqualified trailing component of the name:
// "email" for "default::User.email", "User" for "default::User".
func (n Name) Short() string {
	if i := strings.LastIndex(n.Object, "."); i >= 0 {
		return n.Object[i+1:]
	}
	return n.Object
}

// Qualify builds the name of a sub-object owned by parent.
func Qualify(parent Name, sub string) Name {
	return Name{Module: parent.Module, Object: parent.Object + "." + sub}
}

// WithOwner returns a copy of the name re-rooted under a new owner,
// preserving the trailing component. Used during rename cascades where
// the owning object's name changes out from under its sub-objects.
func (n Name) WithOwner(owner Name) Name {
	return Qualify(owner, n.Short())
}
