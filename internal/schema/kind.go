package schema

// Kind identifies the concrete class of a schema object.
type Kind uint8

const (
	// KindAny matches every kind in filters; never the kind of a real object.
	KindAny Kind = iota
	KindModule
	KindType
	KindProperty
	KindLink
	KindIndex
	KindConstraint
	KindFunction

	// KindPointer is a pseudo-kind matching both properties and links.
	KindPointer
)

func (k Kind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindType:
		return "type"
	case KindProperty:
		return "property"
	case KindLink:
		return "link"
	case KindIndex:
		return "index"
	case KindConstraint:
		return "constraint"
	case KindFunction:
		return "function"
	case KindPointer:
		return "pointer"
	default:
		return "object"
	}
}

// ParseKind maps a kind keyword back to its Kind. Returns KindAny for
// unknown keywords.
func ParseKind(s string) Kind {
	switch s {
	case "module":
		return KindModule
	case "type":
		return KindType
	case "property":
		return KindProperty
	case "link":
		return KindLink
	case "index":
		return KindIndex
	case "constraint":
		return KindConstraint
	case "function":
		return KindFunction
	case "pointer":
		return KindPointer
	}
	return KindAny
}

// IsA reports whether k matches the (possibly pseudo-) kind other.
func (k Kind) IsA(other Kind) bool {
	if other == KindAny || k == other {
		return true
	}
	if other == KindPointer {
		return k == KindProperty || k == KindLink
	}
	return false
}

// Inheriting reports whether objects of this kind form an inheritance
// hierarchy via the "bases" field.
func (k Kind) Inheriting() bool {
	return k == KindType
}

// RefDict is a named collection of sub-objects owned by a parent object.
// Membership is positional: a sub-object belongs to the dict of the
// object named by its owner qualifier.
type RefDict struct {
	Attr string
	Ref  Kind
}

var typeRefDicts = []RefDict{
	{Attr: "properties", Ref: KindProperty},
	{Attr: "links", Ref: KindLink},
	{Attr: "indexes", Ref: KindIndex},
	{Attr: "constraints", Ref: KindConstraint},
}

// RefDicts returns the reference dictionaries owned by objects of this kind.
func (k Kind) RefDicts() []RefDict {
	if k == KindType {
		return typeRefDicts
	}
	return nil
}

// BlockingRef reports whether a reference held by an object of this
// kind blocks deletion of its target. Module membership is positional
// rather than referential and never blocks.
func (k Kind) BlockingRef() bool {
	return k != KindModule
}

// FieldSpec describes one storable field of an object kind.
type FieldSpec struct {
	Name string
	// Weight is the coefficient of this field in similarity scoring.
	Weight float64
	// Expr marks expression-typed fields (compiled before application).
	Expr bool
	// Ref marks fields holding object names (Name or []Name values).
	Ref bool
	// AllowDDLSet permits the field to be set from a DDL SET clause.
	AllowDDLSet bool
}

var kindFields = map[Kind][]FieldSpec{
	KindModule: {},
	KindType: {
		{Name: "bases", Weight: 0.3, Ref: true},
		{Name: "abstract", Weight: 0.1, AllowDDLSet: true},
	},
	KindProperty: {
		{Name: "target", Weight: 0.4, Ref: true, AllowDDLSet: true},
		{Name: "required", Weight: 0.1, AllowDDLSet: true},
		{Name: "readonly", Weight: 0.05, AllowDDLSet: true},
		{Name: "default", Weight: 0.1, Expr: true, AllowDDLSet: true},
		{Name: "expr", Weight: 0.25, Expr: true, AllowDDLSet: true},
	},
	KindLink: {
		{Name: "target", Weight: 0.4, Ref: true, AllowDDLSet: true},
		{Name: "required", Weight: 0.1, AllowDDLSet: true},
		{Name: "default", Weight: 0.1, Expr: true, AllowDDLSet: true},
		{Name: "expr", Weight: 0.25, Expr: true, AllowDDLSet: true},
	},
	KindIndex: {
		{Name: "expr", Weight: 0.8, Expr: true, AllowDDLSet: true},
		{Name: "unique", Weight: 0.1, AllowDDLSet: true},
	},
	KindConstraint: {
		{Name: "expr", Weight: 0.8, Expr: true, AllowDDLSet: true},
	},
	KindFunction: {
		{Name: "params", Weight: 0.3},
		{Name: "rtype", Weight: 0.2, Ref: true, AllowDDLSet: true},
		{Name: "body", Weight: 0.4, Expr: true, AllowDDLSet: true},
	},
}

// Fields returns the field specs for the kind.
func (k Kind) Fields() []FieldSpec {
	return kindFields[k]
}

// Field looks up a single field spec by name. The name field itself is
// valid for every kind.
func (k Kind) Field(name string) (FieldSpec, bool) {
	if name == "name" {
		return FieldSpec{Name: "name", Weight: 0.5}, true
	}
	if name == "id" {
		return FieldSpec{Name: "id"}, true
	}
	for _, f := range kindFields[k] {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}
