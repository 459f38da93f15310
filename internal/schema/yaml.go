package schema

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/pellucidb/pellucid/internal/expr"
	"github.com/pellucidb/pellucid/internal/serr"
)

// snapshotDoc is the on-disk YAML form of a snapshot.
type snapshotDoc struct {
	Version int         `yaml:"version"`
	Objects []objectDoc `yaml:"objects"`
}

type objectDoc struct {
	Kind   string         `yaml:"kind"`
	Name   string         `yaml:"name"`
	ID     string         `yaml:"id,omitempty"`
	Fields map[string]any `yaml:"fields,omitempty"`
}

const snapshotVersion = 1

// LoadSnapshot parses a YAML snapshot into a schema. Expression fields
// are compiled and type-inferred against the loaded snapshot.
func LoadSnapshot(data []byte) (*Schema, error) {
	var doc snapshotDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, serr.Wrap(serr.ErrDefinition, err, "invalid snapshot document")
	}
	if doc.Version != 0 && doc.Version != snapshotVersion {
		return nil, serr.New(serr.ErrDefinition, "unsupported snapshot version").
			With("version", doc.Version)
	}

	s := New()
	objs := make([]*Object, 0, len(doc.Objects))
	for _, od := range doc.Objects {
		o, err := decodeObject(od)
		if err != nil {
			return nil, err
		}
		objs = append(objs, o)
	}

	// Owners load before their owned sub-objects; modules first.
	sort.SliceStable(objs, func(i, j int) bool {
		return loadRank(objs[i]) < loadRank(objs[j])
	})

	for _, o := range objs {
		next, err := s.Add(o)
		if err != nil {
			return nil, err
		}
		s = next
	}
	s.reindex()

	// Second pass: infer expression types now that every referenced
	// object is resolvable.
	res := Resolver{Schema: s}
	for _, o := range s.Objects(KindAny) {
		for _, f := range o.Kind.Fields() {
			if !f.Expr {
				continue
			}
			e := o.Expr(f.Name)
			if e == nil || e.TypeName != "" {
				continue
			}
			if err := e.Infer(expr.Env{Subject: exprSubject(o), Resolver: res}); err != nil {
				return nil, serr.Wrap(serr.GetErrorCode(err), err, "snapshot expression does not resolve").
					With("object", o.Name.String()).
					With("field", f.Name)
			}
		}
	}
	return s, nil
}

func loadRank(o *Object) int {
	if o.Kind == KindModule {
		return 0
	}
	// Deeper owner chains load later.
	return 1 + strings.Count(o.Name.Object, ".")
}

// exprSubject returns the this-reference scope for expressions held by
// an object: the owner type for owned sub-objects, the type itself for
// types.
func exprSubject(o *Object) string {
	if o.Name.IsOwned() {
		return o.Name.Owner().String()
	}
	if o.Kind == KindType {
		return o.Name.String()
	}
	return ""
}

func decodeObject(od objectDoc) (*Object, error) {
	kind := ParseKind(od.Kind)
	if kind == KindAny || kind == KindPointer {
		return nil, serr.New(serr.ErrDefinition, "unknown object kind in snapshot").
			With("kind", od.Kind).
			With("name", od.Name)
	}
	name := ParseName(od.Name)
	if name.Module == "" && kind != KindModule {
		return nil, serr.New(serr.ErrUnqualifiedName, "snapshot object name must be module-qualified").
			With("name", od.Name)
	}

	o := NewObject(kind, name)
	if od.ID != "" {
		id, err := uuid.Parse(od.ID)
		if err != nil {
			return nil, serr.Wrap(serr.ErrDefinition, err, "invalid object id in snapshot").
				With("name", od.Name)
		}
		o.ID = id
	}

	for fname, raw := range od.Fields {
		spec, ok := kind.Field(fname)
		if !ok || fname == "name" || fname == "id" {
			return nil, serr.New(serr.ErrInvalidField, "unknown field in snapshot").
				With("kind", kind.String()).
				With("field", fname).
				With("name", od.Name)
		}
		v, err := decodeField(spec, raw, o)
		if err != nil {
			return nil, err
		}
		o.fields[fname] = v
	}
	return o, nil
}

func decodeField(spec FieldSpec, raw any, o *Object) (any, error) {
	switch {
	case spec.Expr:
		text, ok := raw.(string)
		if !ok {
			return nil, serr.New(serr.ErrInvalidField, "expression field must be a string").
				With("field", spec.Name).
				With("name", o.Name.String())
		}
		e, err := expr.Parse(text, exprSubject(o))
		if err != nil {
			return nil, serr.Wrap(serr.GetErrorCode(err), err, "invalid snapshot expression").
				With("field", spec.Name).
				With("name", o.Name.String())
		}
		return e, nil
	case spec.Ref:
		switch rv := raw.(type) {
		case string:
			return ParseName(rv), nil
		case []any:
			names := make([]Name, 0, len(rv))
			for _, item := range rv {
				s, ok := item.(string)
				if !ok {
					return nil, serr.New(serr.ErrInvalidField, "reference list entries must be strings").
						With("field", spec.Name).
						With("name", o.Name.String())
				}
				names = append(names, ParseName(s))
			}
			return names, nil
		}
		return nil, serr.New(serr.ErrInvalidField, "reference field must be a name or name list").
			With("field", spec.Name).
			With("name", o.Name.String())
	default:
		switch rv := raw.(type) {
		case bool, string:
			return rv, nil
		case []any:
			ss := make([]string, 0, len(rv))
			for _, item := range rv {
				s, ok := item.(string)
				if !ok {
					return nil, serr.New(serr.ErrInvalidField, "list entries must be strings").
						With("field", spec.Name).
						With("name", o.Name.String())
				}
				ss = append(ss, s)
			}
			return ss, nil
		}
		return nil, serr.New(serr.ErrInvalidField, "unsupported field value in snapshot").
			With("field", spec.Name).
			With("name", o.Name.String())
	}
}

// SaveSnapshot renders a schema as a YAML snapshot. The output is
// deterministic: objects sort by name, fields by field name.
func SaveSnapshot(s *Schema) ([]byte, error) {
	doc := snapshotDoc{Version: snapshotVersion}
	for _, o := range s.Objects(KindAny) {
		od := objectDoc{
			Kind: o.Kind.String(),
			Name: o.Name.String(),
			ID:   o.ID.String(),
		}
		if len(o.fields) > 0 {
			od.Fields = make(map[string]any, len(o.fields))
			for _, fname := range o.FieldNames() {
				od.Fields[fname] = encodeField(o.fields[fname])
			}
		}
		doc.Objects = append(doc.Objects, od)
	}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, serr.Wrap(serr.ErrInternal, err, "failed to render snapshot")
	}
	return out, nil
}

func encodeField(v any) any {
	switch tv := v.(type) {
	case Name:
		return tv.String()
	case []Name:
		ss := make([]string, len(tv))
		for i, n := range tv {
			ss[i] = n.String()
		}
		return ss
	case *expr.Expression:
		return tv.Text
	case *Shell:
		return tv.Name.String()
	default:
		return v
	}
}

// reindex rebuilds the reverse reference index from scratch. Used
// after bulk loads where objects arrive before their targets.
func (s *Schema) reindex() {
	s.refs = map[uuid.UUID]map[uuid.UUID]struct{}{}
	for _, o := range s.objects {
		s.indexRefs(o)
	}
}
