package delta

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/pellucidb/pellucid/internal/ddl"
	"github.com/pellucidb/pellucid/internal/schema"
	"github.com/pellucidb/pellucid/internal/serr"
)

// ddlBuilder compiles one DDL statement into a command. Parent is the
// enclosing object command for nested statements, nil at top level.
type ddlBuilder func(env *compileEnv, node ddl.Node, parent *ObjectCommandBase) (Command, error)

var (
	ddlMu       sync.RWMutex
	ddlRegistry = map[reflect.Type]ddlBuilder{}
)

// RegisterDDLNode installs the compiler for one DDL statement type.
// Registering a type twice is a programming error and panics.
func RegisterDDLNode(node ddl.Node, builder ddlBuilder) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	t := reflect.TypeOf(node)
	if _, dup := ddlRegistry[t]; dup {
		panic(fmt.Sprintf("delta: duplicate DDL compiler registration for %s", t))
	}
	ddlRegistry[t] = builder
}

func init() {
	RegisterDDLNode(&ddl.CreateNode{}, compileCreate)
	RegisterDDLNode(&ddl.AlterNode{}, compileAlter)
	RegisterDDLNode(&ddl.DropNode{}, compileDrop)
	RegisterDDLNode(&ddl.RenameNode{}, compileRename)
	RegisterDDLNode(&ddl.RebaseNode{}, compileRebase)
}

// compileEnv carries the lexical context of one DDL document.
type compileEnv struct {
	schema  *schema.Schema
	module  string
	aliases map[string]string

	// created tracks names introduced by earlier statements of the
	// same document, so existence probes see them.
	created map[string]bool
}

// CompileDDL turns a DDL document into a command tree against the
// given snapshot.
func CompileDDL(s *schema.Schema, doc *ddl.Document) (*DeltaRoot, error) {
	env := &compileEnv{
		schema:  s,
		module:  doc.Module,
		aliases: doc.Aliases,
		created: map[string]bool{},
	}
	if env.module == "" {
		env.module = "default"
	}

	root := &DeltaRoot{ModAliases: doc.Aliases}

	// The module header declares its module: ensure it exists before
	// the document's statements run against it.
	if len(doc.Statements) > 0 && !readOnlyModules[env.module] {
		modName := schema.ParseName(env.module)
		if !s.Has(schema.KindModule, modName) {
			mod := &CreateObject{IfNotExists: true}
			mod.ClassName = modName
			mod.Kind = schema.KindModule
			root.ops = append(root.ops, mod)
			env.created[modName.String()] = true
		}
	}

	for _, stmt := range doc.Statements {
		cmd, err := compileNode(env, stmt, nil)
		if err != nil {
			return nil, err
		}
		if cmd != nil {
			root.ops = append(root.ops, cmd)
		}
	}
	return root, nil
}

// compileNode dispatches one statement through the registry.
func compileNode(env *compileEnv, node ddl.Node, parent *ObjectCommandBase) (Command, error) {
	ddlMu.RLock()
	builder, ok := ddlRegistry[reflect.TypeOf(node)]
	ddlMu.RUnlock()
	if !ok {
		return nil, serr.New(serr.ErrInternal, "no compiler registered for DDL statement").
			With("statement", fmt.Sprintf("%T", node)).
			With("location", node.Loc().String())
	}
	return builder(env, node, parent)
}

// qualify resolves a written name to its full form: explicit modules
// map through aliases, nested names attach to the parent, bare names
// fall into the default module.
func (env *compileEnv) qualify(raw string, kind schema.Kind, parent *ObjectCommandBase) schema.Name {
	if kind == schema.KindModule {
		return schema.ParseName(raw)
	}
	if i := strings.Index(raw, "::"); i >= 0 {
		mod := raw[:i]
		if full, ok := env.aliases[mod]; ok {
			mod = full
		}
		return schema.Name{Module: mod, Object: raw[i+2:]}
	}
	if parent != nil {
		return schema.Qualify(parent.ClassName, raw)
	}
	return schema.Name{Module: env.module, Object: raw}
}

// qualifyRef resolves a reference value written in a field: aliases
// and default module apply, parent scope does not.
func (env *compileEnv) qualifyRef(raw string) schema.Name {
	return env.qualify(raw, schema.KindAny, nil)
}

func (env *compileEnv) kindOf(node ddl.Node, written string) (schema.Kind, error) {
	kind := schema.ParseKind(written)
	if kind == schema.KindAny || kind == schema.KindPointer {
		return schema.KindAny, serr.New(serr.ErrDefinition, "unknown object kind").
			With("kind", written).
			With("location", node.Loc().String())
	}
	return kind, nil
}

func (env *compileEnv) exists(kind schema.Kind, name schema.Name) bool {
	return env.schema.Has(kind, name) || env.created[name.String()]
}

func compileCreate(env *compileEnv, node ddl.Node, parent *ObjectCommandBase) (Command, error) {
	n := node.(*ddl.CreateNode)
	kind, err := env.kindOf(n, n.Kind)
	if err != nil {
		return nil, err
	}
	name := env.qualify(n.Name, kind, parent)

	// An already existing object turns a guarded create into an
	// alter of the same body.
	if n.IfNotExists && env.exists(kind, name) {
		alter := &ddl.AlterNode{
			Kind:     n.Kind,
			Name:     n.Name,
			Fields:   n.Fields,
			Commands: n.Commands,
		}
		return compileAlter(env, alter, parent)
	}

	cmd, err := NewCommand(ActionCreate, kind, name)
	if err != nil {
		return nil, err
	}
	create := cmd.(*CreateObject)
	create.IfNotExists = n.IfNotExists
	create.SetDDLIdentity(DDLIdentitySource, n.Loc().String())

	if err := attachFields(env, &create.ObjectCommandBase, kind, n.Fields); err != nil {
		return nil, err
	}
	env.created[name.String()] = true

	for _, sub := range n.Commands {
		subCmd, err := compileNode(env, sub, &create.ObjectCommandBase)
		if err != nil {
			return nil, err
		}
		if subCmd != nil {
			create.Add(subCmd)
		}
	}
	return create, nil
}

func compileAlter(env *compileEnv, node ddl.Node, parent *ObjectCommandBase) (Command, error) {
	n := node.(*ddl.AlterNode)
	kind, err := env.kindOf(n, n.Kind)
	if err != nil {
		return nil, err
	}
	name := env.qualify(n.Name, kind, parent)

	cmd, err := NewCommand(ActionAlter, kind, name)
	if err != nil {
		return nil, err
	}
	alter := cmd.(*AlterObject)
	alter.IfExists = n.IfExists
	alter.SetDDLIdentity(DDLIdentitySource, n.Loc().String())

	if err := attachFields(env, &alter.ObjectCommandBase, kind, n.Fields); err != nil {
		return nil, err
	}
	for _, sub := range n.Commands {
		subCmd, err := compileNode(env, sub, &alter.ObjectCommandBase)
		if err != nil {
			return nil, err
		}
		if subCmd != nil {
			alter.Add(subCmd)
		}
	}
	return alter, nil
}

func compileDrop(env *compileEnv, node ddl.Node, parent *ObjectCommandBase) (Command, error) {
	n := node.(*ddl.DropNode)
	kind, err := env.kindOf(n, n.Kind)
	if err != nil {
		return nil, err
	}
	name := env.qualify(n.Name, kind, parent)

	cmd, err := NewCommand(ActionDelete, kind, name)
	if err != nil {
		return nil, err
	}
	drop := cmd.(*DeleteObject)
	drop.IfExists = n.IfExists
	drop.IfUnused = n.IfUnused
	drop.SetDDLIdentity(DDLIdentitySource, n.Loc().String())
	return drop, nil
}

func compileRename(env *compileEnv, node ddl.Node, parent *ObjectCommandBase) (Command, error) {
	n := node.(*ddl.RenameNode)

	var kind schema.Kind
	var name schema.Name
	switch {
	case n.Name != "" && n.Kind != "":
		var err error
		if kind, err = env.kindOf(n, n.Kind); err != nil {
			return nil, err
		}
		name = env.qualify(n.Name, kind, parent)
	case parent != nil:
		// Nested bare rename addresses the enclosing object.
		kind = parent.Kind
		name = parent.ClassName
	default:
		return nil, serr.New(serr.ErrDefinition, "rename requires kind and name at top level").
			With("location", n.Loc().String())
	}

	cmd, err := NewCommand(ActionRename, kind, name)
	if err != nil {
		return nil, err
	}
	ren := cmd.(*RenameObject)
	ren.NewName = renameTarget(name, n.NewName)
	ren.SetDDLIdentity(DDLIdentitySource, n.Loc().String())
	return ren, nil
}

// renameTarget resolves the written new name in the scope of the old
// one: a bare name keeps the module and owner of the original.
func renameTarget(old schema.Name, to string) schema.Name {
	if strings.Contains(to, "::") {
		return schema.ParseName(to)
	}
	if old.IsOwned() {
		return schema.Qualify(old.Owner(), to)
	}
	return schema.Name{Module: old.Module, Object: to}
}

func compileRebase(env *compileEnv, node ddl.Node, parent *ObjectCommandBase) (Command, error) {
	n := node.(*ddl.RebaseNode)

	var kind schema.Kind
	var name schema.Name
	switch {
	case n.Name != "" && n.Kind != "":
		var err error
		if kind, err = env.kindOf(n, n.Kind); err != nil {
			return nil, err
		}
		name = env.qualify(n.Name, kind, parent)
	case parent != nil:
		kind = parent.Kind
		name = parent.ClassName
	default:
		return nil, serr.New(serr.ErrDefinition, "rebase requires kind and name at top level").
			With("location", n.Loc().String())
	}

	cmd, err := NewCommand(ActionRebase, kind, name)
	if err != nil {
		return nil, err
	}
	rebase := cmd.(*RebaseObject)
	for _, b := range n.Bases {
		rebase.NewBases = append(rebase.NewBases, env.qualifyRef(b))
	}
	rebase.SetDDLIdentity(DDLIdentitySource, n.Loc().String())
	return rebase, nil
}

// attachFields turns set-clauses into attribute setters, qualifying
// reference values and leaving expression text for apply-time
// compilation.
func attachFields(env *compileEnv, b *ObjectCommandBase, kind schema.Kind, fields []ddl.SetFieldNode) error {
	for _, f := range fields {
		spec, ok := kind.Field(f.Name)
		if !ok || f.Name == "name" || f.Name == "id" {
			return serr.New(serr.ErrInvalidField, "unknown field for object kind").
				With("kind", kind.String()).
				With("field", f.Name).
				With("location", f.Loc().String())
		}
		if !spec.AllowDDLSet {
			return serr.New(serr.ErrInvalidField, "field cannot be set from DDL").
				With("kind", kind.String()).
				With("field", f.Name).
				With("location", f.Loc().String())
		}
		value := f.Value
		if spec.Ref {
			switch tv := value.(type) {
			case string:
				value = env.qualifyRef(tv)
			case []any:
				var names []schema.Name
				for _, item := range tv {
					s, ok := item.(string)
					if !ok {
						return serr.New(serr.ErrInvalidField, "reference list entries must be names").
							With("field", f.Name).
							With("location", f.Loc().String())
					}
					names = append(names, env.qualifyRef(s))
				}
				value = names
			}
		}
		b.Add(&SetAttribute{Name: f.Name, Value: value})
	}
	return nil
}
