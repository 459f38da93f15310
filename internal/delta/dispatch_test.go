package delta

import (
	"testing"

	"github.com/pellucidb/pellucid/internal/ddl"
	"github.com/pellucidb/pellucid/internal/schema"
	"github.com/pellucidb/pellucid/internal/serr"
)

func compileDoc(t *testing.T, s *schema.Schema, text string) *DeltaRoot {
	t.Helper()
	doc, err := ddl.Parse("schema.yaml", []byte(text))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	root, err := CompileDDL(s, doc)
	if err != nil {
		t.Fatalf("CompileDDL() error = %v", err)
	}
	return root
}

// -----------------------------------------------------------------------------
// Module Declaration Tests
// -----------------------------------------------------------------------------

func TestCompileDDL_DeclaresModule(t *testing.T) {
	root := compileDoc(t, schema.New(), `
module: app
ddl:
  - create:
      kind: type
      name: User
`)
	ops := root.Subcommands(true)
	if len(ops) != 2 {
		t.Fatalf("got %d commands, want 2 (module + type)", len(ops))
	}
	mod, ok := ops[0].(*CreateObject)
	if !ok || mod.Kind != schema.KindModule {
		t.Fatalf("first command = %v, want a module create", ops[0])
	}
	if !mod.IfNotExists {
		t.Errorf("module create is not guarded")
	}

	s, err := root.Apply(NewContext(), schema.New())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !s.Has(schema.KindModule, schema.ParseName("app")) {
		t.Errorf("module was not created")
	}
	if !s.Has(schema.KindType, schema.ParseName("app::User")) {
		t.Errorf("type was not created")
	}
}

func TestCompileDDL_ModuleAlreadyPresent(t *testing.T) {
	s := schema.New()
	s = withObject(t, s, schema.KindModule, "default", nil)

	root := compileDoc(t, s, `
ddl:
  - create:
      kind: type
      name: User
`)
	if got := len(root.Subcommands(true)); got != 1 {
		t.Errorf("got %d commands, want 1", got)
	}
}

func TestCompileDDL_EmptyDocument(t *testing.T) {
	root := compileDoc(t, schema.New(), "module: app\n")
	if got := len(root.Subcommands(true)); got != 0 {
		t.Errorf("got %d commands, want none", got)
	}
}

func TestCompileDDL_ReadOnlyModuleTarget(t *testing.T) {
	root := compileDoc(t, schema.New(), `
module: std
ddl:
  - create:
      kind: type
      name: thing
`)
	if _, err := root.Apply(NewContext(), schema.New()); !serr.Is(err, serr.ErrReadOnlyModule) {
		t.Errorf("Apply() error = %v, want %s", err, serr.ErrReadOnlyModule)
	}
}

// -----------------------------------------------------------------------------
// Name Qualification Tests
// -----------------------------------------------------------------------------

func TestCompileDDL_QualifiesNames(t *testing.T) {
	root := compileDoc(t, schema.New(), `
module: app
aliases:
  auth: app_auth
ddl:
  - create:
      kind: type
      name: User
      commands:
        - create:
            kind: property
            name: email
  - create:
      kind: type
      name: auth::Account
`)
	ops := root.Subcommands(true)
	if len(ops) != 3 {
		t.Fatalf("got %d commands, want 3", len(ops))
	}

	user := ops[1].(*CreateObject)
	if user.ClassName.String() != "app::User" {
		t.Errorf("bare name = %s, want app::User", user.ClassName)
	}
	subs := user.Subcommands(true)
	if len(subs) != 1 {
		t.Fatalf("got %d nested commands, want 1", len(subs))
	}
	prop := subs[0].(*CreateObject)
	if prop.ClassName.String() != "app::User.email" {
		t.Errorf("nested name = %s, want app::User.email", prop.ClassName)
	}

	account := ops[2].(*CreateObject)
	if account.ClassName.String() != "app_auth::Account" {
		t.Errorf("aliased name = %s, want app_auth::Account", account.ClassName)
	}
}

func TestCompileDDL_RebaseQualifiesBases(t *testing.T) {
	s := schema.New()
	s = withObject(t, s, schema.KindModule, "default", nil)

	root := compileDoc(t, s, `
aliases:
  auth: app_auth
ddl:
  - rebase:
      kind: type
      name: Admin
      bases: [Person, auth::Role]
`)
	reb := root.Subcommands(true)[0].(*RebaseObject)
	if got := len(reb.NewBases); got != 2 {
		t.Fatalf("got %d bases, want 2", got)
	}
	if reb.NewBases[0].String() != "default::Person" {
		t.Errorf("bases[0] = %s, want default::Person", reb.NewBases[0])
	}
	if reb.NewBases[1].String() != "app_auth::Role" {
		t.Errorf("bases[1] = %s, want app_auth::Role", reb.NewBases[1])
	}
}

// -----------------------------------------------------------------------------
// Guarded Create Tests
// -----------------------------------------------------------------------------

func TestCompileDDL_GuardedCreateOfExisting(t *testing.T) {
	s := schema.New()
	s = withObject(t, s, schema.KindModule, "default", nil)
	s = withObject(t, s, schema.KindType, "default::User", nil)

	root := compileDoc(t, s, `
ddl:
  - create:
      kind: type
      name: User
      if_not_exists: true
      set:
        abstract: true
`)
	alter, ok := root.Subcommands(true)[0].(*AlterObject)
	if !ok {
		t.Fatalf("guarded create of existing object did not compile to an alter")
	}
	if alter.AttributeCmd("abstract") == nil {
		t.Errorf("alter carries no abstract setter")
	}
}

func TestCompileDDL_GuardedCreateSeesEarlierStatements(t *testing.T) {
	s := schema.New()
	s = withObject(t, s, schema.KindModule, "default", nil)

	root := compileDoc(t, s, `
ddl:
  - create:
      kind: type
      name: Foo
  - create:
      kind: type
      name: Foo
      if_not_exists: true
`)
	ops := root.Subcommands(true)
	if _, ok := ops[0].(*CreateObject); !ok {
		t.Errorf("first statement = %v, want a create", ops[0])
	}
	if _, ok := ops[1].(*AlterObject); !ok {
		t.Errorf("second statement = %v, want an alter probe", ops[1])
	}
}

// -----------------------------------------------------------------------------
// Statement Compilation Tests
// -----------------------------------------------------------------------------

func TestCompileDDL_DropFlags(t *testing.T) {
	s := schema.New()
	s = withObject(t, s, schema.KindModule, "default", nil)

	root := compileDoc(t, s, `
ddl:
  - drop:
      kind: type
      name: User
      if_exists: true
      if_unused: true
`)
	drop := root.Subcommands(true)[0].(*DeleteObject)
	if !drop.IfExists || !drop.IfUnused {
		t.Errorf("IfExists = %v, IfUnused = %v, want both true", drop.IfExists, drop.IfUnused)
	}
}

func TestCompileDDL_RenameNewNameScope(t *testing.T) {
	s := schema.New()
	s = withObject(t, s, schema.KindModule, "default", nil)

	tests := []struct {
		name string
		text string
		old  string
		to   string
	}{
		{
			name: "bare target keeps module",
			text: "ddl:\n  - rename:\n      kind: type\n      name: User\n      to: Customer\n",
			old:  "default::User",
			to:   "default::Customer",
		},
		{
			name: "owned target keeps owner",
			text: "ddl:\n  - rename:\n      kind: property\n      name: User.email\n      to: mail\n",
			old:  "default::User.email",
			to:   "default::User.mail",
		},
		{
			name: "qualified target taken verbatim",
			text: "ddl:\n  - rename:\n      kind: type\n      name: User\n      to: crm::Customer\n",
			old:  "default::User",
			to:   "crm::Customer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := compileDoc(t, s, tt.text)
			ren := root.Subcommands(true)[0].(*RenameObject)
			if ren.ClassName.String() != tt.old {
				t.Errorf("ClassName = %s, want %s", ren.ClassName, tt.old)
			}
			if ren.NewName.String() != tt.to {
				t.Errorf("NewName = %s, want %s", ren.NewName, tt.to)
			}
		})
	}
}

func TestCompileDDL_NestedRenameAddressesParent(t *testing.T) {
	s := schema.New()
	s = withObject(t, s, schema.KindModule, "default", nil)

	root := compileDoc(t, s, `
ddl:
  - alter:
      kind: type
      name: User
      commands:
        - rename:
            to: Customer
`)
	alter := root.Subcommands(true)[0].(*AlterObject)
	ren, ok := alter.Subcommands(true)[0].(*RenameObject)
	if !ok {
		t.Fatalf("nested statement did not compile to a rename")
	}
	if ren.ClassName.String() != "default::User" {
		t.Errorf("ClassName = %s, want default::User", ren.ClassName)
	}
	if ren.NewName.String() != "default::Customer" {
		t.Errorf("NewName = %s, want default::Customer", ren.NewName)
	}
}

func TestCompileDDL_Errors(t *testing.T) {
	s := schema.New()
	s = withObject(t, s, schema.KindModule, "default", nil)

	tests := []struct {
		name string
		text string
		code serr.Code
	}{
		{
			name: "unknown object kind",
			text: "ddl:\n  - create:\n      kind: widget\n      name: X\n",
			code: serr.ErrDefinition,
		},
		{
			name: "unknown set field",
			text: "ddl:\n  - create:\n      kind: type\n      name: X\n      set:\n        frobnication: 1\n",
			code: serr.ErrInvalidField,
		},
		{
			name: "field closed to ddl",
			text: "ddl:\n  - create:\n      kind: type\n      name: X\n      set:\n        bases: [Y]\n",
			code: serr.ErrInvalidField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ddl.Parse("schema.yaml", []byte(tt.text))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if _, err := CompileDDL(s, doc); !serr.Is(err, tt.code) {
				t.Errorf("CompileDDL() error = %v, want %s", err, tt.code)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// End-To-End Tests
// -----------------------------------------------------------------------------

func TestCompileDDL_ApplyFullDocument(t *testing.T) {
	root := compileDoc(t, schema.New(), `
ddl:
  - create:
      kind: type
      name: User
      commands:
        - create:
            kind: property
            name: email
            set:
              target: std::str
              required: true
        - create:
            kind: index
            name: email_idx
            set:
              expr: this.email
              unique: true
`)
	s, err := root.Apply(NewContext(), schema.New())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	prop, err := s.Get(schema.KindProperty, schema.ParseName("default::User.email"))
	if err != nil {
		t.Fatalf("property missing: %v", err)
	}
	if got, _ := prop.Get("target").(schema.Name); got.String() != "std::str" {
		t.Errorf("target = %s, want std::str", got)
	}
	if prop.Get("required") != true {
		t.Errorf("required = %v, want true", prop.Get("required"))
	}

	idx, err := s.Get(schema.KindIndex, schema.ParseName("default::User.email_idx"))
	if err != nil {
		t.Fatalf("index missing: %v", err)
	}
	e := idx.Expr("expr")
	if e == nil {
		t.Fatalf("index expression was not compiled")
	}
	if e.TypeName != "std::str" {
		t.Errorf("inferred type = %q, want std::str", e.TypeName)
	}
}
