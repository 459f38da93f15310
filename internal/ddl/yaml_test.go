package ddl

import (
	"errors"
	"strings"
	"testing"

	"github.com/pellucidb/pellucid/internal/serr"
)

// -----------------------------------------------------------------------------
// Document Tests
// -----------------------------------------------------------------------------

func TestParse_FullDocument(t *testing.T) {
	doc, err := Parse("schema.yaml", []byte(`
module: default
aliases:
  s: std
ddl:
  - create:
      kind: type
      name: User
      commands:
        - create:
            kind: property
            name: email
            set:
              target: s::str
              required: true
  - alter:
      kind: type
      name: Post
      set:
        abstract: true
  - drop:
      kind: index
      name: User.email_idx
      if_unused: true
  - rename:
      kind: type
      name: Org
      to: Organization
  - rebase:
      kind: type
      name: Admin
      bases: [User, Auditable]
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if doc.Module != "default" {
		t.Errorf("Module = %q, want default", doc.Module)
	}
	if doc.Aliases["s"] != "std" {
		t.Errorf("Aliases[s] = %q, want std", doc.Aliases["s"])
	}
	if len(doc.Statements) != 5 {
		t.Fatalf("Statements = %d, want 5", len(doc.Statements))
	}

	create, ok := doc.Statements[0].(*CreateNode)
	if !ok {
		t.Fatalf("Statements[0] = %T, want *CreateNode", doc.Statements[0])
	}
	if create.Kind != "type" || create.Name != "User" {
		t.Errorf("create = {%s, %s}, want {type, User}", create.Kind, create.Name)
	}
	if len(create.Commands) != 1 {
		t.Fatalf("create.Commands = %d, want 1", len(create.Commands))
	}
	prop, ok := create.Commands[0].(*CreateNode)
	if !ok {
		t.Fatalf("nested command = %T, want *CreateNode", create.Commands[0])
	}
	if prop.Name != "email" {
		t.Errorf("nested create name = %q, want email", prop.Name)
	}
	if len(prop.Fields) != 2 {
		t.Fatalf("nested create fields = %d, want 2", len(prop.Fields))
	}
	// Set fields come back name-sorted.
	if prop.Fields[0].Name != "required" || prop.Fields[1].Name != "target" {
		t.Errorf("field order = [%s, %s], want [required, target]",
			prop.Fields[0].Name, prop.Fields[1].Name)
	}
	if prop.Fields[1].Value != "s::str" {
		t.Errorf("target value = %v, want s::str", prop.Fields[1].Value)
	}
	if prop.Fields[0].Value != true {
		t.Errorf("required value = %v, want true", prop.Fields[0].Value)
	}

	alter, ok := doc.Statements[1].(*AlterNode)
	if !ok || alter.Name != "Post" {
		t.Errorf("Statements[1] = %T %+v, want alter Post", doc.Statements[1], doc.Statements[1])
	}

	drop, ok := doc.Statements[2].(*DropNode)
	if !ok {
		t.Fatalf("Statements[2] = %T, want *DropNode", doc.Statements[2])
	}
	if !drop.IfUnused || drop.IfExists {
		t.Errorf("drop flags = {IfUnused: %v, IfExists: %v}, want {true, false}",
			drop.IfUnused, drop.IfExists)
	}

	ren, ok := doc.Statements[3].(*RenameNode)
	if !ok || ren.NewName != "Organization" {
		t.Errorf("Statements[3] = %T %+v, want rename to Organization", doc.Statements[3], doc.Statements[3])
	}

	reb, ok := doc.Statements[4].(*RebaseNode)
	if !ok {
		t.Fatalf("Statements[4] = %T, want *RebaseNode", doc.Statements[4])
	}
	if len(reb.Bases) != 2 || reb.Bases[0] != "User" || reb.Bases[1] != "Auditable" {
		t.Errorf("rebase bases = %v, want [User Auditable]", reb.Bases)
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	doc, err := Parse("empty.yaml", []byte(""))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Module != "" || len(doc.Statements) != 0 {
		t.Errorf("Parse(empty) = %+v, want empty document", doc)
	}
}

// -----------------------------------------------------------------------------
// Location Tests
// -----------------------------------------------------------------------------

func TestParse_RecordsLocations(t *testing.T) {
	doc, err := Parse("schema.yaml", []byte(`module: default
ddl:
  - create:
      kind: type
      name: User
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	loc := doc.Statements[0].Loc()
	if loc.File != "schema.yaml" {
		t.Errorf("Loc().File = %q, want schema.yaml", loc.File)
	}
	if loc.Line != 4 {
		t.Errorf("Loc().Line = %d, want 4", loc.Line)
	}
	if got := loc.String(); got != "schema.yaml:4" {
		t.Errorf("Loc().String() = %q, want schema.yaml:4", got)
	}
}

// -----------------------------------------------------------------------------
// Error Tests
// -----------------------------------------------------------------------------

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string // substring of the error message
	}{
		{
			"unknown document key",
			"modules: default\n",
			"unknown DDL document key",
		},
		{
			"unknown verb",
			"ddl:\n  - explode:\n      kind: type\n      name: User\n",
			"unknown DDL verb",
		},
		{
			"statement not a mapping",
			"ddl:\n  - just a string\n",
			"single-verb mapping",
		},
		{
			"create missing name",
			"ddl:\n  - create:\n      kind: type\n",
			"create requires kind and name",
		},
		{
			"drop missing kind",
			"ddl:\n  - drop:\n      name: User\n",
			"drop requires kind and name",
		},
		{
			"rename missing target",
			"ddl:\n  - rename:\n      kind: type\n      name: User\n",
			"rename requires a target name",
		},
		{
			"unknown create key",
			"ddl:\n  - create:\n      kind: type\n      name: User\n      cascade: true\n",
			"unknown create key",
		},
		{
			"if_not_exists not boolean",
			"ddl:\n  - create:\n      kind: type\n      name: User\n      if_not_exists: [1]\n",
			"if_not_exists must be a boolean",
		},
		{
			"set not a mapping",
			"ddl:\n  - create:\n      kind: type\n      name: User\n      set: [a, b]\n",
			"set section must be a mapping",
		},
		{
			"ddl not a list",
			"ddl: nope\n",
			"statement list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.yaml", []byte(tt.doc))
			if err == nil {
				t.Fatalf("Parse() succeeded, want error containing %q", tt.want)
			}
			if !serr.Is(err, serr.ErrDefinition) {
				t.Errorf("Parse() error code = %s, want %s", serr.GetErrorCode(err), serr.ErrDefinition)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %q, want substring %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_ErrorCarriesLocation(t *testing.T) {
	_, err := Parse("bad.yaml", []byte("ddl:\n  - explode:\n      kind: type\n      name: X\n"))
	if err == nil {
		t.Fatalf("Parse() succeeded, want error")
	}
	var serror *serr.Error
	if !errors.As(err, &serror) {
		t.Fatalf("Parse() error is not a *serr.Error: %T", err)
	}
	loc, _ := serror.GetContext()["location"].(string)
	if !strings.HasPrefix(loc, "bad.yaml:") {
		t.Errorf("error location = %q, want bad.yaml:<line>", loc)
	}
}
