// Package ddl defines the statement tree for schema DDL documents and
// parses the YAML DDL format into it.
package ddl

import "fmt"

// Location points into the source document for error reports.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("line %d", l.Line)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Node is one DDL statement.
type Node interface {
	Loc() Location
	node()
}

type base struct {
	Location Location
}

func (b base) Loc() Location { return b.Location }
func (base) node()           {}

// CreateNode introduces a schema object. Name is as written; nested
// statements address sub-objects of the created object and carry
// unqualified names.
type CreateNode struct {
	base
	Kind        string
	Name        string
	IfNotExists bool
	Fields      []SetFieldNode
	Commands    []Node
}

// AlterNode changes an existing object.
type AlterNode struct {
	base
	Kind     string
	Name     string
	IfExists bool
	Fields   []SetFieldNode
	Commands []Node
}

// DropNode removes an object.
type DropNode struct {
	base
	Kind     string
	Name     string
	IfExists bool
	IfUnused bool
}

// RenameNode gives an object a new name. It appears standalone or
// nested in an AlterNode.
type RenameNode struct {
	base
	Kind    string
	Name    string
	NewName string
}

// SetFieldNode assigns one field inside a create or alter.
type SetFieldNode struct {
	base
	Name  string
	Value any
}

// RebaseNode replaces the base list of an inheriting object. It
// appears nested in an AlterNode.
type RebaseNode struct {
	base
	Kind  string
	Name  string
	Bases []string
}

// Document is a parsed DDL file: a statement list plus lexical
// context.
type Document struct {
	// Module is the default module for unqualified names.
	Module string
	// Aliases maps short module aliases to full module names.
	Aliases map[string]string
	// Statements in source order.
	Statements []Node
}
