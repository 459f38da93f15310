package ddl

import (
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/pellucidb/pellucid/internal/serr"
)

// Parse reads a YAML DDL document. The file name is recorded in node
// locations for error reports.
func Parse(file string, data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, serr.Wrap(serr.ErrDefinition, err, "invalid DDL document").
			With("file", file)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return &Document{}, nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, parseErr(file, top, "DDL document must be a mapping")
	}

	doc := &Document{}
	for key, val := range mappingEntries(top) {
		switch key.Value {
		case "module":
			doc.Module = val.Value
		case "aliases":
			aliases, err := decodeStringMap(file, val)
			if err != nil {
				return nil, err
			}
			doc.Aliases = aliases
		case "ddl":
			stmts, err := parseStatements(file, val)
			if err != nil {
				return nil, err
			}
			doc.Statements = stmts
		default:
			return nil, parseErr(file, key, "unknown DDL document key").
				With("key", key.Value)
		}
	}
	return doc, nil
}

// mappingEntries pairs the keys and values of a YAML mapping node.
func mappingEntries(n *yaml.Node) map[*yaml.Node]*yaml.Node {
	out := make(map[*yaml.Node]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out[n.Content[i]] = n.Content[i+1]
	}
	return out
}

// orderedEntries returns mapping entries in source order.
func orderedEntries(n *yaml.Node) [][2]*yaml.Node {
	out := make([][2]*yaml.Node, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, [2]*yaml.Node{n.Content[i], n.Content[i+1]})
	}
	return out
}

func parseStatements(file string, n *yaml.Node) ([]Node, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, parseErr(file, n, "ddl section must be a statement list")
	}
	var out []Node
	for _, item := range n.Content {
		stmt, err := parseStatement(file, item)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

func parseStatement(file string, n *yaml.Node) (Node, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return nil, parseErr(file, n, "statement must be a single-verb mapping")
	}
	verb, body := n.Content[0], n.Content[1]
	if body.Kind != yaml.MappingNode {
		return nil, parseErr(file, body, "statement body must be a mapping").
			With("verb", verb.Value)
	}
	switch verb.Value {
	case "create":
		return parseCreate(file, body)
	case "alter":
		return parseAlter(file, body)
	case "drop":
		return parseDrop(file, body)
	case "rename":
		return parseRename(file, body)
	case "rebase":
		return parseRebase(file, body)
	}
	return nil, parseErr(file, verb, "unknown DDL verb").
		With("verb", verb.Value)
}

func parseCreate(file string, body *yaml.Node) (*CreateNode, error) {
	stmt := &CreateNode{base: at(file, body)}
	for _, kv := range orderedEntries(body) {
		key, val := kv[0], kv[1]
		switch key.Value {
		case "kind":
			stmt.Kind = val.Value
		case "name":
			stmt.Name = val.Value
		case "if_not_exists":
			if err := val.Decode(&stmt.IfNotExists); err != nil {
				return nil, parseErr(file, val, "if_not_exists must be a boolean")
			}
		case "set":
			fields, err := parseSet(file, val)
			if err != nil {
				return nil, err
			}
			stmt.Fields = fields
		case "commands":
			cmds, err := parseStatements(file, val)
			if err != nil {
				return nil, err
			}
			stmt.Commands = cmds
		default:
			return nil, parseErr(file, key, "unknown create key").
				With("key", key.Value)
		}
	}
	if stmt.Kind == "" || stmt.Name == "" {
		return nil, parseErr(file, body, "create requires kind and name")
	}
	return stmt, nil
}

func parseAlter(file string, body *yaml.Node) (*AlterNode, error) {
	stmt := &AlterNode{base: at(file, body)}
	for _, kv := range orderedEntries(body) {
		key, val := kv[0], kv[1]
		switch key.Value {
		case "kind":
			stmt.Kind = val.Value
		case "name":
			stmt.Name = val.Value
		case "if_exists":
			if err := val.Decode(&stmt.IfExists); err != nil {
				return nil, parseErr(file, val, "if_exists must be a boolean")
			}
		case "set":
			fields, err := parseSet(file, val)
			if err != nil {
				return nil, err
			}
			stmt.Fields = fields
		case "commands":
			cmds, err := parseStatements(file, val)
			if err != nil {
				return nil, err
			}
			stmt.Commands = cmds
		default:
			return nil, parseErr(file, key, "unknown alter key").
				With("key", key.Value)
		}
	}
	if stmt.Kind == "" || stmt.Name == "" {
		return nil, parseErr(file, body, "alter requires kind and name")
	}
	return stmt, nil
}

func parseDrop(file string, body *yaml.Node) (*DropNode, error) {
	stmt := &DropNode{base: at(file, body)}
	for _, kv := range orderedEntries(body) {
		key, val := kv[0], kv[1]
		switch key.Value {
		case "kind":
			stmt.Kind = val.Value
		case "name":
			stmt.Name = val.Value
		case "if_exists":
			if err := val.Decode(&stmt.IfExists); err != nil {
				return nil, parseErr(file, val, "if_exists must be a boolean")
			}
		case "if_unused":
			if err := val.Decode(&stmt.IfUnused); err != nil {
				return nil, parseErr(file, val, "if_unused must be a boolean")
			}
		default:
			return nil, parseErr(file, key, "unknown drop key").
				With("key", key.Value)
		}
	}
	if stmt.Kind == "" || stmt.Name == "" {
		return nil, parseErr(file, body, "drop requires kind and name")
	}
	return stmt, nil
}

func parseRename(file string, body *yaml.Node) (*RenameNode, error) {
	stmt := &RenameNode{base: at(file, body)}
	for _, kv := range orderedEntries(body) {
		key, val := kv[0], kv[1]
		switch key.Value {
		case "kind":
			stmt.Kind = val.Value
		case "name":
			stmt.Name = val.Value
		case "to":
			stmt.NewName = val.Value
		default:
			return nil, parseErr(file, key, "unknown rename key").
				With("key", key.Value)
		}
	}
	if stmt.NewName == "" {
		return nil, parseErr(file, body, "rename requires a target name")
	}
	return stmt, nil
}

func parseRebase(file string, body *yaml.Node) (*RebaseNode, error) {
	stmt := &RebaseNode{base: at(file, body)}
	for _, kv := range orderedEntries(body) {
		key, val := kv[0], kv[1]
		switch key.Value {
		case "kind":
			stmt.Kind = val.Value
		case "name":
			stmt.Name = val.Value
		case "bases":
			if val.Kind != yaml.SequenceNode {
				return nil, parseErr(file, val, "bases must be a list")
			}
			for _, item := range val.Content {
				stmt.Bases = append(stmt.Bases, item.Value)
			}
		default:
			return nil, parseErr(file, key, "unknown rebase key").
				With("key", key.Value)
		}
	}
	return stmt, nil
}

func parseSet(file string, n *yaml.Node) ([]SetFieldNode, error) {
	if n.Kind != yaml.MappingNode {
		return nil, parseErr(file, n, "set section must be a mapping")
	}
	var out []SetFieldNode
	for _, kv := range orderedEntries(n) {
		key, val := kv[0], kv[1]
		var v any
		if err := val.Decode(&v); err != nil {
			return nil, parseErr(file, val, "invalid field value").
				With("field", key.Value)
		}
		out = append(out, SetFieldNode{
			base:  at(file, key),
			Name:  key.Value,
			Value: v,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func decodeStringMap(file string, n *yaml.Node) (map[string]string, error) {
	if n.Kind != yaml.MappingNode {
		return nil, parseErr(file, n, "aliases must be a mapping")
	}
	out := map[string]string{}
	for _, kv := range orderedEntries(n) {
		out[kv[0].Value] = kv[1].Value
	}
	return out, nil
}

func at(file string, n *yaml.Node) base {
	return base{Location: Location{File: file, Line: n.Line, Column: n.Column}}
}

func parseErr(file string, n *yaml.Node, msg string) *serr.Error {
	return serr.New(serr.ErrDefinition, msg).
		With("location", Location{File: file, Line: n.Line, Column: n.Column}.String())
}
