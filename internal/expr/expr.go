// Package expr compiles schema expressions. Expressions use a small
// JavaScript subset: ref("module::name") references another schema
// object, this.field references a pointer of the enclosing type, and
// the usual literals and operators do what they say.
package expr

import (
	"sort"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"

	"github.com/pellucidb/pellucid/internal/serr"
)

// Resolver supplies type information for referenced schema objects
// during inference.
type Resolver interface {
	// RefType returns the value type name of the object with the
	// given qualified name.
	RefType(name string) (string, error)
}

// Env configures compilation of one expression.
type Env struct {
	// Subject is the qualified name of the enclosing object; this.x
	// references resolve to "<Subject>.x". Empty forbids this-refs.
	Subject string
	// Resolver drives type inference. Nil skips inference, leaving
	// TypeName empty.
	Resolver Resolver
}

// Expression is a compiled schema expression.
type Expression struct {
	// Text is the normalized source.
	Text string
	// OrigText is the source as written.
	OrigText string
	// Refs holds the qualified names of all schema objects the
	// expression references, sorted and deduplicated.
	Refs []string
	// TypeName is the inferred result type, empty when unknown.
	TypeName string

	prog *goja.Program
}

// Parse parses and syntax-checks an expression without inferring its
// type. Refs are extracted; this-refs are resolved against subject.
func Parse(text, subject string) (*Expression, error) {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return nil, serr.New(serr.ErrExprCompile, "empty expression")
	}

	program, err := parser.ParseFile(nil, "", normalized, 0)
	if err != nil {
		return nil, serr.Wrap(serr.ErrExprCompile, err, "expression syntax error").
			With("expr", normalized)
	}

	x := &extractor{subject: subject}
	for _, stmt := range program.Body {
		x.walkStatement(stmt)
	}
	if x.err != nil {
		return nil, x.err
	}

	prog, err := goja.Compile("", normalized, true)
	if err != nil {
		return nil, serr.Wrap(serr.ErrExprCompile, err, "expression compile error").
			With("expr", normalized)
	}

	return &Expression{
		Text:     normalized,
		OrigText: text,
		Refs:     dedupe(x.refs),
		prog:     prog,
	}, nil
}

// Compile parses an expression and infers its result type.
func Compile(text string, env Env) (*Expression, error) {
	e, err := Parse(text, env.Subject)
	if err != nil {
		return nil, err
	}
	if env.Resolver != nil {
		if err := e.Infer(env); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Normalized returns the canonical text form used for equality and
// hashing.
func (e *Expression) Normalized() string {
	return e.Text
}

// Compiled reports whether the expression carries a compiled program.
// Expressions deserialized from snapshots are uncompiled until a
// Compile pass runs.
func (e *Expression) Compiled() bool {
	return e != nil && e.prog != nil
}

// Infer computes TypeName from the expression structure and the
// resolver. Unknown shapes leave TypeName empty without error;
// unresolvable refs fail.
func (e *Expression) Infer(env Env) error {
	program, err := parser.ParseFile(nil, "", e.Text, 0)
	if err != nil {
		return serr.Wrap(serr.ErrExprCompile, err, "expression syntax error").
			With("expr", e.Text)
	}
	if len(program.Body) != 1 {
		return nil
	}
	stmt, ok := program.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return nil
	}
	tn, err := inferType(stmt.Expression, env)
	if err != nil {
		return err
	}
	e.TypeName = tn
	return nil
}

// extractor walks the parsed tree collecting schema references.
type extractor struct {
	subject string
	refs    []string
	err     error
}

func (x *extractor) fail(e error) {
	if x.err == nil {
		x.err = e
	}
}

func (x *extractor) walkStatement(stmt ast.Statement) {
	if es, ok := stmt.(*ast.ExpressionStatement); ok {
		x.walk(es.Expression)
	}
}

func (x *extractor) walk(node ast.Expression) {
	switch n := node.(type) {
	case *ast.CallExpression:
		if name, ok := refCallTarget(n); ok {
			x.refs = append(x.refs, name)
			return
		}
		x.walk(n.Callee)
		for _, arg := range n.ArgumentList {
			x.walk(arg)
		}
	case *ast.DotExpression:
		if _, ok := n.Left.(*ast.ThisExpression); ok {
			if x.subject == "" {
				x.fail(serr.New(serr.ErrExprRef, "this-reference outside of an object scope").
					With("field", n.Identifier.Name.String()))
				return
			}
			x.refs = append(x.refs, x.subject+"."+n.Identifier.Name.String())
			return
		}
		x.walk(n.Left)
	case *ast.BinaryExpression:
		x.walk(n.Left)
		x.walk(n.Right)
	case *ast.UnaryExpression:
		x.walk(n.Operand)
	case *ast.ConditionalExpression:
		x.walk(n.Test)
		x.walk(n.Consequent)
		x.walk(n.Alternate)
	case *ast.ArrayLiteral:
		for _, el := range n.Value {
			x.walk(el)
		}
	case *ast.SequenceExpression:
		for _, el := range n.Sequence {
			x.walk(el)
		}
	}
}

// refCallTarget matches a ref("module::name") call and returns the
// referenced name.
func refCallTarget(call *ast.CallExpression) (string, bool) {
	id, ok := call.Callee.(*ast.Identifier)
	if !ok || id.Name.String() != "ref" {
		return "", false
	}
	if len(call.ArgumentList) != 1 {
		return "", false
	}
	lit, ok := call.ArgumentList[0].(*ast.StringLiteral)
	if !ok {
		return "", false
	}
	return lit.Value.String(), true
}

func inferType(node ast.Expression, env Env) (string, error) {
	switch n := node.(type) {
	case *ast.StringLiteral:
		return "std::str", nil
	case *ast.NumberLiteral:
		if strings.ContainsAny(n.Literal, ".eE") {
			return "std::float64", nil
		}
		return "std::int64", nil
	case *ast.BooleanLiteral:
		return "std::bool", nil
	case *ast.CallExpression:
		if name, ok := refCallTarget(n); ok {
			tn, err := env.Resolver.RefType(name)
			if err != nil {
				return "", serr.Wrap(serr.ErrExprRef, err, "unresolvable expression reference").
					With("ref", name)
			}
			return tn, nil
		}
		return "", nil
	case *ast.DotExpression:
		if _, ok := n.Left.(*ast.ThisExpression); ok && env.Subject != "" {
			name := env.Subject + "." + n.Identifier.Name.String()
			tn, err := env.Resolver.RefType(name)
			if err != nil {
				return "", serr.Wrap(serr.ErrExprRef, err, "unresolvable expression reference").
					With("ref", name)
			}
			return tn, nil
		}
		return "", nil
	case *ast.UnaryExpression:
		if n.Operator.String() == "!" {
			return "std::bool", nil
		}
		return "", nil
	case *ast.BinaryExpression:
		if n.Comparison {
			return "std::bool", nil
		}
		switch n.Operator.String() {
		case "&&", "||":
			return "std::bool", nil
		case "+":
			lt, err := inferType(n.Left, env)
			if err != nil {
				return "", err
			}
			rt, err := inferType(n.Right, env)
			if err != nil {
				return "", err
			}
			if lt == "std::str" || rt == "std::str" {
				return "std::str", nil
			}
			if lt == rt {
				return lt, nil
			}
			if isNumeric(lt) && isNumeric(rt) {
				return "std::float64", nil
			}
			return "", nil
		case "-", "*", "/", "%":
			lt, err := inferType(n.Left, env)
			if err != nil {
				return "", err
			}
			rt, err := inferType(n.Right, env)
			if err != nil {
				return "", err
			}
			if lt == rt && isNumeric(lt) {
				return lt, nil
			}
			if isNumeric(lt) && isNumeric(rt) {
				return "std::float64", nil
			}
			return "", nil
		}
		return "", nil
	case *ast.ConditionalExpression:
		ct, err := inferType(n.Consequent, env)
		if err != nil {
			return "", err
		}
		at, err := inferType(n.Alternate, env)
		if err != nil {
			return "", err
		}
		if ct == at {
			return ct, nil
		}
		return "", nil
	default:
		return "", nil
	}
}

func isNumeric(tn string) bool {
	return tn == "std::int64" || tn == "std::float64"
}

func dedupe(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	out := names[:1]
	for _, n := range names[1:] {
		if n != out[len(out)-1] {
			out = append(out, n)
		}
	}
	return out
}
