package delta

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pellucidb/pellucid/internal/expr"
	"github.com/pellucidb/pellucid/internal/schema"
	"github.com/pellucidb/pellucid/internal/serr"
)

// Action is the verb of an object command, used for registry dispatch.
type Action string

const (
	ActionCreate Action = "create"
	ActionAlter  Action = "alter"
	ActionDelete Action = "delete"
	ActionRename Action = "rename"
	ActionRebase Action = "rebase"
)

// readOnlyModules cannot be altered by user commands.
var readOnlyModules = map[string]bool{"std": true}

// ObjectCommand is a command addressing one named schema object.
type ObjectCommand interface {
	Command
	objectBase() *ObjectCommandBase
}

// ObjectCommandBase carries the state shared by all object commands.
type ObjectCommandBase struct {
	CommandBase

	// ClassName is the qualified name of the addressed object, as
	// known when the command was built. Renames recorded earlier in
	// the same tree are resolved at apply time.
	ClassName schema.Name
	Kind      schema.Kind

	// ddlIdentity maps identity aspects to the DDL source the command
	// originated from, kept for error reports.
	ddlIdentity map[string]string

	// scls is the resolved object, set during the begin phase.
	scls *schema.Object
}

// DDLIdentitySource is the aspect naming the source location a command
// was compiled from.
const DDLIdentitySource = "source"

// SetDDLIdentity records the command's DDL identity for one aspect.
func (b *ObjectCommandBase) SetDDLIdentity(aspect, identity string) {
	if b.ddlIdentity == nil {
		b.ddlIdentity = map[string]string{}
	}
	b.ddlIdentity[aspect] = identity
}

// DDLIdentity returns the identity recorded for an aspect. Asking for
// an unrecorded aspect is a programming error and panics; probe with
// HasDDLIdentity first when the aspect is optional.
func (b *ObjectCommandBase) DDLIdentity(aspect string) string {
	v, ok := b.ddlIdentity[aspect]
	if !ok {
		panic(fmt.Sprintf("delta: no DDL identity recorded for aspect %q on %s %s",
			aspect, b.Kind, b.ClassName))
	}
	return v
}

// HasDDLIdentity reports whether an identity was recorded for an
// aspect.
func (b *ObjectCommandBase) HasDDLIdentity(aspect string) bool {
	_, ok := b.ddlIdentity[aspect]
	return ok
}

func (b *ObjectCommandBase) objectBase() *ObjectCommandBase { return b }

// Object returns the resolved schema object. Nil before the begin
// phase runs.
func (b *ObjectCommandBase) Object() *schema.Object {
	return b.scls
}

// ObjectCommandID renders the stable identity of an object command,
// e.g. "create type default::User". Used to key commands in logs and
// plan output.
func ObjectCommandID(cmd ObjectCommand) string {
	b := cmd.objectBase()
	return fmt.Sprintf("%s %s %s", commandAction(cmd), b.Kind, b.ClassName)
}

func commandAction(cmd ObjectCommand) Action {
	switch cmd.(type) {
	case *CreateObject:
		return ActionCreate
	case *AlterObject:
		return ActionAlter
	case *DeleteObject:
		return ActionDelete
	case *RenameObject:
		return ActionRename
	case *RebaseObject:
		return ActionRebase
	}
	return Action("unknown")
}

// commandObject extracts the object-command state from a generic
// command, when it has one.
func commandObject(cmd Command) (*ObjectCommandBase, bool) {
	if oc, ok := cmd.(ObjectCommand); ok {
		return oc.objectBase(), true
	}
	return nil, false
}

// resolve looks the addressed object up in the snapshot, following
// renames recorded earlier in the tree.
func (b *ObjectCommandBase) resolve(ctx *Context, s *schema.Schema) (*schema.Object, error) {
	o, err := s.Get(b.Kind, b.ClassName)
	if err == nil {
		return o, nil
	}
	renamed := ctx.RenameOf(b.ClassName)
	if renamed != b.ClassName {
		if o, rerr := s.Get(b.Kind, renamed); rerr == nil {
			return o, nil
		}
	}
	return nil, err
}

// validateLegalCommand rejects commands that touch protected modules.
func (b *ObjectCommandBase) validateLegalCommand(ctx *Context) error {
	if ctx.TestMode || ctx.Canonical() {
		return nil
	}
	mod := b.ClassName.Module
	if b.Kind == schema.KindModule {
		mod = b.ClassName.Object
		if mod == "" {
			mod = b.ClassName.String()
		}
	}
	if readOnlyModules[mod] {
		e := serr.New(serr.ErrReadOnlyModule, "cannot modify standard library objects").
			With("module", mod).
			With("name", b.ClassName.String())
		if b.HasDDLIdentity(DDLIdentitySource) {
			e = e.With("location", b.DDLIdentity(DDLIdentitySource))
		}
		return e
	}
	return nil
}

// exprScope returns the this-reference subject for expressions held by
// the addressed object.
func (b *ObjectCommandBase) exprScope() string {
	if b.ClassName.IsOwned() {
		return b.ClassName.Owner().String()
	}
	if b.Kind == schema.KindType {
		return b.ClassName.String()
	}
	return ""
}

// resolvedAttributes materializes the attribute table into field
// values ready for the schema store: expression fields get compiled
// and type-inferred, name fields get parsed. Results are memoized in
// the context for the lifetime of the command.
func (b *ObjectCommandBase) resolvedAttributes(ctx *Context, s *schema.Schema, self Command) (map[string]any, error) {
	cache := ctx.Cache(self, "resolved_attrs")

	out := make(map[string]any, len(b.attrs))
	for name, sa := range b.attrs {
		if cached, ok := cache[name]; ok {
			out[name] = cached
			continue
		}
		v, err := b.resolveAttr(ctx, s, name, sa.Value)
		if err != nil {
			return nil, err
		}
		cache[name] = v
		out[name] = v
	}
	return out, nil
}

func (b *ObjectCommandBase) resolveAttr(ctx *Context, s *schema.Schema, name string, value any) (any, error) {
	// "id" is not a storable field; it is consumed by Create to place
	// the object under an externally minted id.
	if name == "id" {
		switch tv := value.(type) {
		case uuid.UUID:
			return tv, nil
		case string:
			id, err := uuid.Parse(tv)
			if err != nil {
				return nil, serr.Wrap(serr.ErrInvalidField, err, "object id must be a uuid").
					With("name", b.ClassName.String())
			}
			return id, nil
		}
		return nil, serr.New(serr.ErrInvalidField, "object id must be a uuid").
			With("name", b.ClassName.String())
	}

	spec, ok := b.Kind.Field(name)
	if !ok {
		return nil, serr.New(serr.ErrInvalidField, "unknown attribute for object kind").
			With("kind", b.Kind.String()).
			With("attribute", name).
			With("name", b.ClassName.String())
	}
	if value == nil {
		return nil, nil
	}

	switch {
	case spec.Expr:
		switch tv := value.(type) {
		case *expr.Expression:
			if tv.TypeName == "" {
				if err := tv.Infer(expr.Env{Subject: b.exprScope(), Resolver: schema.Resolver{Schema: s}}); err != nil {
					return nil, err
				}
			}
			return tv, nil
		case string:
			e, err := expr.Compile(tv, expr.Env{Subject: b.exprScope(), Resolver: schema.Resolver{Schema: s}})
			if err != nil {
				return nil, serr.Wrap(serr.GetErrorCode(err), err, "invalid attribute expression").
					With("attribute", name).
					With("name", b.ClassName.String())
			}
			return e, nil
		}
		return nil, serr.New(serr.ErrInvalidField, "expression attribute must be text or a compiled expression").
			With("attribute", name).
			With("name", b.ClassName.String())
	case spec.Ref:
		switch tv := value.(type) {
		case schema.Name:
			return ctx.RenameOf(tv), nil
		case *schema.Shell:
			resolved, err := tv.Resolve(s)
			if err != nil {
				if ctx.DepVerificationOff() {
					return tv.Name, nil
				}
				return nil, serr.Wrap(serr.ErrShellUnresolved, err, "forward reference does not resolve").
					With("attribute", name).
					With("name", b.ClassName.String())
			}
			return resolved.Name, nil
		case string:
			return ctx.RenameOf(ctx.ResolveAlias(schema.ParseName(tv))), nil
		case []schema.Name:
			names := make([]schema.Name, len(tv))
			for i, n := range tv {
				names[i] = ctx.RenameOf(n)
			}
			return names, nil
		case []string:
			names := make([]schema.Name, len(tv))
			for i, n := range tv {
				names[i] = ctx.RenameOf(ctx.ResolveAlias(schema.ParseName(n)))
			}
			return names, nil
		}
		return nil, serr.New(serr.ErrInvalidField, "reference attribute must be a name").
			With("attribute", name).
			With("name", b.ClassName.String())
	default:
		return value, nil
	}
}

// verifyRefs fails when the addressed object still has blocking
// referrers. Called from the delete finalize phase; suspended phases
// skip it.
func verifyRefs(ctx *Context, s *schema.Schema, o *schema.Object) error {
	if ctx.DepVerificationOff() {
		return nil
	}
	var blockers []string
	for _, r := range s.Referrers(o) {
		if !isBlockingRef(o, r) {
			continue
		}
		if ctx.IsDeleting(r.Name) || ctx.IsRenaming(r.Name) {
			continue
		}
		blockers = append(blockers, r.VerboseName())
	}
	if len(blockers) > 0 {
		return serr.New(serr.ErrDependency, "cannot delete object because other objects depend on it").
			With("object", o.VerboseName()).
			With("referrers", strings.Join(blockers, ", "))
	}
	return nil
}

// isBlockingRef reports whether a referrer blocks deletion of the
// target. Owned sub-objects of the target never block; they are
// dropped along with it.
func isBlockingRef(target, referrer *schema.Object) bool {
	if !referrer.Kind.BlockingRef() {
		return false
	}
	if strings.HasPrefix(referrer.Name.String(), target.Name.String()+".") {
		return false
	}
	return true
}

// propagateExprRefs rewrites expression-level referrers of the
// addressed object so the triggering change can proceed, queuing the
// restoration work for the finalize phase of self.
//
// Indexes are dropped and re-created; pointers have the affected
// expression cleared and restored; functions get a placeholder body.
// Any other referrer kind is a hard dependency error.
func propagateExprRefs(ctx *Context, s *schema.Schema, self Command, o *schema.Object) (*schema.Schema, error) {
	refs := s.ExprReferrers(o)
	if len(refs) == 0 {
		return s, nil
	}

	var hard []string
	var err error
	for _, er := range refs {
		r := er.Object
		if ctx.IsDeleting(r.Name) {
			continue
		}
		switch r.Kind {
		case schema.KindIndex:
			if s, err = suspendIndex(ctx, s, self, r); err != nil {
				return nil, err
			}
		case schema.KindProperty, schema.KindLink:
			if s, err = suspendPointerExpr(ctx, s, self, r, er.Field); err != nil {
				return nil, err
			}
		case schema.KindFunction:
			if s, err = suspendFunctionBody(ctx, s, self, r); err != nil {
				return nil, err
			}
		default:
			hard = append(hard, r.VerboseName())
		}
	}
	if len(hard) > 0 {
		return nil, serr.New(serr.ErrExprDependency, "object is referenced in expressions that cannot be adjusted automatically").
			With("object", o.VerboseName()).
			With("referrers", strings.Join(hard, ", "))
	}
	return s, nil
}

// suspendIndex drops an index now and queues its re-creation.
func suspendIndex(ctx *Context, s *schema.Schema, self Command, idx *schema.Object) (*schema.Schema, error) {
	if ctx.Value(self, "suspended:"+idx.Name.String()) != nil {
		return s, nil
	}
	ctx.StoreValue(self, "suspended:"+idx.Name.String(), true)

	restore := &CreateObject{}
	restore.ClassName = idx.Name
	restore.Kind = schema.KindIndex
	restore.Canonical = true
	for _, f := range idx.Kind.Fields() {
		if v := idx.Get(f.Name); v != nil {
			restore.SetAttributeValue(f.Name, restoreValue(v))
		}
	}

	drop := &DeleteObject{}
	drop.ClassName = idx.Name
	drop.Kind = schema.KindIndex
	drop.Canonical = true

	resume := ctx.SuspendDepVerification()
	s, err := drop.Apply(ctx, s)
	resume()
	if err != nil {
		return nil, err
	}

	root := &DeltaRoot{}
	root.Canonical = true
	root.Add(restore)
	ctx.DeferFinalization(self, AffectedFinalization{Root: root, Cmd: restore})
	return s, nil
}

// suspendPointerExpr clears an expression field on a pointer now and
// queues its restoration.
func suspendPointerExpr(ctx *Context, s *schema.Schema, self Command, ptr *schema.Object, field string) (*schema.Schema, error) {
	key := "suspended:" + ptr.Name.String() + ":" + field
	if ctx.Value(self, key) != nil {
		return s, nil
	}
	ctx.StoreValue(self, key, true)

	restore := &AlterObject{}
	restore.ClassName = ptr.Name
	restore.Kind = ptr.Kind
	restore.Canonical = true
	restore.SetAttributeValue(field, restoreValue(ptr.Get(field)))

	s, err := s.Update(ptr, map[string]any{field: nil})
	if err != nil {
		return nil, err
	}

	root := &DeltaRoot{}
	root.Canonical = true
	root.Add(restore)
	ctx.DeferFinalization(self, AffectedFinalization{Root: root, Cmd: restore})
	return s, nil
}

// placeholderBody replaces a function body while its references are in
// flux.
const placeholderBody = "null"

// suspendFunctionBody swaps a function body for a placeholder now and
// queues restoration of the real body.
func suspendFunctionBody(ctx *Context, s *schema.Schema, self Command, fn *schema.Object) (*schema.Schema, error) {
	key := "suspended:" + fn.Name.String() + ":body"
	if ctx.Value(self, key) != nil {
		return s, nil
	}
	ctx.StoreValue(self, key, true)

	restore := &AlterObject{}
	restore.ClassName = fn.Name
	restore.Kind = schema.KindFunction
	restore.Canonical = true
	restore.SetAttributeValue("body", restoreValue(fn.Get("body")))

	dummy, err := expr.Parse(placeholderBody, "")
	if err != nil {
		return nil, err
	}
	s, err = s.Update(fn, map[string]any{"body": dummy})
	if err != nil {
		return nil, err
	}

	root := &DeltaRoot{}
	root.Canonical = true
	root.Add(restore)
	ctx.DeferFinalization(self, AffectedFinalization{Root: root, Cmd: restore})
	return s, nil
}

// restoreValue converts a stored field value into a settable attribute
// value. Expressions revert to their text so restoration recompiles
// them against the post-change snapshot, picking up renames.
func restoreValue(v any) any {
	if e, ok := v.(*expr.Expression); ok {
		return e.Text
	}
	return v
}

// finalizeAffectedRefs runs the deferred restoration work queued for
// self. Expression text is rewritten for renames recorded so far, then
// recompiled against the current snapshot; pointer targets are
// re-inferred from the recompiled expression.
func finalizeAffectedRefs(ctx *Context, s *schema.Schema, self Command) (*schema.Schema, error) {
	work := ctx.TakeFinalizations(self)
	var err error
	for _, w := range work {
		if oc, ok := commandObject(w.Cmd); ok {
			rewriteCommandExprs(ctx, oc)
			oc.ClassName = ctx.RenameOf(oc.ClassName)
		}
		if s, err = w.Root.Apply(ctx, s); err != nil {
			return nil, err
		}
		if s, err = reinferTarget(ctx, s, w.Cmd); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// rewriteCommandExprs maps renamed references inside the expression
// attributes of a queued restoration command.
func rewriteCommandExprs(ctx *Context, oc *ObjectCommandBase) {
	subject := oc.exprScope()
	for name, sa := range oc.attrs {
		spec, ok := oc.Kind.Field(name)
		if !ok || !spec.Expr {
			continue
		}
		if text, ok := sa.Value.(string); ok {
			sa.Value = rewriteExprText(text, subject, ctx.Renames)
		}
	}
}

// rewriteExprText substitutes renamed references in expression text.
func rewriteExprText(text, subject string, renames map[string]string) string {
	for old, new := range renames {
		text = strings.ReplaceAll(text, `ref("`+old+`")`, `ref("`+new+`")`)
		if subject != "" && strings.HasPrefix(old, subject+".") {
			oldShort := old[len(subject)+1:]
			newShort := new
			if i := strings.LastIndex(new, "."); i >= 0 {
				newShort = new[i+1:]
			}
			text = strings.ReplaceAll(text, "this."+oldShort, "this."+newShort)
		}
	}
	return text
}

// reinferTarget refreshes the target type of a pointer whose
// expression was just restored, since a recompiled expression may
// resolve to a different type.
func reinferTarget(ctx *Context, s *schema.Schema, cmd Command) (*schema.Schema, error) {
	oc, ok := commandObject(cmd)
	if !ok || !oc.Kind.IsA(schema.KindPointer) {
		return s, nil
	}
	o, err := oc.resolve(ctx, s)
	if err != nil {
		return s, nil
	}
	e := o.Expr("expr")
	if e == nil || e.TypeName == "" {
		return s, nil
	}
	cur, _ := o.Get("target").(schema.Name)
	inferred := schema.ParseName(e.TypeName)
	if cur == inferred {
		return s, nil
	}
	return s.Update(o, map[string]any{"target": inferred})
}
