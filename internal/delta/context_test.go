package delta

import (
	"testing"

	"github.com/pellucidb/pellucid/internal/schema"
)

// -----------------------------------------------------------------------------
// Stack Tests
// -----------------------------------------------------------------------------

func TestContext_PushRelease(t *testing.T) {
	ctx := NewContext()
	if ctx.Depth() != 0 {
		t.Fatalf("Depth() = %d on fresh context, want 0", ctx.Depth())
	}

	outer := &CreateObject{}
	release := ctx.Push(outer)
	if ctx.Depth() != 1 {
		t.Errorf("Depth() = %d, want 1", ctx.Depth())
	}
	if ctx.Current().Op != outer {
		t.Errorf("Current().Op is not the pushed command")
	}

	release()
	if ctx.Depth() != 0 {
		t.Errorf("Depth() = %d after release, want 0", ctx.Depth())
	}
}

func TestContext_CurrentPanicsOnEmptyStack(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Current() on empty stack did not panic")
		}
	}()
	NewContext().Current()
}

func TestContext_ParentOp(t *testing.T) {
	ctx := NewContext()
	outer := &AlterObject{}
	inner := &RenameObject{}

	defer ctx.Push(outer)()
	if _, ok := ctx.ParentOp(); ok {
		t.Errorf("ParentOp() = true with one frame")
	}
	defer ctx.Push(inner)()
	p, ok := ctx.ParentOp()
	if !ok || p != Command(outer) {
		t.Errorf("ParentOp() = %v, want the outer command", p)
	}
}

func TestTokenFor(t *testing.T) {
	ctx := NewContext()
	del := &DeleteObject{}
	alter := &AlterObject{}

	defer ctx.Push(del)()
	defer ctx.Push(alter)()

	got, _, ok := TokenFor[*DeleteObject](ctx)
	if !ok || got != del {
		t.Errorf("TokenFor[*DeleteObject] = %v, %v", got, ok)
	}
	if _, _, ok := TokenFor[*CreateObject](ctx); ok {
		t.Errorf("TokenFor[*CreateObject] found a frame that is not there")
	}
}

// -----------------------------------------------------------------------------
// Flag Tests
// -----------------------------------------------------------------------------

func TestContext_FlagShadowing(t *testing.T) {
	ctx := NewContext()
	outer := &AlterObject{}
	inner := &RenameObject{}

	releaseOuter := ctx.Push(outer)
	ctx.Current().SetFlag(FlagRenaming, true)

	if v, ok := ctx.Flag(FlagRenaming); !ok || !v {
		t.Errorf("Flag() = %v, %v with outer frame set, want true", v, ok)
	}

	// An inner frame shadows the outer value; releasing it restores the
	// outer view.
	releaseInner := ctx.Push(inner)
	ctx.Current().SetFlag(FlagRenaming, false)
	if v, _ := ctx.Flag(FlagRenaming); v {
		t.Errorf("Flag() = true under shadowing inner frame, want false")
	}
	releaseInner()
	if v, _ := ctx.Flag(FlagRenaming); !v {
		t.Errorf("Flag() = false after inner release, want true")
	}

	releaseOuter()
	if _, ok := ctx.Flag(FlagRenaming); ok {
		t.Errorf("Flag() still set after all frames released")
	}
}

func TestContext_FlagOr(t *testing.T) {
	ctx := NewContext()
	if !ctx.FlagOr(FlagDroppingOwned, true) {
		t.Errorf("FlagOr() ignored default for unset flag")
	}
	defer ctx.Push(&DeleteObject{})()
	ctx.Current().SetFlag(FlagDroppingOwned, false)
	if ctx.FlagOr(FlagDroppingOwned, true) {
		t.Errorf("FlagOr() ignored an explicitly set flag")
	}
}

func TestContext_RecursionOnByDefault(t *testing.T) {
	ctx := NewContext()
	if !ctx.EnableRecursion() {
		t.Errorf("EnableRecursion() = false on fresh context, want true")
	}
	if ctx.TransientDerivation() {
		t.Errorf("TransientDerivation() = true on fresh context, want false")
	}

	release := ctx.Push(&DeleteObject{})
	ctx.Current().SetFlag(FlagEnableRecursion, false)
	if ctx.EnableRecursion() {
		t.Errorf("EnableRecursion() = true under disabling frame")
	}
	release()
	if !ctx.EnableRecursion() {
		t.Errorf("EnableRecursion() = false after frame released")
	}
}

// -----------------------------------------------------------------------------
// Token Scope Tests
// -----------------------------------------------------------------------------

func TestContext_ModAliasesInnermostWins(t *testing.T) {
	ctx := NewContext()
	if ctx.ModAliases() != nil {
		t.Fatalf("ModAliases() = %v on fresh context, want nil", ctx.ModAliases())
	}

	releaseOuter := ctx.Push(&DeltaRoot{})
	ctx.Current().ModAliases = map[string]string{"b": "blog"}
	if got := ctx.ResolveAlias(schema.ParseName("b::Author")); got.String() != "blog::Author" {
		t.Errorf("ResolveAlias(b::Author) = %s, want blog::Author", got)
	}
	// Unaliased modules pass through untouched.
	if got := ctx.ResolveAlias(schema.ParseName("default::User")); got.String() != "default::User" {
		t.Errorf("ResolveAlias(default::User) = %s, want identity", got)
	}

	releaseInner := ctx.Push(&DeltaRoot{})
	ctx.Current().ModAliases = map[string]string{"b": "barn"}
	if got := ctx.ResolveAlias(schema.ParseName("b::Author")); got.String() != "barn::Author" {
		t.Errorf("ResolveAlias(b::Author) = %s under inner table, want barn::Author", got)
	}

	releaseInner()
	if got := ctx.ResolveAlias(schema.ParseName("b::Author")); got.String() != "blog::Author" {
		t.Errorf("ResolveAlias(b::Author) = %s after inner release, want blog::Author", got)
	}
	releaseOuter()
}

func TestContext_LocalNamesInnermostWins(t *testing.T) {
	ctx := NewContext()
	if ctx.LocalNames() != nil {
		t.Fatalf("LocalNames() = %v on fresh context, want nil", ctx.LocalNames())
	}

	defer ctx.Push(&AlterObject{})()
	ctx.Current().LocalNames = map[string]bool{"email": true}
	defer ctx.Push(&RenameObject{})()
	ctx.Current().LocalNames = map[string]bool{"mail": true}

	locals := ctx.LocalNames()
	if !locals["mail"] || locals["email"] {
		t.Errorf("LocalNames() = %v, want the innermost set", locals)
	}
}

func TestTokenForExcluding(t *testing.T) {
	ctx := NewContext()
	outer := &AlterObject{}
	inner := &AlterObject{}

	defer ctx.Push(outer)()
	defer ctx.Push(inner)()

	got, _, ok := TokenForExcluding[*AlterObject](ctx, inner)
	if !ok || got != outer {
		t.Errorf("TokenForExcluding() = %v, %v, want the outer alter", got, ok)
	}
	if _, _, ok := TokenForExcluding[*AlterObject](ctx, nil); !ok {
		t.Errorf("TokenForExcluding(nil) found nothing")
	}
}

// -----------------------------------------------------------------------------
// Mid-Rename Tests
// -----------------------------------------------------------------------------

func TestContext_MarkRenaming(t *testing.T) {
	ctx := NewContext()
	n := schema.ParseName("default::User")

	if ctx.IsRenaming(n) {
		t.Fatalf("IsRenaming() = true before marking")
	}
	done := ctx.MarkRenaming(n)
	if !ctx.IsRenaming(n) {
		t.Errorf("IsRenaming() = false while rename in flight")
	}
	if ctx.IsRenaming(schema.ParseName("default::Post")) {
		t.Errorf("IsRenaming() = true for an unrelated name")
	}
	done()
	if ctx.IsRenaming(n) {
		t.Errorf("IsRenaming() = true after the mark cleared")
	}
}

// -----------------------------------------------------------------------------
// Canonical Contagion Tests
// -----------------------------------------------------------------------------

func TestContext_CanonicalContagion(t *testing.T) {
	ctx := NewContext()
	canonical := &CreateObject{}
	canonical.Canonical = true
	plain := &CreateObject{}

	defer ctx.Push(canonical)()
	if !ctx.Canonical() {
		t.Fatalf("Canonical() = false under canonical frame")
	}

	// A plain command pushed under a canonical frame inherits it.
	defer ctx.Push(plain)()
	if !ctx.Current().Canonical {
		t.Errorf("inner frame did not inherit canonicality")
	}
}

func TestContext_CanonicalNotDefault(t *testing.T) {
	ctx := NewContext()
	defer ctx.Push(&CreateObject{})()
	if ctx.Canonical() {
		t.Errorf("Canonical() = true under plain frame")
	}
}

// -----------------------------------------------------------------------------
// Deletion Scope Tests
// -----------------------------------------------------------------------------

func TestContext_InDeletion(t *testing.T) {
	ctx := NewContext()
	if ctx.InDeletion() {
		t.Fatalf("InDeletion() = true on empty stack")
	}

	del := &DeleteObject{}
	del.ClassName = schema.ParseName("default::User")
	defer ctx.Push(del)()
	defer ctx.Push(&AlterObject{})()

	if !ctx.InDeletion() {
		t.Errorf("InDeletion() = false under delete frame")
	}
	if !ctx.IsDeleting(schema.ParseName("default::User")) {
		t.Errorf("IsDeleting(default::User) = false")
	}
	if ctx.IsDeleting(schema.ParseName("default::Post")) {
		t.Errorf("IsDeleting(default::Post) = true, want false")
	}
}

// -----------------------------------------------------------------------------
// Dependency Verification Tests
// -----------------------------------------------------------------------------

func TestContext_SuspendDepVerification(t *testing.T) {
	ctx := NewContext()
	if ctx.DepVerificationOff() {
		t.Fatalf("verification off by default")
	}

	restoreOuter := ctx.SuspendDepVerification()
	restoreInner := ctx.SuspendDepVerification()
	if !ctx.DepVerificationOff() {
		t.Errorf("verification still on after suspend")
	}

	// Nested restores return to the state each suspension saw.
	restoreInner()
	if !ctx.DepVerificationOff() {
		t.Errorf("inner restore cleared the outer suspension")
	}
	restoreOuter()
	if ctx.DepVerificationOff() {
		t.Errorf("verification still off after outer restore")
	}
}

// -----------------------------------------------------------------------------
// Memoization Tests
// -----------------------------------------------------------------------------

func TestContext_Cache(t *testing.T) {
	ctx := NewContext()
	op1 := &CreateObject{}
	op2 := &CreateObject{}

	c := ctx.Cache(op1, "resolved_attrs")
	c["target"] = "std::str"

	if got := ctx.Cache(op1, "resolved_attrs")["target"]; got != "std::str" {
		t.Errorf("Cache() did not return the same map: %v", got)
	}
	// Distinct commands and purposes get distinct maps.
	if len(ctx.Cache(op2, "resolved_attrs")) != 0 {
		t.Errorf("Cache() shared state across commands")
	}
	if len(ctx.Cache(op1, "other")) != 0 {
		t.Errorf("Cache() shared state across purposes")
	}

	ctx.DropCache(op1, "resolved_attrs")
	if len(ctx.Cache(op1, "resolved_attrs")) != 0 {
		t.Errorf("DropCache() kept entries")
	}
}

func TestContext_Once(t *testing.T) {
	ctx := NewContext()
	op := &DeleteObject{}

	if !ctx.Once(op, "delcanon") {
		t.Fatalf("Once() = false on first call")
	}
	if ctx.Once(op, "delcanon") {
		t.Errorf("Once() = true on second call")
	}
	if !ctx.Once(op, "other") {
		t.Errorf("Once() shared state across purposes")
	}
}

func TestContext_StoreValue(t *testing.T) {
	ctx := NewContext()
	op := &AlterObject{}

	if ctx.Value(op, "note") != nil {
		t.Fatalf("Value() = non-nil before store")
	}
	ctx.StoreValue(op, "note", "remembered")
	if ctx.Value(op, "note") != "remembered" {
		t.Errorf("Value() = %v, want remembered", ctx.Value(op, "note"))
	}
}

// -----------------------------------------------------------------------------
// Rename Map Tests
// -----------------------------------------------------------------------------

func TestContext_RenameOf(t *testing.T) {
	ctx := NewContext()
	old := schema.ParseName("default::User")
	new := schema.ParseName("default::Customer")

	if got := ctx.RenameOf(old); got != old {
		t.Fatalf("RenameOf() = %v before recording, want identity", got)
	}
	ctx.RecordRename(old, new)
	if got := ctx.RenameOf(old); got != new {
		t.Errorf("RenameOf() = %v, want %v", got, new)
	}
}

// -----------------------------------------------------------------------------
// Deferred Finalization Tests
// -----------------------------------------------------------------------------

func TestContext_DeferFinalization(t *testing.T) {
	ctx := NewContext()
	op := &AlterObject{}
	work := AffectedFinalization{Root: &DeltaRoot{}, Cmd: &CreateObject{}}

	ctx.DeferFinalization(op, work)
	got := ctx.TakeFinalizations(op)
	if len(got) != 1 || got[0].Cmd != work.Cmd {
		t.Fatalf("TakeFinalizations() = %v, want the queued work", got)
	}
	// Taking drains the queue.
	if len(ctx.TakeFinalizations(op)) != 0 {
		t.Errorf("TakeFinalizations() returned work twice")
	}
}
