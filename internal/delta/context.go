package delta

import (
	"github.com/pellucidb/pellucid/internal/schema"
)

// Flag names resolvable through the token stack.
const (
	// FlagRenaming marks frames where attribute rewrites stem from a
	// rename cascade rather than a user-visible change.
	FlagRenaming = "renaming"
	// FlagDroppingOwned marks delete frames that are removing owned
	// sub-objects of an object already being deleted.
	FlagDroppingOwned = "dropping_owned"
	// FlagInheritanceMerge controls whether inherited attribute values
	// are merged down onto the object being processed.
	FlagInheritanceMerge = "inheritance_merge"
	// FlagMarkDerived marks frames whose created objects are derived
	// rather than user-declared.
	FlagMarkDerived = "mark_derived"
	// FlagPreservePathID keeps the original path identity of a pointer
	// across a rewrite.
	FlagPreservePathID = "preserve_path_id"
	// FlagInheritanceRefdicts controls whether reference dictionaries
	// participate in inheritance merging.
	FlagInheritanceRefdicts = "inheritance_refdicts"
	// FlagEnableRecursion controls whether cascading expansions recurse
	// into owned sub-objects. Defaults to true when no frame sets it.
	FlagEnableRecursion = "enable_recursion"
	// FlagTransientDerivation marks derivations that never persist.
	// Defaults to false when no frame sets it.
	FlagTransientDerivation = "transient_derivation"
)

// Token is one frame of the command context stack.
type Token struct {
	Op Command
	// Canonical marks the frame as part of an already-expanded tree;
	// it is contagious to every command applied below it.
	Canonical bool

	// ModAliases maps module aliases to full module names for commands
	// applied below the frame. Nil means no override.
	ModAliases map[string]string

	// LocalNames holds short names bound locally by the frame, which
	// shadow schema names during expression resolution. Nil means no
	// override.
	LocalNames map[string]bool

	flags map[string]bool
}

// SetFlag sets a lexically scoped flag on the frame. Commands applied
// below the frame observe it unless an inner frame shadows it.
func (t *Token) SetFlag(name string, v bool) {
	if t.flags == nil {
		t.flags = map[string]bool{}
	}
	t.flags[name] = v
}

// Context tracks state across the application of one command tree.
type Context struct {
	stack []*Token

	// Renames maps old object names to their renamed forms, string
	// keyed for stable lookups.
	Renames map[string]string

	// depVerificationOff suspends reference verification during
	// destructive phases where dangling references are transient.
	depVerificationOff bool

	// caches hold per-(command, purpose) memoized values.
	caches map[cacheKey]map[string]any

	// values is a store for one-shot guards and cross-phase notes.
	values map[valueKey]any

	// renaming holds the names of objects whose renames are in flight,
	// between the begin and finalize phases of the rename.
	renaming map[string]bool

	// affectedFinalization queues deferred restoration work produced
	// while rewriting references, keyed by the command whose finalize
	// phase must run it.
	affectedFinalization map[Command][]AffectedFinalization

	// TestMode relaxes validation for unit fixtures.
	TestMode bool
}

type cacheKey struct {
	op      Command
	purpose string
}

type valueKey struct {
	op      Command
	purpose string
}

// AffectedFinalization is one piece of deferred work: a command tree
// to re-apply once the triggering command finishes.
type AffectedFinalization struct {
	Root *DeltaRoot
	Cmd  Command
}

// NewContext returns an empty context ready for one Apply pass.
func NewContext() *Context {
	return &Context{
		Renames: map[string]string{},
	}
}

// Push enters a command frame and returns the function that leaves it.
// Canonicality is contagious: a frame pushed under a canonical frame
// is canonical too.
func (c *Context) Push(op Command) func() {
	t := &Token{
		Op:        op,
		Canonical: op.base().Canonical || c.Canonical(),
	}
	c.stack = append(c.stack, t)
	return func() {
		c.stack = c.stack[:len(c.stack)-1]
	}
}

// Current returns the innermost frame. Panics on an empty stack: a
// command asked about its context before any Apply began.
func (c *Context) Current() *Token {
	if len(c.stack) == 0 {
		panic("delta: command context stack is empty")
	}
	return c.stack[len(c.stack)-1]
}

// Depth returns the number of frames on the stack.
func (c *Context) Depth() int {
	return len(c.stack)
}

// Canonical reports whether any frame on the stack is canonical.
func (c *Context) Canonical() bool {
	for _, t := range c.stack {
		if t.Canonical {
			return true
		}
	}
	return false
}

// Flag resolves a lexically scoped flag innermost-first. The second
// result reports whether any frame sets it.
func (c *Context) Flag(name string) (bool, bool) {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if v, ok := c.stack[i].flags[name]; ok {
			return v, true
		}
	}
	return false, false
}

// FlagOr resolves a flag with a default for the unset case.
func (c *Context) FlagOr(name string, def bool) bool {
	if v, ok := c.Flag(name); ok {
		return v
	}
	return def
}

// EnableRecursion reports whether cascading expansions may recurse
// into owned sub-objects. On unless a frame turns it off.
func (c *Context) EnableRecursion() bool {
	return c.FlagOr(FlagEnableRecursion, true)
}

// TransientDerivation reports whether the current derivation is
// transient. Off unless a frame turns it on.
func (c *Context) TransientDerivation() bool {
	return c.FlagOr(FlagTransientDerivation, false)
}

/// ModAliases resolves the module alias table innermost-first: the first
// frame carrying one wins. Nil when no frame carries a table.
func (c *Context) ModAliases() map[string]string {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if c.stack[i].ModAliases != nil {
			return c.stack[i].ModAliases
		}
	}
	return nil
}

/// LocalNames resolves the local name set innermost-first: the first
// frame carrying one wins. Nil when no frame carries a set.
func (c *Context) LocalNames() map[string]bool {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if c.stack[i].LocalNames != nil {
			return c.stack[i].LocalNames
		}
	}
	return nil
}

// TokenFor returns the innermost frame whose command has type T.
func TokenFor[T Command](c *Context) (T, *Token, bool) {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if op, ok := c.stack[i].Op.(T); ok {
			return op, c.stack[i], true
		}
	}
	var zero T
	return zero, nil, false
}

// TokenForExcluding returns the innermost frame whose command has type
// T, skipping frames belonging to the excluded command instance. Used
// to find the enclosing command of the same shape as the current one.
func TokenForExcluding[T Command](c *Context, excluding Command) (T, *Token, bool) {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if c.stack[i].Op == excluding {
			continue
		}
		if op, ok := c.stack[i].Op.(T); ok {
			return op, c.stack[i], true
		}
	}
	var zero T
	return zero, nil, false
}

// ParentOp returns the command of the frame just below the innermost.
func (c *Context) ParentOp() (Command, bool) {
	if len(c.stack) < 2 {
		return nil, false
	}
	return c.stack[len(c.stack)-2].Op, true
}

// InDeletion reports whether any enclosing frame is a delete command.
func (c *Context) InDeletion() bool {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if _, ok := c.stack[i].Op.(*DeleteObject); ok {
			return true
		}
	}
	return false
}

// IsDeleting reports whether an enclosing frame is deleting the named
// object specifically.
func (c *Context) IsDeleting(name schema.Name) bool {
	key := name.String()
	for i := len(c.stack) - 1; i >= 0; i-- {
		if del, ok := c.stack[i].Op.(*DeleteObject); ok && del.ClassName.String() == key {
			return true
		}
	}
	return false
}

// SuspendDepVerification turns reference verification off and returns
// the function restoring the previous state.
func (c *Context) SuspendDepVerification() func() {
	prev := c.depVerificationOff
	c.depVerificationOff = true
	return func() {
		c.depVerificationOff = prev
	}
}

// DepVerificationOff reports whether reference verification is
// currently suspended.
func (c *Context) DepVerificationOff() bool {
	return c.depVerificationOff
}

// Cache returns the memoization map for a (command, purpose) pair,
// creating it on first use.
func (c *Context) Cache(op Command, purpose string) map[string]any {
	if c.caches == nil {
		c.caches = map[cacheKey]map[string]any{}
	}
	key := cacheKey{op: op, purpose: purpose}
	m, ok := c.caches[key]
	if !ok {
		m = map[string]any{}
		c.caches[key] = m
	}
	return m
}

// DropCache discards the memoization map for a (command, purpose)
// pair.
func (c *Context) DropCache(op Command, purpose string) {
	delete(c.caches, cacheKey{op: op, purpose: purpose})
}

// StoreValue records a cross-phase note keyed by command and purpose.
func (c *Context) StoreValue(op Command, purpose string, v any) {
	if c.values == nil {
		c.values = map[valueKey]any{}
	}
	c.values[valueKey{op: op, purpose: purpose}] = v
}

// Value reads a cross-phase note. Returns nil when unset.
func (c *Context) Value(op Command, purpose string) any {
	return c.values[valueKey{op: op, purpose: purpose}]
}

// Once reports true the first time it is called for a (command,
// purpose) pair and false afterwards. Used to guard expansions that
// must happen exactly once per command.
func (c *Context) Once(op Command, purpose string) bool {
	if c.Value(op, purpose) != nil {
		return false
	}
	c.StoreValue(op, purpose, true)
	return true
}

// ResolveAlias maps the module of a written name through the alias
// table in scope. Names under unaliased modules pass through.
func (c *Context) ResolveAlias(n schema.Name) schema.Name {
	if aliases := c.ModAliases(); aliases != nil {
		if full, ok := aliases[n.Module]; ok {
			n.Module = full
		}
	}
	return n
}

// MarkRenaming records that the named object's rename is in flight and
// returns the function clearing the mark.
func (c *Context) MarkRenaming(n schema.Name) func() {
	if c.renaming == nil {
		c.renaming = map[string]bool{}
	}
	key := n.String()
	c.renaming[key] = true
	return func() {
		delete(c.renaming, key)
	}
}

// IsRenaming reports whether the named object's rename is in flight.
func (c *Context) IsRenaming(n schema.Name) bool {
	return c.renaming[n.String()]
}

// RecordRename notes that old is now known as new, for reference
// mapping in later commands of the same tree.
func (c *Context) RecordRename(old, new schema.Name) {
	c.Renames[old.String()] = new.String()
}

// RenameOf maps a possibly renamed name to its current form.
func (c *Context) RenameOf(n schema.Name) schema.Name {
	if nn, ok := c.Renames[n.String()]; ok {
		return schema.ParseName(nn)
	}
	return n
}

// DeferFinalization queues deferred restoration work to run in the
// finalize phase of op.
func (c *Context) DeferFinalization(op Command, work AffectedFinalization) {
	if c.affectedFinalization == nil {
		c.affectedFinalization = map[Command][]AffectedFinalization{}
	}
	c.affectedFinalization[op] = append(c.affectedFinalization[op], work)
}

// TakeFinalizations removes and returns the deferred work queued for
// op.
func (c *Context) TakeFinalizations(op Command) []AffectedFinalization {
	if c.affectedFinalization == nil {
		return nil
	}
	work := c.affectedFinalization[op]
	delete(c.affectedFinalization, op)
	return work
}
