package delta

import (
	"sort"

	"github.com/pellucidb/pellucid/internal/schema"
)

// similarityThreshold is the score above which an old/new object pair
// is treated as the same object, altered. The bound is open: a score
// of exactly 0.6 does not match.
const similarityThreshold = 0.6

// inAlterBand reports whether a similarity score claims a pair as an
// alteration. Both bounds are open: 0.6 is not similar enough, and a
// perfect 1.0 means the pair is identical rather than altered.
func inAlterBand(score float64) bool {
	return score > similarityThreshold && score < 1.0
}

// diffKinds is the order in which object kinds are diffed. Owners come
// before the kinds they can own so that rename information recorded
// for an owner is available when its sub-objects are compared.
var diffKinds = []schema.Kind{
	schema.KindModule,
	schema.KindType,
	schema.KindProperty,
	schema.KindLink,
	schema.KindIndex,
	schema.KindConstraint,
	schema.KindFunction,
}

// Guidance restricts what the diff engine may propose. Banned pairs
// score zero, pushing the engine toward the remaining alternatives.
type Guidance struct {
	// BannedCreations holds names that must not be created.
	BannedCreations map[string]bool
	// BannedDeletions holds names that must not be deleted.
	BannedDeletions map[string]bool
	// BannedAlters holds old-name/new-name pairs that must not be
	// matched as an alteration.
	BannedAlters map[[2]string]bool
}

func (g *Guidance) alterBanned(old, new schema.Name) bool {
	return g != nil && g.BannedAlters[[2]string{old.String(), new.String()}]
}

func (g *Guidance) createBanned(n schema.Name) bool {
	return g != nil && g.BannedCreations[n.String()]
}

func (g *Guidance) deleteBanned(n schema.Name) bool {
	return g != nil && g.BannedDeletions[n.String()]
}

// DiffSchemas computes the command tree transforming old into new.
// The result is deterministic: equal inputs produce an identical tree.
func DiffSchemas(old, new *schema.Schema, g *Guidance) (*DeltaRoot, error) {
	root := &DeltaRoot{}
	cmp := &schema.CompareContext{}

	var deletes [][]Command
	for _, kind := range diffKinds {
		creates, alters, dels, err := deltaObjects(old, new, kind, g, cmp)
		if err != nil {
			return nil, err
		}
		for _, c := range creates {
			root.ops = append(root.ops, c)
		}
		for _, a := range alters {
			root.ops = append(root.ops, a)
		}
		deletes = append(deletes, dels)
	}

	// Deletions run last and in reverse kind order, so that owned
	// objects and referrers go before the objects they depend on.
	for i := len(deletes) - 1; i >= 0; i-- {
		for _, d := range deletes[i] {
			root.ops = append(root.ops, d)
		}
	}
	return root, nil
}

// pair is one cell of the similarity matrix.
type pair struct {
	old, new  *schema.Object
	score     float64
	nameMatch bool
}

// deltaObjects diffs the objects of one kind between two snapshots.
func deltaObjects(old, new *schema.Schema, kind schema.Kind, g *Guidance, cmp *schema.CompareContext) (creates, alters, deletes []Command, err error) {
	oldObjs := diffable(old.Objects(kind))
	newObjs := diffable(new.Objects(kind))

	// Identical objects need no scoring: equal content hashes under
	// equal (rename-mapped) names drop out up front.
	oldLeft, newLeft := dropIdentical(oldObjs, newObjs, cmp)

	matrix := make([]pair, 0, len(oldLeft)*len(newLeft))
	for _, o := range oldLeft {
		for _, n := range newLeft {
			score := schema.Compare(o, n, cmp)
			if g.alterBanned(o.Name, n.Name) {
				score = 0.0
			}
			matrix = append(matrix, pair{
				old:       o,
				new:       n,
				score:     score,
				nameMatch: mappedName(cmp, o.Name) == n.Name.String(),
			})
		}
	}

	// Highest score first. Exact-name pairs win score ties, and name
	// ties break the ordering deterministically.
	sort.SliceStable(matrix, func(i, j int) bool {
		a, b := matrix[i], matrix[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.nameMatch != b.nameMatch {
			return a.nameMatch
		}
		if a.new.Name.String() != b.new.Name.String() {
			return a.new.Name.String() < b.new.Name.String()
		}
		return a.old.Name.String() < b.old.Name.String()
	})

	// Greedy claim. Optimal assignment is deliberately not attempted;
	// the matrix is small and ties are broken by the sort above.
	claimedOld := map[*schema.Object]bool{}
	claimedNew := map[*schema.Object]bool{}
	var altered []pair
	for _, p := range matrix {
		if p.score <= similarityThreshold {
			continue
		}
		if claimedOld[p.old] || claimedNew[p.new] {
			continue
		}
		claimedOld[p.old] = true
		claimedNew[p.new] = true
		if inAlterBand(p.score) {
			altered = append(altered, p)
		}
	}

	// Altered objects of an inheriting kind apply base-first: an
	// alteration on a base type must land before alterations on its
	// descendants.
	if kind.Inheriting() {
		altered = orderAltersByInheritance(new, altered)
	}

	for _, p := range altered {
		cmd, err := buildAlter(p, cmp)
		if err != nil {
			return nil, nil, nil, err
		}
		if cmd != nil {
			alters = append(alters, cmd)
		}
	}

	var toCreate []*schema.Object
	for _, n := range newLeft {
		if claimedNew[n] || g.createBanned(n.Name) {
			continue
		}
		toCreate = append(toCreate, n)
	}
	ordedCreates, err := orderForCreation(new, toCreate)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, n := range ordedCreates {
		creates = append(creates, buildCreate(n))
	}

	var toDelete []*schema.Object
	for _, o := range oldLeft {
		if claimedOld[o] || g.deleteBanned(o.Name) {
			continue
		}
		toDelete = append(toDelete, o)
	}
	orderedDeletes, err := orderForDeletion(old, toDelete)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, o := range orderedDeletes {
		deletes = append(deletes, buildDelete(o))
	}
	return creates, alters, deletes, nil
}

// diffable drops protected standard-library objects from a diff set.
func diffable(objs []*schema.Object) []*schema.Object {
	out := objs[:0:0]
	for _, o := range objs {
		if readOnlyModules[o.Name.Module] {
			continue
		}
		if o.Kind == schema.KindModule && readOnlyModules[o.Name.String()] {
			continue
		}
		out = append(out, o)
	}
	return out
}

func mappedName(cmp *schema.CompareContext, n schema.Name) string {
	s := n.String()
	if nn := cmp.Renames[s]; nn != "" {
		return nn
	}
	for old, new := range cmp.Renames {
		if len(s) > len(old)+1 && s[:len(old)] == old && s[len(old)] == '.' {
			return new + s[len(old):]
		}
	}
	return s
}

// dropIdentical removes objects that are byte-for-byte identical on
// both sides, keyed by rename-mapped name.
func dropIdentical(oldObjs, newObjs []*schema.Object, cmp *schema.CompareContext) (oldLeft, newLeft []*schema.Object) {
	newByName := make(map[string]*schema.Object, len(newObjs))
	for _, n := range newObjs {
		newByName[n.Name.String()] = n
	}

	matchedNew := map[*schema.Object]bool{}
	for _, o := range oldObjs {
		n, ok := newByName[mappedName(cmp, o.Name)]
		if ok && !matchedNew[n] && identicalObjects(o, n, cmp) {
			matchedNew[n] = true
			continue
		}
		oldLeft = append(oldLeft, o)
	}
	for _, n := range newObjs {
		if !matchedNew[n] {
			newLeft = append(newLeft, n)
		}
	}
	return oldLeft, newLeft
}

// identicalObjects reports whether two same-named objects differ in no
// field. Content hashes are compared directly when no rename mapping
// is in play.
func identicalObjects(o, n *schema.Object, cmp *schema.CompareContext) bool {
	if len(cmp.Renames) == 0 {
		return schema.HashObject(o) == schema.HashObject(n)
	}
	return schema.Compare(o, n, cmp) >= 1.0
}

// alterNode adapts a matched pair for toposorting among its co-altered
// peers: the new side's bases are the edges.
type alterNode struct {
	p    pair
	deps []string
}

func (n alterNode) ID() string             { return n.p.new.Name.String() }
func (n alterNode) Dependencies() []string { return n.deps }

// orderAltersByInheritance sorts matched pairs so that alterations on a
// base object land before alterations on its descendants. Bases outside
// the altered set are untouched and impose no ordering.
func orderAltersByInheritance(new *schema.Schema, altered []pair) []pair {
	if len(altered) < 2 {
		return altered
	}
	inSet := make(map[string]bool, len(altered))
	for _, p := range altered {
		inSet[p.new.Name.String()] = true
	}
	nodes := make([]alterNode, 0, len(altered))
	for _, p := range altered {
		var deps []string
		for _, b := range p.new.Bases() {
			if inSet[b.String()] {
				deps = append(deps, b.String())
			}
		}
		nodes = append(nodes, alterNode{p: p, deps: deps})
	}
	ordered, err := TopoSort(nodes, true)
	if err != nil {
		return altered
	}
	out := make([]pair, len(ordered))
	for i, n := range ordered {
		out[i] = n.p
	}
	return out
}

// createNode adapts an object for toposorting among its co-created
// peers.
type createNode struct {
	obj  *schema.Object
	deps []string
}

func (n createNode) ID() string             { return n.obj.Name.String() }
func (n createNode) Dependencies() []string { return n.deps }

// orderForCreation sorts co-created objects so that every object comes
// after the objects it references: bases before derived types, owners
// before owned. References outside the set are already in the target
// schema and resolve on their own.
func orderForCreation(s *schema.Schema, objs []*schema.Object) ([]*schema.Object, error) {
	inSet := make(map[string]bool, len(objs))
	for _, o := range objs {
		inSet[o.Name.String()] = true
	}
	nodes := make([]createNode, 0, len(objs))
	for _, o := range objs {
		var deps []string
		for _, t := range s.References(o) {
			if inSet[t.Name.String()] {
				deps = append(deps, t.Name.String())
			}
		}
		nodes = append(nodes, createNode{obj: o, deps: deps})
	}
	ordered, err := TopoSort(nodes, true)
	if err != nil {
		return nil, err
	}
	out := make([]*schema.Object, len(ordered))
	for i, n := range ordered {
		out[i] = n.obj
	}
	return out, nil
}

// buildCreate emits the creation command for one object, with one
// attribute setter per populated field.
func buildCreate(o *schema.Object) Command {
	cmd, err := NewCommand(ActionCreate, o.Kind, o.Name)
	if err != nil {
		panic(err)
	}
	for _, fname := range o.FieldNames() {
		cmd.base().Add(&SetAttribute{Name: fname, Value: o.Get(fname)})
	}
	return cmd
}

// buildDelete emits the deletion command for one object. IfExists
// absorbs cascades: an owner deleted earlier in the same tree already
// removed its owned objects.
func buildDelete(o *schema.Object) Command {
	cmd, err := NewCommand(ActionDelete, o.Kind, o.Name)
	if err != nil {
		panic(err)
	}
	cmd.(*DeleteObject).IfExists = true
	return cmd
}

// buildAlter emits the alteration command for a matched pair: a rename
// when the (rename-mapped) names differ, and one attribute setter per
// changed field. Returns nil when nothing observable changed.
func buildAlter(p pair, cmp *schema.CompareContext) (Command, error) {
	cmd, err := NewCommand(ActionAlter, p.old.Kind, p.old.Name)
	if err != nil {
		return nil, err
	}
	b := cmd.base()

	mappedOld := mappedName(cmp, p.old.Name)
	if mappedOld != p.new.Name.String() {
		ren := &RenameObject{NewName: p.new.Name}
		ren.ClassName = schema.ParseName(mappedOld)
		ren.Kind = p.old.Kind
		b.Add(ren)
		cmp.RecordRename(p.old.Name, p.new.Name)
	}

	fields := map[string]bool{}
	for _, f := range p.old.FieldNames() {
		fields[f] = true
	}
	for _, f := range p.new.FieldNames() {
		fields[f] = true
	}
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)

	for _, fname := range names {
		ov, nv := p.old.Get(fname), p.new.Get(fname)
		if fieldsEqual(ov, nv, cmp) {
			continue
		}
		b.Add(&SetAttribute{Name: fname, Value: nv, OldValue: ov, HasOldValue: true})
	}

	if !b.HasSubcommands() {
		return nil, nil
	}
	return cmd, nil
}

func fieldsEqual(a, b any, cmp *schema.CompareContext) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return schema.FieldEqual(a, b, cmp)
}
