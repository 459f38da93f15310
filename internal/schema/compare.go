package schema

import "strings"

// CompareContext carries state shared across similarity comparisons in
// a single diff pass.
type CompareContext struct {
	// Renames maps old object names to their new names, so that a
	// reference to a renamed object still counts as equal. Owned
	// sub-object names map through their owner's rename.
	Renames map[string]string
}

func (c *CompareContext) mapped(n Name) string {
	s := n.String()
	if c == nil || c.Renames == nil {
		return s
	}
	if nn, ok := c.Renames[s]; ok {
		return nn
	}
	for old, new := range c.Renames {
		if strings.HasPrefix(s, old+".") {
			return new + s[len(old):]
		}
	}
	return s
}

// RecordRename notes a rename for subsequent comparisons.
func (c *CompareContext) RecordRename(old, new Name) {
	if c.Renames == nil {
		c.Renames = map[string]string{}
	}
	c.Renames[old.String()] = new.String()
}

// Compare computes a weighted similarity score between two objects of
// the same kind. The result is in [0.0, 1.0]; 1.0 means the objects
// are indistinguishable field by field.
func Compare(old, new *Object, ctx *CompareContext) float64 {
	if old.Kind != new.Kind {
		return 0.0
	}

	nameSpec, _ := old.Kind.Field("name")
	total := nameSpec.Weight
	score := nameSpec.Weight * compareNames(old, new, ctx)

	for _, f := range old.Kind.Fields() {
		if f.Weight == 0 {
			continue
		}
		total += f.Weight
		score += f.Weight * compareField(old.Get(f.Name), new.Get(f.Name), ctx)
	}

	if total == 0 {
		return 1.0
	}
	return score / total
}

func compareNames(old, new *Object, ctx *CompareContext) float64 {
	if ctx.mapped(old.Name) == new.Name.String() {
		return 1.0
	}
	// Owned objects compare by their short component; the owner part
	// changes whenever the parent is renamed.
	if old.Name.IsOwned() && new.Name.IsOwned() {
		return JaroWinkler(old.Name.Short(), new.Name.Short())
	}
	return JaroWinkler(old.Name.String(), new.Name.String())
}

func compareField(a, b any, ctx *CompareContext) float64 {
	if a == nil && b == nil {
		return 1.0
	}
	if a == nil || b == nil {
		return 0.0
	}
	switch av := a.(type) {
	case Name:
		bv, ok := b.(Name)
		if !ok {
			return 0.0
		}
		if ctx.mapped(av) == bv.String() {
			return 1.0
		}
		return 0.0
	case []Name:
		bv, ok := b.([]Name)
		if !ok {
			return 0.0
		}
		return compareNameSets(av, bv, ctx)
	case bool:
		if bv, ok := b.(bool); ok && av == bv {
			return 1.0
		}
		return 0.0
	case []string:
		bv, ok := b.([]string)
		if !ok || len(av) != len(bv) {
			return 0.0
		}
		for i := range av {
			if av[i] != bv[i] {
				return 0.0
			}
		}
		return 1.0
	case string:
		if bv, ok := b.(string); ok {
			return JaroWinkler(av, bv)
		}
		return 0.0
	default:
		at, aok := exprText(a)
		bt, bok := exprText(b)
		if aok && bok {
			if at == bt {
				return 1.0
			}
			return JaroWinkler(at, bt)
		}
		return 0.0
	}
}

// compareNameSets computes Jaccard overlap of two name sets with
// rename mapping applied to the old side.
func compareNameSets(a, b []Name, ctx *CompareContext) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	set := make(map[string]struct{}, len(a))
	for _, n := range a {
		set[ctx.mapped(n)] = struct{}{}
	}
	union := len(set)
	inter := 0
	for _, n := range b {
		if _, ok := set[n.String()]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 1.0
	}
	return float64(inter) / float64(union)
}

// FieldEqual reports strict equality of two field values, with rename
// mapping applied to names on the old side. Unlike Compare, partial
// string similarity does not count.
func FieldEqual(a, b any, ctx *CompareContext) bool {
	switch av := a.(type) {
	case Name:
		bv, ok := b.(Name)
		return ok && ctx.mapped(av) == bv.String()
	case []Name:
		bv, ok := b.([]Name)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if ctx.mapped(av[i]) != bv[i].String() {
				return false
			}
		}
		return true
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []string:
		bv, ok := b.([]string)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	default:
		at, aok := exprText(a)
		bt, bok := exprText(b)
		return aok && bok && at == bt
	}
}

type texter interface{ Normalized() string }

func exprText(v any) (string, bool) {
	if t, ok := v.(texter); ok {
		return t.Normalized(), true
	}
	return "", false
}

// JaroWinkler computes the Jaro-Winkler similarity between two strings.
// Returns a value between 0.0 (no similarity) and 1.0 (identical).
func JaroWinkler(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	maxDist := len(s1)
	if len(s2) > maxDist {
		maxDist = len(s2)
	}
	maxDist = maxDist/2 - 1
	if maxDist < 0 {
		maxDist = 0
	}

	s1Matches := make([]bool, len(s1))
	s2Matches := make([]bool, len(s2))

	matches := 0
	transpositions := 0

	for i := range s1 {
		start := i - maxDist
		if start < 0 {
			start = 0
		}
		end := i + maxDist + 1
		if end > len(s2) {
			end = len(s2)
		}

		for j := start; j < end; j++ {
			if s2Matches[j] || s1[i] != s2[j] {
				continue
			}
			s1Matches[i] = true
			s2Matches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	k := 0
	for i := range s1 {
		if !s1Matches[i] {
			continue
		}
		for !s2Matches[k] {
			k++
		}
		if s1[i] != s2[k] {
			transpositions++
		}
		k++
	}

	jaro := (float64(matches)/float64(len(s1)) +
		float64(matches)/float64(len(s2)) +
		float64(matches-transpositions/2)/float64(matches)) / 3.0

	// Winkler modification: boost for common prefix (up to 4 chars)
	prefix := 0
	for i := 0; i < len(s1) && i < len(s2) && i < 4; i++ {
		if s1[i] == s2[i] {
			prefix++
		} else {
			break
		}
	}

	return jaro + float64(prefix)*0.1*(1.0-jaro)
}
