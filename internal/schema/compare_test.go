package schema

import (
	"math"
	"testing"
)

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// makeObject builds an object with the given fields set directly.
func makeObject(kind Kind, name string, fields map[string]any) *Object {
	o := NewObject(kind, ParseName(name))
	for k, v := range fields {
		o.fields[k] = v
	}
	return o
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// -----------------------------------------------------------------------------
// JaroWinkler Tests
// -----------------------------------------------------------------------------

func TestJaroWinkler(t *testing.T) {
	tests := []struct {
		name string
		s1   string
		s2   string
		want float64
	}{
		{"identical", "User", "User", 1.0},
		{"empty left", "", "User", 0.0},
		{"empty right", "User", "", 0.0},
		{"no overlap", "abc", "xyz", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JaroWinkler(tt.s1, tt.s2); !almostEqual(got, tt.want) {
				t.Errorf("JaroWinkler(%q, %q) = %v, want %v", tt.s1, tt.s2, got, tt.want)
			}
		})
	}
}

func TestJaroWinkler_Transpositions(t *testing.T) {
	// The classic pair: jaro 0.9444, prefix boost of 3 lifts it to 0.9611.
	got := JaroWinkler("martha", "marhta")
	if math.Abs(got-0.9611) > 0.001 {
		t.Errorf("JaroWinkler(martha, marhta) = %v, want ~0.9611", got)
	}
}

func TestJaroWinkler_Symmetric(t *testing.T) {
	a := JaroWinkler("username", "user_name")
	b := JaroWinkler("user_name", "username")
	if !almostEqual(a, b) {
		t.Errorf("JaroWinkler is not symmetric: %v vs %v", a, b)
	}
}

// -----------------------------------------------------------------------------
// Compare Tests
// -----------------------------------------------------------------------------

func TestCompare_IdenticalObjects(t *testing.T) {
	a := makeObject(KindProperty, "default::User.email", map[string]any{
		"target":   ParseName("std::str"),
		"required": true,
	})
	b := makeObject(KindProperty, "default::User.email", map[string]any{
		"target":   ParseName("std::str"),
		"required": true,
	})

	if got := Compare(a, b, &CompareContext{}); !almostEqual(got, 1.0) {
		t.Errorf("Compare(identical) = %v, want 1.0", got)
	}
}

func TestCompare_KindMismatch(t *testing.T) {
	a := makeObject(KindProperty, "default::User.email", nil)
	b := makeObject(KindLink, "default::User.email", nil)

	if got := Compare(a, b, &CompareContext{}); got != 0.0 {
		t.Errorf("Compare(kind mismatch) = %v, want 0.0", got)
	}
}

func TestCompare_TargetChange(t *testing.T) {
	// Same name, different target: similar but not identical.
	a := makeObject(KindProperty, "default::User.age", map[string]any{
		"target": ParseName("std::int64"),
	})
	b := makeObject(KindProperty, "default::User.age", map[string]any{
		"target": ParseName("std::str"),
	})

	got := Compare(a, b, &CompareContext{})
	if got <= 0.6 || got >= 1.0 {
		t.Errorf("Compare(target change) = %v, want in (0.6, 1.0)", got)
	}
}

func TestCompare_SimilarShortNames(t *testing.T) {
	// Owned objects compare by their short component, so a rename within
	// the same owner scores on "email" vs "email_address" rather than on
	// the full qualified strings.
	a := makeObject(KindProperty, "default::User.email", map[string]any{
		"target": ParseName("std::str"),
	})
	b := makeObject(KindProperty, "default::User.email_address", map[string]any{
		"target": ParseName("std::str"),
	})

	got := Compare(a, b, &CompareContext{})
	if got <= 0.6 || got >= 1.0 {
		t.Errorf("Compare(renamed property) = %v, want in (0.6, 1.0)", got)
	}
}

func TestCompare_RenameMappedOwner(t *testing.T) {
	// With the owner's rename recorded, a sub-object under the old owner
	// name is indistinguishable from one under the new owner name.
	cmp := &CompareContext{}
	cmp.RecordRename(ParseName("default::User"), ParseName("default::Customer"))

	a := makeObject(KindProperty, "default::User.email", map[string]any{
		"target": ParseName("std::str"),
	})
	b := makeObject(KindProperty, "default::Customer.email", map[string]any{
		"target": ParseName("std::str"),
	})

	if got := Compare(a, b, cmp); !almostEqual(got, 1.0) {
		t.Errorf("Compare(rename-mapped) = %v, want 1.0", got)
	}
}

func TestCompare_RenameMappedReference(t *testing.T) {
	// A target reference to the renamed object also maps through.
	cmp := &CompareContext{}
	cmp.RecordRename(ParseName("default::User"), ParseName("default::Customer"))

	a := makeObject(KindLink, "default::Post.author", map[string]any{
		"target": ParseName("default::User"),
	})
	b := makeObject(KindLink, "default::Post.author", map[string]any{
		"target": ParseName("default::Customer"),
	})

	if got := Compare(a, b, cmp); !almostEqual(got, 1.0) {
		t.Errorf("Compare(mapped reference) = %v, want 1.0", got)
	}
}

func TestCompare_BaseSetOverlap(t *testing.T) {
	// Shared bases count by Jaccard overlap: one of two in common scores
	// strictly between a full match and a miss.
	full := makeObject(KindType, "default::Admin", map[string]any{
		"bases": []Name{ParseName("default::Person"), ParseName("default::Auditable")},
	})
	same := makeObject(KindType, "default::Admin", map[string]any{
		"bases": []Name{ParseName("default::Person"), ParseName("default::Auditable")},
	})
	partial := makeObject(KindType, "default::Admin", map[string]any{
		"bases": []Name{ParseName("default::Person")},
	})

	fullScore := Compare(full, same, &CompareContext{})
	partScore := Compare(full, partial, &CompareContext{})
	if !almostEqual(fullScore, 1.0) {
		t.Errorf("Compare(same bases) = %v, want 1.0", fullScore)
	}
	if partScore >= fullScore || partScore <= 0.0 {
		t.Errorf("Compare(partial bases) = %v, want in (0.0, %v)", partScore, fullScore)
	}
}

// -----------------------------------------------------------------------------
// FieldEqual Tests
// -----------------------------------------------------------------------------

func TestFieldEqual(t *testing.T) {
	cmp := &CompareContext{}
	tests := []struct {
		name string
		a    any
		b    any
		want bool
	}{
		{"equal names", ParseName("std::str"), ParseName("std::str"), true},
		{"different names", ParseName("std::str"), ParseName("std::int64"), false},
		{"equal bools", true, true, true},
		{"different bools", true, false, false},
		{"equal strings", "exclusive", "exclusive", true},
		{"similar strings are not equal", "email", "emails", false},
		{"name lists", []Name{ParseName("a::B")}, []Name{ParseName("a::B")}, true},
		{"name list order matters", []Name{ParseName("a::B"), ParseName("a::C")},
			[]Name{ParseName("a::C"), ParseName("a::B")}, false},
		{"type mismatch", "true", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FieldEqual(tt.a, tt.b, cmp); got != tt.want {
				t.Errorf("FieldEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestFieldEqual_RenameMapped(t *testing.T) {
	cmp := &CompareContext{}
	cmp.RecordRename(ParseName("default::User"), ParseName("default::Customer"))

	if !FieldEqual(ParseName("default::User"), ParseName("default::Customer"), cmp) {
		t.Errorf("FieldEqual should map the old side through recorded renames")
	}
	if FieldEqual(ParseName("default::Customer"), ParseName("default::User"), cmp) {
		t.Errorf("FieldEqual mapped the new side, mapping is old-to-new only")
	}
}
