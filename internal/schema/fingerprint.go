package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/cbergoon/merkletree"

	"github.com/pellucidb/pellucid/internal/serr"
)

// Fingerprint is the merkle root hash of a snapshot, with per-object
// hashes kept for drill-down comparison.
type Fingerprint struct {
	Root    string
	Objects map[string]string // qualified name -> object hash
}

// objectContent implements merkletree.Content for object-level hashing.
type objectContent struct {
	name string
	hash string
}

func (c objectContent) CalculateHash() ([]byte, error) {
	h := sha256.Sum256([]byte(c.hash))
	return h[:], nil
}

func (c objectContent) Equals(other merkletree.Content) (bool, error) {
	o, ok := other.(objectContent)
	if !ok {
		return false, nil
	}
	return c.hash == o.hash, nil
}

// Fingerprint computes the hierarchical hash of the snapshot. Object
// ids are excluded so that two snapshots describing the same schema
// hash identically.
func (s *Schema) Fingerprint() (*Fingerprint, error) {
	objs := s.Objects(KindAny)
	if len(objs) == 0 {
		return &Fingerprint{
			Root:    hashString("empty_schema"),
			Objects: map[string]string{},
		}, nil
	}

	result := &Fingerprint{Objects: make(map[string]string, len(objs))}
	contents := make([]merkletree.Content, 0, len(objs))

	for _, o := range objs { // already name-sorted
		h := HashObject(o)
		result.Objects[o.Name.String()] = h
		contents = append(contents, objectContent{name: o.Name.String(), hash: h})
	}

	tree, err := merkletree.NewTree(contents)
	if err != nil {
		return nil, serr.Wrap(serr.ErrInternal, err, "failed to build merkle tree")
	}
	result.Root = hex.EncodeToString(tree.MerkleRoot())
	return result, nil
}

// HashObject computes a deterministic content hash for one object.
// The same hash is used as the match-criteria key in diffing: objects
// with equal hashes need no similarity scoring.
func HashObject(o *Object) string {
	parts := []string{
		"kind:" + o.Kind.String(),
		"name:" + o.Name.String(),
	}
	for _, fname := range o.FieldNames() {
		parts = append(parts, fname+":"+fieldHashText(o.fields[fname]))
	}
	return hashString(strings.Join(parts, "|"))
}

func fieldHashText(v any) string {
	switch tv := v.(type) {
	case Name:
		return tv.String()
	case []Name:
		ss := make([]string, len(tv))
		for i, n := range tv {
			ss[i] = n.String()
		}
		sort.Strings(ss)
		return "[" + strings.Join(ss, ",") + "]"
	case *Shell:
		return tv.Name.String()
	case texter:
		return tv.Normalized()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// CompareFingerprints reports the objects that changed between two
// fingerprints. Results are sorted for deterministic output.
type FingerprintDiff struct {
	Match    bool
	Missing  []string // in expected, absent from actual
	Extra    []string // in actual, absent from expected
	Modified []string // present in both with differing hashes
}

func CompareFingerprints(expected, actual *Fingerprint) *FingerprintDiff {
	d := &FingerprintDiff{Match: expected.Root == actual.Root}
	if d.Match {
		return d
	}
	for name, h := range expected.Objects {
		ah, ok := actual.Objects[name]
		if !ok {
			d.Missing = append(d.Missing, name)
		} else if h != ah {
			d.Modified = append(d.Modified, name)
		}
	}
	for name := range actual.Objects {
		if _, ok := expected.Objects[name]; !ok {
			d.Extra = append(d.Extra, name)
		}
	}
	sort.Strings(d.Missing)
	sort.Strings(d.Extra)
	sort.Strings(d.Modified)
	return d
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
