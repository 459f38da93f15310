package pellucid

import (
	"fmt"
	"strings"

	"github.com/pellucidb/pellucid/internal/schema"
)

// DriftResult reports how the schema documents on disk differ from the
// last applied snapshot. Root hashes allow a fast equality check; the
// object lists carry the detailed breakdown.
type DriftResult struct {
	// HasDrift is true if any differences were found.
	HasDrift bool

	// SnapshotHash is the fingerprint root of the last applied snapshot.
	SnapshotHash string

	// TargetHash is the fingerprint root of the compiled schema documents.
	TargetHash string

	// MissingObjects lists objects declared on disk but absent from
	// the snapshot.
	MissingObjects []string

	// ExtraObjects lists objects in the snapshot that the documents no
	// longer declare.
	ExtraObjects []string

	// ModifiedObjects lists objects whose definitions differ.
	ModifiedObjects []string
}

// CheckDrift compares the compiled schema documents against the last
// applied snapshot using hierarchical fingerprints. Matching root
// hashes short-circuit without an object-level comparison.
func (c *Client) CheckDrift() (*DriftResult, error) {
	current, err := c.CurrentSchema()
	if err != nil {
		return nil, err
	}
	target, err := c.TargetSchema()
	if err != nil {
		return nil, err
	}

	snapFP, err := c.snapshotFingerprint(current)
	if err != nil {
		return nil, err
	}
	targetFP, err := target.Fingerprint()
	if err != nil {
		return nil, err
	}

	result := &DriftResult{
		SnapshotHash: snapFP.Root,
		TargetHash:   targetFP.Root,
	}

	if snapFP.Root == targetFP.Root {
		return result, nil
	}

	// Expected is what the documents declare; actual is the snapshot.
	diff := schema.CompareFingerprints(targetFP, snapFP)
	result.HasDrift = true
	result.MissingObjects = diff.Missing
	result.ExtraObjects = diff.Extra
	result.ModifiedObjects = diff.Modified
	return result, nil
}

// snapshotFingerprint returns the stored head fingerprint, computing
// and caching it when absent.
func (c *Client) snapshotFingerprint(current *schema.Schema) (*schema.Fingerprint, error) {
	if c.cache == nil {
		return current.Fingerprint()
	}
	return c.cache.GetOrComputeFingerprint(headRevision, func() (*schema.Fingerprint, error) {
		return current.Fingerprint()
	})
}

// FormatDriftResult returns a user-friendly string representation of a
// drift result.
func FormatDriftResult(r *DriftResult) string {
	if r == nil {
		return "No drift result available."
	}
	if !r.HasDrift {
		return "Snapshot matches schema documents."
	}

	var b strings.Builder
	b.WriteString("Schema drift detected.\n")
	b.WriteString(fmt.Sprintf("  snapshot: %s\n", shortHash(r.SnapshotHash)))
	b.WriteString(fmt.Sprintf("  target:   %s\n", shortHash(r.TargetHash)))
	for _, name := range r.MissingObjects {
		b.WriteString(fmt.Sprintf("  missing:  %s\n", name))
	}
	for _, name := range r.ExtraObjects {
		b.WriteString(fmt.Sprintf("  extra:    %s\n", name))
	}
	for _, name := range r.ModifiedObjects {
		b.WriteString(fmt.Sprintf("  modified: %s\n", name))
	}
	return b.String()
}

// shortHash truncates a fingerprint hash for display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
