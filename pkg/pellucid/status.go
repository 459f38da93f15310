package pellucid

import "github.com/pellucidb/pellucid/internal/cache"

// CacheStats summarizes the snapshot cache contents.
type CacheStats struct {
	// Snapshots is the number of stored snapshots.
	Snapshots int

	// Fingerprints is the number of stored fingerprints.
	Fingerprints int

	// DatabaseSize is the cache database size in bytes.
	DatabaseSize int64
}

// CacheStats returns statistics about the snapshot cache.
func (c *Client) CacheStats() (*CacheStats, error) {
	if c.cache == nil {
		return nil, ErrCacheDisabled
	}
	stats, err := c.cache.GetStats()
	if err != nil {
		return nil, err
	}
	return &CacheStats{
		Snapshots:    stats.Snapshots,
		Fingerprints: stats.Fingerprints,
		DatabaseSize: stats.DatabaseSize,
	}, nil
}

// ClearCache removes all snapshots and fingerprints from the cache.
// The next plan starts from an empty snapshot.
func (c *Client) ClearCache() error {
	if c.cache == nil {
		return ErrCacheDisabled
	}
	return c.cache.Clear()
}

// CacheExists reports whether a snapshot cache exists under the given
// project root.
func CacheExists(projectRoot string) bool {
	return cache.Exists(projectRoot)
}

// RemoveCache deletes the snapshot cache directory under the given
// project root.
func RemoveCache(projectRoot string) error {
	return cache.Remove(projectRoot)
}
