// Package cache provides local caching of schema snapshots and their
// fingerprints, keyed by revision. The cache lives in .pellucid/cache.db
// (SQLite), is gitignored, and can always be rebuilt from snapshot files.
package cache

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/pellucidb/pellucid/internal/schema"
	"github.com/pellucidb/pellucid/internal/serr"
)

const (
	// CacheDir is the directory name for the cache (gitignored).
	CacheDir = ".pellucid"
	// CacheFile is the SQLite database file name.
	CacheFile = "cache.db"
)

// Cache stores schema snapshots and fingerprints per revision.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens or creates the cache database at the given project root.
func Open(projectRoot string) (*Cache, error) {
	cacheDir := filepath.Join(projectRoot, CacheDir)
	cachePath := filepath.Join(cacheDir, CacheFile)

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, serr.Wrap(serr.ErrCacheInit, err, "failed to create cache directory").
			With("path", cacheDir)
	}

	db, err := sql.Open("sqlite", cachePath)
	if err != nil {
		return nil, serr.Wrap(serr.ErrCacheInit, err, "failed to open cache database").
			With("path", cachePath)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, serr.Wrap(serr.ErrCacheInit, err, "failed to connect to cache database").
			With("path", cachePath)
	}

	c := &Cache{db: db, path: cachePath}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the cache database connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Path returns the path to the cache database file.
func (c *Cache) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

func (c *Cache) initSchema() error {
	ddl := `
		-- Schema snapshots per revision
		CREATE TABLE IF NOT EXISTS snapshots (
			revision       TEXT PRIMARY KEY,
			snapshot_yaml  TEXT NOT NULL,
			created_at     TEXT NOT NULL
		);

		-- Snapshot fingerprints per revision
		CREATE TABLE IF NOT EXISTS fingerprints (
			revision          TEXT PRIMARY KEY,
			fingerprint_json  TEXT NOT NULL,
			root_hash         TEXT NOT NULL,
			created_at        TEXT NOT NULL
		);

		-- Cache metadata (version, etc.)
		CREATE TABLE IF NOT EXISTS cache_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		INSERT OR REPLACE INTO cache_meta (key, value) VALUES ('version', '1');
	`

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec(ddl); err != nil {
		return serr.Wrap(serr.ErrCacheInit, err, "failed to initialize cache schema")
	}
	return nil
}

// GetSnapshot retrieves the snapshot for a revision. Returns nil when
// the revision is not cached.
func (c *Cache) GetSnapshot(revision string) (*schema.Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var doc string
	err := c.db.QueryRow(
		"SELECT snapshot_yaml FROM snapshots WHERE revision = ?",
		revision,
	).Scan(&doc)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(serr.ErrCacheRead, err, "failed to read snapshot").
			With("revision", revision)
	}
	return schema.LoadSnapshot([]byte(doc))
}

// SetSnapshot stores the snapshot for a revision.
func (c *Cache) SetSnapshot(revision string, s *schema.Schema) error {
	data, err := schema.SaveSnapshot(s)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO snapshots (revision, snapshot_yaml, created_at) VALUES (?, ?, ?)",
		revision, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return serr.Wrap(serr.ErrCacheWrite, err, "failed to write snapshot").
			With("revision", revision)
	}
	return nil
}

// DeleteSnapshot removes the snapshot for a revision.
func (c *Cache) DeleteSnapshot(revision string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM snapshots WHERE revision = ?", revision); err != nil {
		return serr.Wrap(serr.ErrCacheWrite, err, "failed to delete snapshot").
			With("revision", revision)
	}
	return nil
}

// ListSnapshots returns all revisions with cached snapshots.
func (c *Cache) ListSnapshots() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.db.Query("SELECT revision FROM snapshots ORDER BY revision")
	if err != nil {
		return nil, serr.Wrap(serr.ErrCacheRead, err, "failed to list snapshots")
	}
	defer rows.Close()

	var revisions []string
	for rows.Next() {
		var revision string
		if err := rows.Scan(&revision); err != nil {
			return nil, serr.Wrap(serr.ErrCacheRead, err, "failed to scan revision")
		}
		revisions = append(revisions, revision)
	}
	return revisions, rows.Err()
}

// GetFingerprint retrieves the fingerprint for a revision. Returns nil
// when the revision is not cached.
func (c *Cache) GetFingerprint(revision string) (*schema.Fingerprint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var doc string
	err := c.db.QueryRow(
		"SELECT fingerprint_json FROM fingerprints WHERE revision = ?",
		revision,
	).Scan(&doc)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(serr.ErrCacheRead, err, "failed to read fingerprint").
			With("revision", revision)
	}

	var fp schema.Fingerprint
	if err := json.Unmarshal([]byte(doc), &fp); err != nil {
		return nil, serr.Wrap(serr.ErrCacheRead, err, "corrupt cached fingerprint").
			With("revision", revision)
	}
	return &fp, nil
}

// GetRootHash retrieves just the root hash for a revision. Returns an
// empty string when not cached.
func (c *Cache) GetRootHash(revision string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var root string
	err := c.db.QueryRow(
		"SELECT root_hash FROM fingerprints WHERE revision = ?",
		revision,
	).Scan(&root)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", serr.Wrap(serr.ErrCacheRead, err, "failed to read root hash").
			With("revision", revision)
	}
	return root, nil
}

// SetFingerprint stores the fingerprint for a revision.
func (c *Cache) SetFingerprint(revision string, fp *schema.Fingerprint) error {
	data, err := json.Marshal(fp)
	if err != nil {
		return serr.Wrap(serr.ErrCacheWrite, err, "failed to encode fingerprint").
			With("revision", revision)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO fingerprints (revision, fingerprint_json, root_hash, created_at) VALUES (?, ?, ?, ?)",
		revision, string(data), fp.Root, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return serr.Wrap(serr.ErrCacheWrite, err, "failed to write fingerprint").
			With("revision", revision)
	}
	return nil
}

// DeleteFingerprint removes the fingerprint for a revision.
func (c *Cache) DeleteFingerprint(revision string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM fingerprints WHERE revision = ?", revision); err != nil {
		return serr.Wrap(serr.ErrCacheWrite, err, "failed to delete fingerprint").
			With("revision", revision)
	}
	return nil
}

// DeleteRevision removes all cached data for a revision.
func (c *Cache) DeleteRevision(revision string) error {
	if err := c.DeleteSnapshot(revision); err != nil {
		return err
	}
	return c.DeleteFingerprint(revision)
}

// Clear removes all cached data.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, table := range []string{"snapshots", "fingerprints"} {
		if _, err := c.db.Exec("DELETE FROM " + table); err != nil {
			return serr.Wrap(serr.ErrCacheWrite, err, "failed to clear cache").
				With("table", table)
		}
	}
	return nil
}

// Version returns the cache schema version.
func (c *Cache) Version() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var version string
	err := c.db.QueryRow("SELECT value FROM cache_meta WHERE key = 'version'").Scan(&version)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", serr.Wrap(serr.ErrCacheRead, err, "failed to read cache version")
	}
	return version, nil
}

// Stats summarizes cache contents.
type Stats struct {
	Snapshots    int
	Fingerprints int
	DatabaseSize int64
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := &Stats{}
	if err := c.db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&stats.Snapshots); err != nil {
		return nil, serr.Wrap(serr.ErrCacheRead, err, "failed to count snapshots")
	}
	if err := c.db.QueryRow("SELECT COUNT(*) FROM fingerprints").Scan(&stats.Fingerprints); err != nil {
		return nil, serr.Wrap(serr.ErrCacheRead, err, "failed to count fingerprints")
	}
	if fi, err := os.Stat(c.path); err == nil {
		stats.DatabaseSize = fi.Size()
	}
	return stats, nil
}

// Exists checks whether a cache database exists at the project root.
func Exists(projectRoot string) bool {
	_, err := os.Stat(filepath.Join(projectRoot, CacheDir, CacheFile))
	return err == nil
}

// Remove deletes the entire cache directory.
func Remove(projectRoot string) error {
	cacheDir := filepath.Join(projectRoot, CacheDir)
	if err := os.RemoveAll(cacheDir); err != nil {
		return serr.Wrap(serr.ErrCacheWrite, err, "failed to remove cache directory").
			With("path", cacheDir)
	}
	return nil
}

// GetOrComputeFingerprint retrieves a fingerprint from cache, or
// computes and caches it. Cache write failures are ignored: the cache
// is optional.
func (c *Cache) GetOrComputeFingerprint(revision string, compute func() (*schema.Fingerprint, error)) (*schema.Fingerprint, error) {
	fp, err := c.GetFingerprint(revision)
	if err != nil {
		return nil, err
	}
	if fp != nil {
		return fp, nil
	}

	fp, err = compute()
	if err != nil {
		return nil, err
	}
	_ = c.SetFingerprint(revision, fp)
	return fp, nil
}
