// Package pellucid is the public API for the Pellucid schema migration
// engine. It loads declarative schema documents, diffs them against the
// last applied snapshot, and produces ordered migration plans.
package pellucid

import (
	"github.com/pellucidb/pellucid/internal/cache"
)

// headRevision is the cache revision holding the last applied snapshot.
const headRevision = "head"

// Client is the main entry point for the Pellucid migration engine.
// It provides methods for compiling schema documents, planning
// migrations, applying plans, and detecting snapshot drift.
//
// Create a new client with New() and close it with Close() when done.
//
// Example:
//
//	client, err := pellucid.New(
//	    pellucid.WithSchemaDir("./schema"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	plan, err := client.Plan()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Apply(plan); err != nil {
//	    log.Fatal(err)
//	}
type Client struct {
	config *Config
	cache  *cache.Cache
}

// New creates a new Client with the given options.
//
// The snapshot cache is opened under the project root unless
// WithoutCache is given. Schema documents are read from the schema
// directory (default ./schema).
func New(opts ...Option) (*Client, error) {
	cfg := &Config{
		ProjectRoot:   ".",
		SchemaDir:     "./schema",
		DefaultModule: "default",
	}

	for _, opt := range opts {
		opt(cfg)
	}

	c := &Client{config: cfg}

	if !cfg.NoCache {
		db, err := cache.Open(cfg.ProjectRoot)
		if err != nil {
			return nil, err
		}
		c.cache = db
	}

	return c, nil
}

// Close releases the snapshot cache. It should be called when the
// client is no longer needed.
func (c *Client) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config {
	return *c.config
}

// CachePath returns the path of the snapshot cache database, or empty
// string when the cache is disabled.
func (c *Client) CachePath() string {
	if c.cache == nil {
		return ""
	}
	return c.cache.Path()
}

// log logs a message if a logger is configured.
func (c *Client) log(format string, v ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Printf(format, v...)
	}
}
