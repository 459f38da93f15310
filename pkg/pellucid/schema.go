package pellucid

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pellucidb/pellucid/internal/ddl"
	"github.com/pellucidb/pellucid/internal/delta"
	"github.com/pellucidb/pellucid/internal/schema"
)

// schemaFiles returns the schema documents under the schema directory,
// sorted by path for deterministic compile order.
func (c *Client) schemaFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(c.config.SchemaDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, &SchemaError{
			File:    c.config.SchemaDir,
			Message: "failed to read schema directory",
			Cause:   err,
		}
	}
	if len(files) == 0 {
		return nil, ErrNoSchemaFiles
	}
	sort.Strings(files)
	return files, nil
}

// loadDocuments parses every schema document in the schema directory.
// Documents without an explicit module fall back to the configured
// default module.
func (c *Client) loadDocuments() ([]*ddl.Document, error) {
	files, err := c.schemaFiles()
	if err != nil {
		return nil, err
	}

	docs := make([]*ddl.Document, 0, len(files))
	for _, file := range files {
		doc, err := c.parseDocument(file)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// parseDocument parses a single schema document.
func (c *Client) parseDocument(path string) (*ddl.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SchemaError{File: path, Message: "failed to read schema document", Cause: err}
	}
	doc, err := ddl.Parse(path, data)
	if err != nil {
		return nil, &SchemaError{File: path, Message: "failed to parse schema document", Cause: err}
	}
	if doc.Module == "" {
		doc.Module = c.config.DefaultModule
	}
	return doc, nil
}

// TargetSchema compiles all schema documents into the desired snapshot.
// Each document is compiled and applied in path order against the
// snapshot produced by its predecessors.
func (c *Client) TargetSchema() (*schema.Schema, error) {
	docs, err := c.loadDocuments()
	if err != nil {
		return nil, err
	}

	s := schema.New()
	for _, doc := range docs {
		root, err := delta.CompileDDL(s, doc)
		if err != nil {
			return nil, err
		}
		s, err = root.Apply(delta.NewContext(), s)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// CurrentSchema returns the last applied snapshot from the cache, or an
// empty snapshot when nothing has been applied yet.
func (c *Client) CurrentSchema() (*schema.Schema, error) {
	if c.cache == nil {
		return schema.New(), nil
	}
	s, err := c.cache.GetSnapshot(headRevision)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return schema.New(), nil
	}
	return s, nil
}

// ExportSnapshot writes the last applied snapshot to a file in the
// snapshot document format.
func (c *Client) ExportSnapshot(path string) error {
	s, err := c.CurrentSchema()
	if err != nil {
		return err
	}
	data, err := schema.SaveSnapshot(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ImportSnapshot replaces the last applied snapshot with one read from
// a snapshot document. Used to seed the cache from a known baseline.
func (c *Client) ImportSnapshot(path string) error {
	if c.cache == nil {
		return ErrCacheDisabled
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s, err := schema.LoadSnapshot(data)
	if err != nil {
		return err
	}
	return c.saveHead(s)
}

// saveHead stores a snapshot and its fingerprint as the new head.
func (c *Client) saveHead(s *schema.Schema) error {
	if c.cache == nil {
		return nil
	}
	if err := c.cache.SetSnapshot(headRevision, s); err != nil {
		return err
	}
	fp, err := s.Fingerprint()
	if err != nil {
		return err
	}
	return c.cache.SetFingerprint(headRevision, fp)
}
