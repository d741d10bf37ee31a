// Package schema resolves named JSON schemas and validates payloads against them.
package schema

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.schema.json
var builtinFS embed.FS

const schemaSuffix = ".schema.json"

// ErrUnknownSchema is returned when a schema name resolves to no file.
var ErrUnknownSchema = errors.New("unknown schema")

// Catalog looks schemas up by name in a repository directory first and in the embedded
// built-in set second. Resolved schemas are cached.
type Catalog struct {
	dir string

	mu       sync.Mutex
	resolved map[string]*jsonschema.Resolved
}

// NewCatalog creates a Catalog rooted at dir. An empty dir only serves built-in schemas.
func NewCatalog(dir string) *Catalog {
	return &Catalog{
		dir:      dir,
		resolved: make(map[string]*jsonschema.Resolved),
	}
}

// Names lists every schema name the catalog can resolve, sorted.
func (c *Catalog) Names() []string {
	seen := make(map[string]struct{})
	entries, _ := fs.ReadDir(builtinFS, "schemas")
	for _, e := range entries {
		seen[strings.TrimSuffix(e.Name(), schemaSuffix)] = struct{}{}
	}
	if c.dir != "" {
		files, _ := os.ReadDir(c.dir)
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			name := strings.TrimSuffix(f.Name(), schemaSuffix)
			name = strings.TrimSuffix(name, ".json")
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Exists reports whether name resolves to a schema document.
func (c *Catalog) Exists(name string) bool {
	_, err := c.load(name)
	return err == nil
}

func (c *Catalog) load(name string) ([]byte, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, name)
	}
	if c.dir != "" {
		for _, candidate := range []string{name + schemaSuffix, name + ".json"} {
			data, err := os.ReadFile(filepath.Join(c.dir, candidate))
			if err == nil {
				return data, nil
			}
		}
	}
	data, err := builtinFS.ReadFile("schemas/" + name + schemaSuffix)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, name)
	}
	return data, nil
}

// Resolve returns the compiled schema for name.
func (c *Catalog) Resolve(name string) (*jsonschema.Resolved, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.resolved[name]; ok {
		return r, nil
	}
	data, err := c.load(name)
	if err != nil {
		return nil, err
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema %q: %w", name, err)
	}
	r, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema %q: %w", name, err)
	}
	c.resolved[name] = r
	return r, nil
}

// ValidateValue validates any JSON-marshalable value against the named schema.
func (c *Catalog) ValidateValue(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	return c.ValidateJSON(name, data)
}

// ValidateJSON validates a JSON document against the named schema.
func (c *Catalog) ValidateJSON(name string, data []byte) error {
	r, err := c.Resolve(name)
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if err := r.Validate(instance); err != nil {
		return fmt.Errorf("payload does not match schema %q: %w", name, err)
	}
	return nil
}

// ValidateFile validates a JSON or YAML file against the named schema.
func (c *Catalog) ValidateFile(name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("payload is not valid YAML: %w", err)
		}
		return c.ValidateValue(name, doc)
	default:
		return c.ValidateJSON(name, data)
	}
}
