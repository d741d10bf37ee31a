// Package registry holds the check catalog and loads suite manifests and lane catalogs.
package registry

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/bijux/atlasctl/types"
	"github.com/ethereum/go-ethereum/log"
)

// Registry is the catalog of registered checks. It is populated once at startup and
// only read afterwards.
type Registry struct {
	log    log.Logger
	checks map[string]types.CheckDescriptor
	mu     sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Registry{
		log:    cfg.Log.New("component", "registry"),
		checks: make(map[string]types.CheckDescriptor),
	}
}

// Register adds a check to the catalog.
func (r *Registry) Register(desc types.CheckDescriptor) error {
	id := strings.TrimSpace(desc.ID)
	if id == "" {
		return &types.ConfigError{Source: "check registry", Message: "check id cannot be empty"}
	}
	if desc.Check == nil {
		return &types.ConfigError{Source: "check registry", Message: fmt.Sprintf("check %q has no implementation", id)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.checks[id]; exists {
		return &types.DuplicateIDError{Kind: "check", ID: id}
	}
	desc.ID = id
	desc.Tags = slices.Clone(desc.Tags)
	desc.Effects = slices.Clone(desc.Effects)
	r.checks[id] = desc
	r.log.Debug("Registered check", "id", id, "domain", desc.Domain, "tags", desc.Tags)
	return nil
}

// RegisterAll registers every descriptor, stopping at the first error.
func (r *Registry) RegisterAll(descs ...types.CheckDescriptor) error {
	for _, desc := range descs {
		if err := r.Register(desc); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the descriptor registered under id.
func (r *Registry) Lookup(id string) (types.CheckDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.checks[id]
	return desc, ok
}

// Checks returns every registered check ordered by id.
func (r *Registry) Checks() []types.CheckDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.CheckDescriptor, 0, len(r.checks))
	for _, desc := range r.checks {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ChecksByTag returns the checks carrying tag, ordered by id.
func (r *Registry) ChecksByTag(tag string) []types.CheckDescriptor {
	var out []types.CheckDescriptor
	for _, desc := range r.Checks() {
		if desc.HasTag(tag) {
			out = append(out, desc)
		}
	}
	return out
}

// Domains returns the distinct owning domains, sorted.
func (r *Registry) Domains() []string {
	seen := make(map[string]struct{})
	for _, desc := range r.Checks() {
		seen[desc.Domain] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for domain := range seen {
		out = append(out, domain)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered checks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.checks)
}
