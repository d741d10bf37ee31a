package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bijux/atlasctl/types"
	"gopkg.in/yaml.v3"
)

// suiteEntry is the on-disk shape of a suite, shared by the YAML and TOML loaders.
type suiteEntry struct {
	Name           string   `yaml:"name" toml:"name"`
	Description    string   `yaml:"description" toml:"description"`
	Includes       []string `yaml:"includes" toml:"includes"`
	Items          []string `yaml:"items" toml:"items"`
	Complete       bool     `yaml:"complete" toml:"complete"`
	Markers        []string `yaml:"markers" toml:"markers"`
	RequiredEnv    []string `yaml:"required_env" toml:"required_env"`
	DefaultEffects []string `yaml:"default_effects" toml:"default_effects"`
	CheckIDs       []string `yaml:"check_ids" toml:"check_ids"`
	TimeBudgetMS   int64    `yaml:"time_budget_ms" toml:"time_budget_ms"`
	Internal       bool     `yaml:"internal" toml:"internal"`
}

func (e suiteEntry) manifest(kind types.SuiteKind) types.SuiteManifest {
	return types.SuiteManifest{
		Name:           strings.TrimSpace(e.Name),
		Kind:           kind,
		Description:    e.Description,
		Includes:       slices.Clone(e.Includes),
		Items:          slices.Clone(e.Items),
		Complete:       e.Complete,
		Markers:        slices.Clone(e.Markers),
		RequiredEnv:    slices.Clone(e.RequiredEnv),
		DefaultEffects: slices.Clone(e.DefaultEffects),
		CheckIDs:       slices.Clone(e.CheckIDs),
		TimeBudgetMS:   e.TimeBudgetMS,
		Internal:       e.Internal,
	}
}

// manifestFile is the YAML/JSON suite manifest document.
type manifestFile struct {
	Default    string       `yaml:"default"`
	Suites     []suiteEntry `yaml:"suites"`
	FirstClass []suiteEntry `yaml:"first_class"`
}

// tomlSection holds suites keyed by name plus a `default` string key, the layout used in
// pyproject-style files.
type tomlSection struct {
	Suites     map[string]toml.Primitive `toml:"suites"`
	FirstClass []suiteEntry              `toml:"first_class"`
}

type tomlFile struct {
	Tool struct {
		Atlasctl *tomlSection `toml:"atlasctl"`
	} `toml:"tool"`
	Suites     map[string]toml.Primitive `toml:"suites"`
	FirstClass []suiteEntry              `toml:"first_class"`
}

// SuiteSet is the validated, read-only collection of suite manifests.
type SuiteSet struct {
	defaultName string
	suites      map[string]types.SuiteManifest
	names       []string
}

// LoadSuiteManifests reads suite manifests from path. The format is chosen by extension:
// .yaml, .yml and .json are decoded as YAML, .toml as a pyproject-style table.
func LoadSuiteManifests(path string) (*SuiteSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.ConfigError{Source: path, Message: fmt.Sprintf("failed to read suite manifest: %v", err)}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return parseTOMLManifests(path, data)
	case ".yaml", ".yml", ".json":
		return parseYAMLManifests(path, data)
	default:
		return nil, &types.ConfigError{Source: path, Message: "unsupported suite manifest format"}
	}
}

func parseYAMLManifests(source string, data []byte) (*SuiteSet, error) {
	var file manifestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &types.ConfigError{Source: source, Message: fmt.Sprintf("failed to parse suite manifest: %v", err)}
	}
	manifests := make([]types.SuiteManifest, 0, len(file.Suites)+len(file.FirstClass))
	for _, entry := range file.Suites {
		manifests = append(manifests, entry.manifest(types.SuiteKindLegacy))
	}
	for _, entry := range file.FirstClass {
		manifests = append(manifests, entry.manifest(types.SuiteKindFirstClass))
	}
	return NewSuiteSet(source, strings.TrimSpace(file.Default), manifests)
}

func parseTOMLManifests(source string, data []byte) (*SuiteSet, error) {
	var file tomlFile
	md, err := toml.Decode(string(data), &file)
	if err != nil {
		return nil, &types.ConfigError{Source: source, Message: fmt.Sprintf("failed to parse suite manifest: %v", err)}
	}
	section := &tomlSection{Suites: file.Suites, FirstClass: file.FirstClass}
	if file.Tool.Atlasctl != nil {
		section = file.Tool.Atlasctl
	}

	var (
		defaultName string
		manifests   []types.SuiteManifest
	)
	keys := make([]string, 0, len(section.Suites))
	for key := range section.Suites {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		prim := section.Suites[key]
		if key == "default" {
			if err := md.PrimitiveDecode(prim, &defaultName); err != nil {
				return nil, &types.ConfigError{Source: source, Message: fmt.Sprintf("default suite must be a string: %v", err)}
			}
			continue
		}
		var entry suiteEntry
		if err := md.PrimitiveDecode(prim, &entry); err != nil {
			return nil, &types.ConfigError{Source: source, Message: fmt.Sprintf("invalid suite %q: %v", key, err)}
		}
		if entry.Name == "" {
			entry.Name = key
		}
		manifests = append(manifests, entry.manifest(types.SuiteKindLegacy))
	}
	for _, entry := range section.FirstClass {
		manifests = append(manifests, entry.manifest(types.SuiteKindFirstClass))
	}
	return NewSuiteSet(source, strings.TrimSpace(defaultName), manifests)
}

// NewSuiteSet validates manifests and builds a SuiteSet. Duplicate names, unknown
// include targets, malformed items, first-class suites with includes or items, and an
// undefined default are all configuration errors.
func NewSuiteSet(source, defaultName string, manifests []types.SuiteManifest) (*SuiteSet, error) {
	set := &SuiteSet{
		defaultName: defaultName,
		suites:      make(map[string]types.SuiteManifest, len(manifests)),
	}
	for _, m := range manifests {
		if m.Name == "" {
			return nil, &types.ConfigError{Source: source, Message: "suite name cannot be empty"}
		}
		if _, exists := set.suites[m.Name]; exists {
			return nil, &types.ConfigError{Source: source, Message: fmt.Sprintf("duplicate suite name %q", m.Name)}
		}
		if m.Kind == "" {
			m.Kind = types.SuiteKindLegacy
		}
		set.suites[m.Name] = m
		set.names = append(set.names, m.Name)
	}
	sort.Strings(set.names)

	for _, name := range set.names {
		m := set.suites[name]
		if m.IsFirstClass() {
			if len(m.Includes) > 0 || len(m.Items) > 0 {
				return nil, &types.ConfigError{Source: source, Message: fmt.Sprintf("first-class suite %q cannot declare includes or items", name)}
			}
			for _, id := range m.CheckIDs {
				if strings.TrimSpace(id) == "" {
					return nil, &types.ConfigError{Source: source, Message: fmt.Sprintf("first-class suite %q has an empty check id", name)}
				}
			}
			continue
		}
		if len(m.CheckIDs) > 0 {
			return nil, &types.ConfigError{Source: source, Message: fmt.Sprintf("suite %q declares check_ids but is not first-class", name)}
		}
		for _, inc := range m.Includes {
			if _, ok := set.suites[inc]; !ok {
				return nil, &types.ConfigError{Source: source, Message: fmt.Sprintf("suite %q includes unknown suite %q", name, inc)}
			}
		}
		for _, item := range m.Items {
			if _, err := types.ParseTaskToken(name, item); err != nil {
				return nil, err
			}
		}
	}

	if defaultName != "" {
		if _, ok := set.suites[defaultName]; !ok {
			return nil, &types.ConfigError{Source: source, Message: fmt.Sprintf("default suite %q is not defined", defaultName)}
		}
	}
	return set, nil
}

// Get returns the named suite.
func (s *SuiteSet) Get(name string) (types.SuiteManifest, error) {
	m, ok := s.suites[name]
	if !ok {
		return types.SuiteManifest{}, &types.UnknownSuiteError{Name: name}
	}
	return m, nil
}

// Resolve returns the named suite, falling back to the default suite when name is empty.
func (s *SuiteSet) Resolve(name string) (types.SuiteManifest, error) {
	if name == "" {
		if s.defaultName == "" {
			return types.SuiteManifest{}, &types.ConfigError{Message: "no suite name given and no default suite configured"}
		}
		name = s.defaultName
	}
	return s.Get(name)
}

// Default returns the configured default suite name, if any.
func (s *SuiteSet) Default() string {
	return s.defaultName
}

// Names returns every suite name, sorted.
func (s *SuiteSet) Names() []string {
	return slices.Clone(s.names)
}

// Legacy returns the legacy suites ordered by name.
func (s *SuiteSet) Legacy() []types.SuiteManifest {
	return s.byKind(types.SuiteKindLegacy)
}

// FirstClass returns the first-class suites ordered by name.
func (s *SuiteSet) FirstClass() []types.SuiteManifest {
	return s.byKind(types.SuiteKindFirstClass)
}

// All returns every suite ordered by name.
func (s *SuiteSet) All() []types.SuiteManifest {
	out := make([]types.SuiteManifest, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.suites[name])
	}
	return out
}

func (s *SuiteSet) byKind(kind types.SuiteKind) []types.SuiteManifest {
	var out []types.SuiteManifest
	for _, name := range s.names {
		if m := s.suites[name]; m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}
