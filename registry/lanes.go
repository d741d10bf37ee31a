package registry

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/bijux/atlasctl/types"
	"gopkg.in/yaml.v3"
)

type laneFile struct {
	Lanes   []types.Lane        `yaml:"lanes"`
	Presets map[string][]string `yaml:"presets"`
}

// LaneCatalog is the validated set of gate lanes and their presets.
type LaneCatalog struct {
	lanes   map[string]types.Lane
	ids     []string
	presets map[string][]string
}

// LoadLanes reads a lane catalog. JSON is decoded through the YAML parser so both
// formats are accepted.
func LoadLanes(path string) (*LaneCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.ConfigError{Source: path, Message: fmt.Sprintf("failed to read lane catalog: %v", err)}
	}
	var file laneFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &types.ConfigError{Source: path, Message: fmt.Sprintf("failed to parse lane catalog: %v", err)}
	}
	return NewLaneCatalog(path, file.Lanes, file.Presets)
}

// NewLaneCatalog validates lanes and presets.
func NewLaneCatalog(source string, lanes []types.Lane, presets map[string][]string) (*LaneCatalog, error) {
	c := &LaneCatalog{
		lanes:   make(map[string]types.Lane, len(lanes)),
		presets: make(map[string][]string, len(presets)),
	}
	for _, lane := range lanes {
		lane.ID = strings.TrimSpace(lane.ID)
		lane.MakeTarget = strings.TrimSpace(lane.MakeTarget)
		if lane.ID == "" {
			return nil, &types.ConfigError{Source: source, Message: "lane id cannot be empty"}
		}
		if lane.MakeTarget == "" {
			return nil, &types.ConfigError{Source: source, Message: fmt.Sprintf("lane %q has no make_target", lane.ID)}
		}
		if _, exists := c.lanes[lane.ID]; exists {
			return nil, &types.ConfigError{Source: source, Message: fmt.Sprintf("duplicate lane id %q", lane.ID)}
		}
		c.lanes[lane.ID] = lane
		c.ids = append(c.ids, lane.ID)
	}
	sort.Strings(c.ids)

	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ids := presets[name]
		var unknown []string
		for _, id := range ids {
			if _, ok := c.lanes[id]; !ok {
				unknown = append(unknown, id)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return nil, &types.ConfigError{
				Source:  source,
				Message: fmt.Sprintf("preset %q references unknown lanes: %s", name, strings.Join(unknown, ", ")),
			}
		}
		c.presets[name] = slices.Clone(ids)
	}
	return c, nil
}

// Lookup returns the lane with the given id.
func (c *LaneCatalog) Lookup(id string) (types.Lane, bool) {
	lane, ok := c.lanes[id]
	return lane, ok
}

// Lanes returns every lane ordered by id.
func (c *LaneCatalog) Lanes() []types.Lane {
	out := make([]types.Lane, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.lanes[id])
	}
	return out
}

// Preset returns the lane ids of a preset in declared order.
func (c *LaneCatalog) Preset(name string) ([]string, bool) {
	ids, ok := c.presets[name]
	return slices.Clone(ids), ok
}

// PresetNames returns the preset names, sorted.
func (c *LaneCatalog) PresetNames() []string {
	out := make([]string, 0, len(c.presets))
	for name := range c.presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
