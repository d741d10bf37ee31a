package suite

import (
	"fmt"
	"slices"
	"sort"

	"github.com/bijux/atlasctl/types"
)

// CoverageRow records which suites reach a registered check.
type CoverageRow struct {
	CheckID string   `json:"check_id"`
	Domain  string   `json:"domain"`
	Suites  []string `json:"suites"`
}

// Inventory is the cross-reference between the check catalog and the suite set.
type Inventory struct {
	Coverage   []CoverageRow `json:"coverage"`
	Unassigned []string      `json:"unassigned"`
	Violations []string      `json:"violations"`
}

// BuildInventory expands every suite and reports checks without first-class suite
// membership plus suite policy violations. Coverage and Unassigned only count first-class
// suites; orphan and required violations count every suite. Internal checks are listed as
// unassigned but are not violations. Structural errors in any suite abort the whole
// inventory.
func (e *Expander) BuildInventory() (*Inventory, error) {
	var (
		// covered holds every suite reaching a check, firstClass only first-class suites.
		covered    = make(map[string][]string)
		firstClass = make(map[string][]string)
		violations []string
	)

	for _, m := range e.suites.All() {
		tasks, err := e.Expand(m.Name)
		if err != nil {
			return nil, err
		}
		for _, task := range tasks {
			if task.Kind != types.TaskKindCheck {
				continue
			}
			if _, ok := e.checks.Lookup(task.Value); !ok {
				violations = append(violations, fmt.Sprintf("suite `%s` references unknown check id: %s", m.Name, task.Value))
				continue
			}
			addMember(covered, task.Value, m.Name)
			if m.IsFirstClass() {
				addMember(firstClass, task.Value, m.Name)
			}
		}
		if m.IsFirstClass() {
			violations = append(violations, e.effectViolations(m)...)
		}
	}

	inv := &Inventory{
		Coverage:   []CoverageRow{},
		Unassigned: []string{},
	}
	for _, desc := range e.checks.Checks() {
		if suites := firstClass[desc.ID]; len(suites) > 0 {
			sort.Strings(suites)
			inv.Coverage = append(inv.Coverage, CoverageRow{CheckID: desc.ID, Domain: desc.Domain, Suites: slices.Clone(suites)})
		} else {
			inv.Unassigned = append(inv.Unassigned, desc.ID)
		}
		if len(covered[desc.ID]) > 0 || desc.IsInternal() {
			continue
		}
		violations = append(violations, fmt.Sprintf(
			"orphan check not assigned to any suite: %s; every new check must declare suite membership or be internal-only", desc.ID))
	}

	if required, err := e.suites.Get(types.TagRequired); err == nil && (required.Complete || required.IsFirstClass()) {
		for _, desc := range e.checks.ChecksByTag(types.TagRequired) {
			if !slices.Contains(covered[desc.ID], required.Name) {
				violations = append(violations, fmt.Sprintf("required complete policy violation: missing required check `%s`", desc.ID))
			}
		}
	}

	inv.Violations = append([]string{}, violations...)
	return inv, nil
}

func addMember(members map[string][]string, checkID, suite string) {
	if !slices.Contains(members[checkID], suite) {
		members[checkID] = append(members[checkID], suite)
	}
}

func (e *Expander) effectViolations(m types.SuiteManifest) []string {
	var out []string
	for _, id := range m.CheckIDs {
		desc, ok := e.checks.Lookup(id)
		if !ok {
			continue
		}
		var unknown []string
		for _, effect := range desc.Effects {
			if !slices.Contains(m.DefaultEffects, effect) && !slices.Contains(unknown, effect) {
				unknown = append(unknown, effect)
			}
		}
		if len(unknown) == 0 {
			continue
		}
		sort.Strings(unknown)
		allowed := slices.Clone(m.DefaultEffects)
		sort.Strings(allowed)
		out = append(out, fmt.Sprintf("suite `%s` check `%s` effects %v violate suite default effects %v", m.Name, id, unknown, allowed))
	}
	return out
}
