// Package suite resolves suite manifests into ordered task lists and filters them.
package suite

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bijux/atlasctl/registry"
	"github.com/bijux/atlasctl/types"
)

// CheckCatalog is the read-only view of the check registry used during expansion.
type CheckCatalog interface {
	Lookup(id string) (types.CheckDescriptor, bool)
	Checks() []types.CheckDescriptor
	ChecksByTag(tag string) []types.CheckDescriptor
}

// Expander turns suite names into ordered task lists. It performs no I/O and holds no
// mutable state, so expanding the same suite twice yields the same sequence.
type Expander struct {
	checks CheckCatalog
	suites *registry.SuiteSet
}

// NewExpander creates an Expander over a check catalog and a validated suite set.
func NewExpander(checks CheckCatalog, suites *registry.SuiteSet) *Expander {
	return &Expander{checks: checks, suites: suites}
}

// Expand resolves a suite into concrete tasks. check-tag tasks are replaced in place by
// one check task per tagged check, ordered by check id.
func (e *Expander) Expand(name string) ([]types.TaskSpec, error) {
	raw, err := e.ExpandRaw(name)
	if err != nil {
		return nil, err
	}
	out := make([]types.TaskSpec, 0, len(raw))
	for _, task := range raw {
		if task.Kind != types.TaskKindCheckTag {
			out = append(out, task)
			continue
		}
		for _, desc := range e.checks.ChecksByTag(task.Value) {
			out = append(out, types.NewTaskSpec(task.Suite, types.TaskKindCheck, desc.ID))
		}
	}
	return out, nil
}

// ExpandRaw resolves includes depth-first but leaves check-tag tasks unexpanded.
func (e *Expander) ExpandRaw(name string) ([]types.TaskSpec, error) {
	if _, err := e.suites.Get(name); err != nil {
		return nil, err
	}
	var out []types.TaskSpec
	if err := e.visit(name, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Expander) visit(name string, stack []string, out *[]types.TaskSpec) error {
	if i := slices.Index(stack, name); i >= 0 {
		cycle := append(slices.Clone(stack[i:]), name)
		return &types.CyclicIncludeError{Cycle: cycle}
	}
	m, err := e.suites.Get(name)
	if err != nil {
		return err
	}
	stack = append(slices.Clip(stack), name)

	if m.IsFirstClass() {
		for _, id := range m.CheckIDs {
			*out = append(*out, types.NewTaskSpec(name, types.TaskKindCheck, strings.TrimSpace(id)))
		}
		return nil
	}
	for _, inc := range m.Includes {
		if err := e.visit(inc, stack, out); err != nil {
			return err
		}
	}
	for _, item := range m.Items {
		task, err := types.ParseTaskToken(name, item)
		if err != nil {
			return err
		}
		*out = append(*out, task)
	}
	return nil
}

// Explain returns human-readable rationale lines for a suite without running it.
func (e *Expander) Explain(name string) ([]string, error) {
	m, err := e.suites.Get(name)
	if err != nil {
		return nil, err
	}
	lines := []string{fmt.Sprintf("suite %s rationale", name)}
	if m.IsFirstClass() {
		lines = append(lines,
			"- kind: first-class",
			"- markers: "+joinOrNone(m.Markers),
			"- required_env: "+joinOrNone(m.RequiredEnv),
			"- default_effects: "+joinOrNone(m.DefaultEffects),
			fmt.Sprintf("- check_count: %d", len(m.CheckIDs)),
		)
		for _, id := range m.CheckIDs {
			lines = append(lines, fmt.Sprintf("- check:%s: selected via suite registry markers/groups", id))
		}
		return lines, nil
	}

	tasks, err := e.ExpandRaw(name)
	if err != nil {
		return nil, err
	}
	lines = append(lines, "- includes: "+joinOrNone(m.Includes))
	for _, task := range tasks {
		var why string
		switch task.Kind {
		case types.TaskKindCheck:
			why = "registry check for policy/contract enforcement"
		case types.TaskKindCheckTag:
			why = fmt.Sprintf("expands to all checks tagged `%s`", task.Value)
		case types.TaskKindCmd:
			why = "command-level integration validation"
		case types.TaskKindSchema:
			why = "schema existence/payload validation"
		default:
			why = "unknown task kind"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", task.Key(), why))
	}
	return lines, nil
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
