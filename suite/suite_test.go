package suite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bijux/atlasctl/registry"
	"github.com/bijux/atlasctl/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopCheck() types.Checkable {
	return types.CheckFunc(func(context.Context, types.CheckEnv) types.CheckOutcome {
		return types.CheckOutcome{}
	})
}

func newTestRegistry(t *testing.T, descs ...types.CheckDescriptor) *registry.Registry {
	t.Helper()
	reg := registry.NewRegistry(registry.Config{Log: log.NewLogger(log.DiscardHandler())})
	for _, d := range descs {
		if d.Check == nil {
			d.Check = noopCheck()
		}
		require.NoError(t, reg.Register(d))
	}
	return reg
}

func newTestExpander(t *testing.T, manifests ...types.SuiteManifest) *Expander {
	t.Helper()
	reg := newTestRegistry(t,
		types.CheckDescriptor{ID: "checks_z_lint", Domain: "repo", Tags: []string{"lint"}},
		types.CheckDescriptor{ID: "checks_a_lint", Domain: "docs", Tags: []string{"lint", "required"}},
		types.CheckDescriptor{ID: "checks_m_docs", Domain: "docs", Effects: []string{"fs-write"}},
	)
	set, err := registry.NewSuiteSet("test", "", manifests)
	require.NoError(t, err)
	return NewExpander(reg, set)
}

func labels(tasks []types.TaskSpec) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Label)
	}
	return out
}

func TestExpand(t *testing.T) {
	e := newTestExpander(t,
		types.SuiteManifest{Name: "ci", Includes: []string{"fast", "docs"}, Items: []string{"make test", "schema:suite-run"}},
		types.SuiteManifest{Name: "fast", Items: []string{"check-tag:lint", "cmd:go vet ./..."}},
		types.SuiteManifest{Name: "docs", Kind: types.SuiteKindFirstClass, CheckIDs: []string{"checks_m_docs", "checks_a_lint"}},
	)

	tasks, err := e.Expand("ci")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"check checks_a_lint",
		"check checks_z_lint",
		"cmd go vet ./...",
		"check checks_m_docs",
		"check checks_a_lint",
		"cmd make test",
		"schema suite-run",
	}, labels(tasks))

	assert.Equal(t, "fast", tasks[0].Suite)
	assert.Equal(t, "docs", tasks[3].Suite)
	assert.Equal(t, "ci", tasks[5].Suite)

	t.Run("raw keeps check-tag", func(t *testing.T) {
		raw, err := e.ExpandRaw("fast")
		require.NoError(t, err)
		require.Len(t, raw, 2)
		assert.Equal(t, types.TaskKindCheckTag, raw[0].Kind)
		assert.Equal(t, "lint", raw[0].Value)
	})

	t.Run("deterministic", func(t *testing.T) {
		first, err := e.Expand("ci")
		require.NoError(t, err)
		second, err := e.Expand("ci")
		require.NoError(t, err)

		a, err := json.Marshal(first)
		require.NoError(t, err)
		b, err := json.Marshal(second)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	})

	t.Run("unknown suite", func(t *testing.T) {
		_, err := e.Expand("nope")
		var unknown *types.UnknownSuiteError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "nope", unknown.Name)
	})
}

func TestExpandCycle(t *testing.T) {
	e := newTestExpander(t,
		types.SuiteManifest{Name: "A", Includes: []string{"B"}, Items: []string{"make a"}},
		types.SuiteManifest{Name: "B", Includes: []string{"A"}},
		types.SuiteManifest{Name: "root", Includes: []string{"A"}},
	)

	_, err := e.Expand("A")
	var cycle *types.CyclicIncludeError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"A", "B", "A"}, cycle.Cycle)
	assert.Equal(t, "suite include cycle detected: A -> B -> A", err.Error())

	_, err = e.Expand("root")
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"A", "B", "A"}, cycle.Cycle)
	assert.True(t, types.IsStructural(err))
}

func TestExpandDiamondKeepsDuplicates(t *testing.T) {
	e := newTestExpander(t,
		types.SuiteManifest{Name: "top", Includes: []string{"left", "right"}},
		types.SuiteManifest{Name: "left", Includes: []string{"base"}},
		types.SuiteManifest{Name: "right", Includes: []string{"base"}},
		types.SuiteManifest{Name: "base", Items: []string{"make base"}},
	)
	tasks, err := e.Expand("top")
	require.NoError(t, err)
	assert.Equal(t, []string{"cmd make base", "cmd make base"}, labels(tasks))
}

func TestExplain(t *testing.T) {
	e := newTestExpander(t,
		types.SuiteManifest{Name: "fast", Items: []string{"check-tag:lint", "make test"}},
		types.SuiteManifest{Name: "docs", Kind: types.SuiteKindFirstClass, Markers: []string{"ci"}, CheckIDs: []string{"checks_m_docs"}},
	)

	lines, err := e.Explain("fast")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"suite fast rationale",
		"- includes: none",
		"- check-tag:lint: expands to all checks tagged `lint`",
		"- cmd:make test: command-level integration validation",
	}, lines)

	lines, err = e.Explain("docs")
	require.NoError(t, err)
	assert.Equal(t, "- kind: first-class", lines[1])
	assert.Equal(t, "- markers: ci", lines[2])
	assert.Equal(t, "- check_count: 1", lines[5])
	assert.Equal(t, "- check:checks_m_docs: selected via suite registry markers/groups", lines[6])
}

func TestSelect(t *testing.T) {
	tasks := []types.TaskSpec{
		types.NewTaskSpec("s", types.TaskKindCheck, "checks_repo_a"),
		types.NewTaskSpec("s", types.TaskKindCmd, "make test"),
		types.NewTaskSpec("s", types.TaskKindCheck, "checks_docs_b"),
		types.NewTaskSpec("s", types.TaskKindSchema, "configs/a.json"),
	}

	tests := []struct {
		name string
		only []string
		skip []string
		want []string
	}{
		{name: "no filters", want: []string{"check checks_repo_a", "cmd make test", "check checks_docs_b", "schema configs/a.json"}},
		{name: "only checks", only: []string{"check:*"}, want: []string{"check checks_repo_a", "check checks_docs_b"}},
		{name: "only is an OR", only: []string{"cmd:*", "schema:*"}, want: []string{"cmd make test", "schema configs/a.json"}},
		{name: "skip after only", only: []string{"check:*"}, skip: []string{"*docs*"}, want: []string{"check checks_repo_a"}},
		{name: "star crosses slashes", only: []string{"schema:configs*"}, want: []string{"schema configs/a.json"}},
		{name: "unmatched only empties", only: []string{"nothing:*"}, want: []string{}},
		{name: "malformed pattern is inert", skip: []string{"check:[unclosed"}, want: []string{"check checks_repo_a", "cmd make test", "check checks_docs_b", "schema configs/a.json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(tasks, tt.only, tt.skip)
			assert.Equal(t, tt.want, labels(got))

			again := Select(got, tt.only, tt.skip)
			assert.Equal(t, got, again)
		})
	}
}

func TestBuildInventory(t *testing.T) {
	reg := newTestRegistry(t,
		types.CheckDescriptor{ID: "checks_a", Domain: "repo", Tags: []string{"required"}},
		types.CheckDescriptor{ID: "checks_b", Domain: "repo", Effects: []string{"network"}},
		types.CheckDescriptor{ID: "checks_orphan", Domain: "docs"},
		types.CheckDescriptor{ID: "checks_internal", Domain: "docs", Tags: []string{"internal-only"}},
		types.CheckDescriptor{ID: "checks_required_missing", Domain: "docs", Tags: []string{"required"}},
	)
	set, err := registry.NewSuiteSet("test", "", []types.SuiteManifest{
		{Name: "required", Complete: true, Items: []string{"check:checks_a", "check:checks_gone"}},
		{Name: "all", Kind: types.SuiteKindFirstClass, CheckIDs: []string{"checks_b", "checks_required_missing"}, DefaultEffects: []string{"fs-read"}},
	})
	require.NoError(t, err)

	inv, err := NewExpander(reg, set).BuildInventory()
	require.NoError(t, err)

	// checks_a is only reached by a legacy suite, so it counts as unassigned without
	// being an orphan.
	assert.Equal(t, []string{"checks_a", "checks_internal", "checks_orphan"}, inv.Unassigned)
	assert.Equal(t, []CoverageRow{
		{CheckID: "checks_b", Domain: "repo", Suites: []string{"all"}},
		{CheckID: "checks_required_missing", Domain: "docs", Suites: []string{"all"}},
	}, inv.Coverage)

	assert.ElementsMatch(t, []string{
		"suite `required` references unknown check id: checks_gone",
		"suite `all` check `checks_b` effects [network] violate suite default effects [fs-read]",
		"orphan check not assigned to any suite: checks_orphan; every new check must declare suite membership or be internal-only",
		"required complete policy violation: missing required check `checks_required_missing`",
	}, inv.Violations)
}

func TestBuildInventoryCountsFirstClassSuitesOnly(t *testing.T) {
	reg := newTestRegistry(t,
		types.CheckDescriptor{ID: "checks_fc", Domain: "repo"},
		types.CheckDescriptor{ID: "checks_legacy_only", Domain: "repo", Tags: []string{"fast"}},
	)
	set, err := registry.NewSuiteSet("test", "", []types.SuiteManifest{
		{Name: "fast", Items: []string{"check-tag:fast"}},
		{Name: "all", Kind: types.SuiteKindFirstClass, CheckIDs: []string{"checks_fc"}},
	})
	require.NoError(t, err)

	inv, err := NewExpander(reg, set).BuildInventory()
	require.NoError(t, err)

	assert.Equal(t, []string{"checks_legacy_only"}, inv.Unassigned)
	assert.Equal(t, []CoverageRow{{CheckID: "checks_fc", Domain: "repo", Suites: []string{"all"}}}, inv.Coverage)
	assert.Empty(t, inv.Violations)
}
