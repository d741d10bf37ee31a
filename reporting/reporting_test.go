package reporting

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bijux/atlasctl/schema"
	"github.com/bijux/atlasctl/suite"
	"github.com/bijux/atlasctl/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(index int, label string, status types.Status, ms int64) types.ExecutionRow {
	return types.ExecutionRow{
		Index:      index,
		Suite:      "ci",
		Label:      label,
		Kind:       types.TaskKindCmd,
		Value:      strings.TrimPrefix(label, "cmd "),
		Status:     status,
		Detail:     "",
		DurationMS: ms,
	}
}

func sampleRows() []types.ExecutionRow {
	failing := row(2, "cmd make b", types.StatusFail, 2000)
	failing.Detail = "why=boom; how_to_fix=run it; evidence=n/a"
	return []types.ExecutionRow{
		row(1, "cmd make a", types.StatusPass, 50),
		failing,
		row(3, "cmd make c", types.StatusPass, 10),
		row(4, "cmd make d", types.StatusPass, 3000),
	}
}

func TestSlowChecks(t *testing.T) {
	slow := SlowChecks(sampleRows(), 1000)
	require.Len(t, slow, 2)
	assert.Equal(t, int64(3000), slow[0].DurationMS)
	assert.Equal(t, int64(2000), slow[1].DurationMS)

	none := SlowChecks(sampleRows(), 10_000)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	t.Run("ties keep execution order", func(t *testing.T) {
		rows := []types.ExecutionRow{row(1, "cmd x", types.StatusPass, 5), row(2, "cmd y", types.StatusPass, 5)}
		got := SlowChecks(rows, 1)
		assert.Equal(t, "cmd x", got[0].Label)
		assert.Equal(t, "cmd y", got[1].Label)
	})
}

func TestBuildSuiteResult(t *testing.T) {
	meta := SuiteMeta{
		RunID:         "run-1",
		Suite:         "ci",
		TargetDir:     "/tmp/x",
		Execution:     types.ModeMaxFail,
		MaxFail:       1,
		TotalSelected: 6,
		Duration:      5060 * time.Millisecond,
	}

	result := BuildSuiteResult(sampleRows(), meta)
	assert.Equal(t, types.SuiteRunSchema, result.SchemaName)
	assert.Equal(t, 3, result.Summary.Passed)
	assert.Equal(t, 1, result.Summary.Failed)
	assert.Equal(t, 2, result.Summary.Skipped)
	assert.Equal(t, int64(5060), result.Summary.DurationMS)
	assert.Equal(t, int64(1), result.SlowThresholdMS)
	assert.Len(t, result.SlowChecks, 4)
	assert.Equal(t, types.PayloadError, result.Status)
	assert.Empty(t, result.Summary.BudgetStatus)

	t.Run("threshold", func(t *testing.T) {
		m := meta
		m.SlowThresholdMS = 1000
		result := BuildSuiteResult(sampleRows(), m)
		assert.Equal(t, int64(1000), result.SlowThresholdMS)
		assert.Len(t, result.SlowChecks, 2)
	})

	t.Run("budget", func(t *testing.T) {
		passing := []types.ExecutionRow{row(1, "cmd make a", types.StatusPass, 50)}
		m := meta
		m.TotalSelected = 1
		m.TimeBudgetMS = 1000
		result := BuildSuiteResult(passing, m)
		assert.Equal(t, types.BudgetFail, result.Summary.BudgetStatus)
		assert.True(t, result.Failed())
		assert.Equal(t, types.PayloadError, result.Status)

		m.TimeBudgetMS = 10_000
		result = BuildSuiteResult(passing, m)
		assert.Equal(t, types.BudgetPass, result.Summary.BudgetStatus)
		assert.False(t, result.Failed())
		assert.Equal(t, types.PayloadOK, result.Status)
	})
}

func TestWriteSuiteArtifacts(t *testing.T) {
	dir := t.TempDir()
	result := BuildSuiteResult(sampleRows(), SuiteMeta{
		RunID:           "run-1",
		Suite:           "ci",
		TargetDir:       filepath.Join(dir, "target"),
		Execution:       types.ModeKeepGoing,
		TotalSelected:   4,
		Duration:        time.Second,
		SlowThresholdMS: 1000,
	})

	opts := SuiteArtifactOptions{
		JUnitPath:      filepath.Join(dir, "junit.xml"),
		SlowReportPath: filepath.Join(dir, "slow.json"),
		Profile:        true,
	}
	written, err := WriteSuiteArtifacts(result, schema.NewCatalog(""), opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "target", ResultsFile), written.Results)

	loaded, err := LoadSuiteResult(written.Results)
	require.NoError(t, err)
	assert.Equal(t, result, loaded)

	data, err := os.ReadFile(written.SlowReport)
	require.NoError(t, err)
	var slow map[string]any
	require.NoError(t, json.Unmarshal(data, &slow))
	assert.Equal(t, "suite-slow-report", slow["kind"])
	assert.Len(t, slow["slow_checks"], 2)

	assert.FileExists(t, written.Profile)
	assert.FileExists(t, written.JUnit)

	t.Run("invalid payload writes nothing", func(t *testing.T) {
		bad := *result
		bad.RunID = ""
		bad.TargetDir = filepath.Join(dir, "bad")
		_, err := WriteSuiteArtifacts(&bad, schema.NewCatalog(""), SuiteArtifactOptions{})
		require.Error(t, err)
		assert.NoDirExists(t, bad.TargetDir)
	})
}

func TestEncodeJUnit(t *testing.T) {
	result := BuildSuiteResult(sampleRows(), SuiteMeta{RunID: "r", Suite: "ci", TotalSelected: 5, Duration: 1500 * time.Millisecond})
	data, err := EncodeJUnit(result)
	require.NoError(t, err)

	out := string(data)
	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, `<testsuite name="atlasctl-suite-ci" tests="4" failures="1" skipped="1" time="1.500">`)
	assert.Contains(t, out, `classname="atlasctl.suite.ci" name="cmd make a" time="0.050"`)
	assert.Contains(t, out, `<failure message="why=boom; how_to_fix=run it; evidence=n/a">`)
	assert.Equal(t, 1, strings.Count(out, "<failure"))
}

func TestGateArtifacts(t *testing.T) {
	root := t.TempDir()
	results := []types.LaneResult{
		{ID: "docs", MakeTarget: "docs-check", Status: types.StatusPass},
		{ID: "lint", MakeTarget: "lint", Status: types.StatusFail, Error: "Error 2"},
	}
	result := BuildGateResult("run-9", "root", results)
	assert.Equal(t, types.StatusFail, result.Status)
	assert.Equal(t, 2, result.TotalCount)
	assert.Equal(t, 1, result.FailedCount)

	txt := GateReportText(result)
	assert.Equal(t, "gates run: status=fail total=2 failed=1 run_id=run-9\n- PASS docs (docs-check)\n- FAIL lint (lint)\n", txt)

	evidence := filepath.Join(root, "artifacts", "evidence")
	require.NoError(t, WriteGateArtifacts(result, schema.NewCatalog(""), evidence, root))
	assert.Equal(t, "artifacts/evidence/gates/run-9/report.json", result.ArtifactJSON)
	assert.Equal(t, "artifacts/evidence/gates/run-9/report.txt", result.ArtifactTXT)
	assert.FileExists(t, filepath.Join(GateReportDir(evidence, "run-9"), "report.json"))

	t.Run("all pass", func(t *testing.T) {
		ok := BuildGateResult("run-10", "", results[:1])
		assert.Equal(t, types.StatusPass, ok.Status)
		assert.Zero(t, ok.FailedCount)
	})
}

func TestHistory(t *testing.T) {
	baseline := &types.SuiteResult{Results: []types.ExecutionRow{
		row(1, "cmd a", types.StatusFail, 1),
		row(2, "cmd b", types.StatusFail, 1),
	}}
	current := &types.SuiteResult{Results: []types.ExecutionRow{
		row(1, "cmd b", types.StatusFail, 1),
		row(2, "cmd c", types.StatusFail, 1),
		row(3, "cmd a", types.StatusPass, 1),
	}}

	diff := DiffFailures(baseline, current)
	assert.Equal(t, []string{"cmd c"}, diff.NewFailures)
	assert.Equal(t, []string{"cmd a"}, diff.Fixed)

	failed, advice := DoctorAdvice(current)
	assert.Equal(t, 2, failed)
	assert.Equal(t, []string{"fix failing task: cmd b", "fix failing task: cmd c"}, advice)

	many := &types.SuiteResult{}
	for i := range 15 {
		many.Results = append(many.Results, row(i+1, "cmd x", types.StatusFail, 1))
	}
	failed, advice = DoctorAdvice(many)
	assert.Equal(t, 15, failed)
	assert.Len(t, advice, 10)

	_, err := LoadSuiteResult(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestRender(t *testing.T) {
	rows := sampleRows()
	assert.Equal(t, "PASS cmd make a (50ms)", RowLine(rows[0]))
	assert.Equal(t, "FAIL cmd make b (2000ms) :: why=boom; how_to_fix=run it; evidence=n/a", RowLine(rows[1]))

	result := BuildSuiteResult(rows, SuiteMeta{RunID: "r", Suite: "ci", TotalSelected: 4, Duration: 5 * time.Second, SlowThresholdMS: 1000})
	assert.Equal(t, "summary: passed=3 failed=1 skipped=0 total=4 duration_ms=5000", SuiteSummaryLine(result))

	var buf bytes.Buffer
	RenderSuiteResult(&buf, result)
	assert.Contains(t, buf.String(), "cmd make b")
	assert.Contains(t, buf.String(), "Slow checks")

	buf.Reset()
	RenderCoverage(&buf, &suite.Inventory{
		Coverage:   []suite.CoverageRow{{CheckID: "checks_a", Domain: "repo", Suites: []string{"ci", "fast"}}},
		Unassigned: []string{"checks_b"},
	})
	assert.Contains(t, buf.String(), "ci, fast")
	assert.Contains(t, buf.String(), "unassigned:\n- checks_b\n")

	buf.Reset()
	RenderGateResult(&buf, BuildGateResult("g", "root", []types.LaneResult{{ID: "lint", MakeTarget: "lint", Status: types.StatusFail, Error: "boom"}}))
	assert.True(t, strings.HasPrefix(buf.String(), "gates run: status=fail total=1 failed=1 run_id=g\n"))
	assert.Contains(t, buf.String(), "- FAIL lint: boom")
}
