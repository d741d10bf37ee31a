// Package reporting turns execution rows into result payloads and writes artifacts.
package reporting

import (
	"sort"
	"time"

	"github.com/bijux/atlasctl/types"
)

// DefaultSlowThresholdMS is the duration at or above which a row is reported as slow.
const DefaultSlowThresholdMS = 1000

// SuiteMeta carries everything about a suite run that is not in the rows themselves.
type SuiteMeta struct {
	RunID           string
	Suite           string
	TargetDir       string
	Execution       types.ExecutionMode
	MaxFail         int
	TotalSelected   int
	Duration        time.Duration
	SlowThresholdMS int64
	TimeBudgetMS    int64
}

// BuildSuiteResult aggregates rows into the canonical suite payload.
func BuildSuiteResult(rows []types.ExecutionRow, meta SuiteMeta) *types.SuiteResult {
	threshold := max(meta.SlowThresholdMS, 1)

	summary := types.Summary{DurationMS: meta.Duration.Milliseconds()}
	for _, row := range rows {
		if row.Status == types.StatusFail {
			summary.Failed++
		} else {
			summary.Passed++
		}
	}
	summary.Skipped = max(meta.TotalSelected-len(rows), 0)
	if meta.TimeBudgetMS > 0 {
		summary.TimeBudgetMS = meta.TimeBudgetMS
		summary.BudgetStatus = types.BudgetPass
		if summary.DurationMS > meta.TimeBudgetMS {
			summary.BudgetStatus = types.BudgetFail
		}
	}

	results := make([]types.ExecutionRow, len(rows))
	copy(results, rows)

	out := &types.SuiteResult{
		SchemaName:      types.SuiteRunSchema,
		SchemaVersion:   types.SchemaVersion,
		Tool:            types.Tool,
		RunID:           meta.RunID,
		Suite:           meta.Suite,
		Summary:         summary,
		SlowThresholdMS: threshold,
		SlowChecks:      SlowChecks(rows, threshold),
		Results:         results,
		Execution:       meta.Execution,
		MaxFail:         max(meta.MaxFail, 0),
		TargetDir:       meta.TargetDir,
	}
	out.Status = types.PayloadOK
	if out.Failed() {
		out.Status = types.PayloadError
	}
	return out
}

// SlowChecks returns rows whose duration reaches thresholdMS, slowest first. Rows with
// equal durations keep their execution order.
func SlowChecks(rows []types.ExecutionRow, thresholdMS int64) []types.ExecutionRow {
	slow := make([]types.ExecutionRow, 0)
	for _, row := range rows {
		if row.DurationMS >= thresholdMS {
			slow = append(slow, row)
		}
	}
	sort.SliceStable(slow, func(i, j int) bool { return slow[i].DurationMS > slow[j].DurationMS })
	return slow
}
