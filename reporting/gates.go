package reporting

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bijux/atlasctl/types"
)

const (
	gateReportJSON = "report.json"
	gateReportTXT  = "report.txt"
	gateActionRun  = "run"
)

// GateReportDir is where a gates run writes its reports.
func GateReportDir(evidenceRoot, runID string) string {
	return filepath.Join(evidenceRoot, "gates", runID)
}

// BuildGateResult aggregates sorted lane results into the gates payload.
func BuildGateResult(runID, preset string, results []types.LaneResult) *types.GateResult {
	out := &types.GateResult{
		SchemaName:    types.GateRunSchema,
		SchemaVersion: types.SchemaVersion,
		Tool:          types.Tool,
		Action:        gateActionRun,
		Status:        types.StatusPass,
		RunID:         runID,
		Preset:        preset,
		TotalCount:    len(results),
		Results:       make([]types.LaneResult, len(results)),
	}
	copy(out.Results, results)
	for _, r := range results {
		if r.Status == types.StatusFail {
			out.FailedCount++
		}
	}
	if out.FailedCount > 0 {
		out.Status = types.StatusFail
	}
	return out
}

// GateSummaryLine is the first line of every gates text report.
func GateSummaryLine(result *types.GateResult) string {
	return fmt.Sprintf("gates run: status=%s total=%d failed=%d run_id=%s",
		result.Status, result.TotalCount, result.FailedCount, result.RunID)
}

// GateReportText renders the report.txt artifact: a summary line and one line per lane.
func GateReportText(result *types.GateResult) string {
	var b strings.Builder
	b.WriteString(GateSummaryLine(result))
	b.WriteByte('\n')
	for _, r := range result.Results {
		fmt.Fprintf(&b, "- %s %s (%s)\n", strings.ToUpper(string(r.Status)), r.ID, r.MakeTarget)
	}
	return b.String()
}

// WriteGateArtifacts validates the result and writes report.json and report.txt under
// the evidence root. Artifact paths are recorded on the result relative to repoRoot
// when possible.
func WriteGateArtifacts(result *types.GateResult, v Validator, evidenceRoot, repoRoot string) error {
	if v != nil {
		if err := v.ValidateValue(types.GateRunSchema, result); err != nil {
			return fmt.Errorf("gate result failed self-validation: %w", err)
		}
	}
	dir := GateReportDir(evidenceRoot, result.RunID)
	jsonPath := filepath.Join(dir, gateReportJSON)
	txtPath := filepath.Join(dir, gateReportTXT)

	if err := WriteJSONFile(jsonPath, result); err != nil {
		return err
	}
	if err := WriteFile(txtPath, []byte(GateReportText(result))); err != nil {
		return err
	}
	result.ArtifactJSON = relativeTo(repoRoot, jsonPath)
	result.ArtifactTXT = relativeTo(repoRoot, txtPath)
	return nil
}

func relativeTo(root, path string) string {
	if root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
