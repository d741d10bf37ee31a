package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bijux/atlasctl/types"
)

const (
	SuiteArtifactDir  = "atlasctl-suite"
	ResultsFile       = "results.json"
	ProfileFile       = "profile.json"
	TelemetryFile     = "telemetry.jsonl"
	MetricsFile       = "metrics.prom"
	profileKind       = "suite-profile"
	slowReportKind    = "suite-slow-report"
	artifactFilePerms = 0644
	artifactDirPerms  = 0755
)

// Validator checks a payload against a named schema before it is written.
type Validator interface {
	ValidateValue(name string, v any) error
}

// SuiteTargetDir is the default artifact directory of a suite run.
func SuiteTargetDir(isolateRoot, runID string) string {
	return filepath.Join(isolateRoot, runID, SuiteArtifactDir)
}

// SuiteResultsPath is where results.json of a run lives.
func SuiteResultsPath(isolateRoot, runID string) string {
	return filepath.Join(SuiteTargetDir(isolateRoot, runID), ResultsFile)
}

// SuiteArtifactOptions selects the optional artifacts of a suite run.
type SuiteArtifactOptions struct {
	JUnitPath      string
	SlowReportPath string
	Profile        bool
}

// SuiteArtifacts lists the files that were written.
type SuiteArtifacts struct {
	Results    string `json:"results"`
	Profile    string `json:"profile,omitempty"`
	SlowReport string `json:"slow_report,omitempty"`
	JUnit      string `json:"junit,omitempty"`
}

type profileDocument struct {
	SchemaVersion int                  `json:"schema_version"`
	Tool          string               `json:"tool"`
	Kind          string               `json:"kind"`
	RunID         string               `json:"run_id"`
	Suite         string               `json:"suite"`
	Summary       types.Summary        `json:"summary"`
	Rows          []types.ExecutionRow `json:"rows"`
}

type slowReportDocument struct {
	SchemaVersion int                  `json:"schema_version"`
	Tool          string               `json:"tool"`
	Kind          string               `json:"kind"`
	RunID         string               `json:"run_id"`
	Suite         string               `json:"suite"`
	ThresholdMS   int64                `json:"threshold_ms"`
	SlowChecks    []types.ExecutionRow `json:"slow_checks"`
	Summary       types.Summary        `json:"summary"`
}

// WriteSuiteArtifacts validates the result and writes results.json plus any requested
// optional artifacts. Nothing is written when validation fails.
func WriteSuiteArtifacts(result *types.SuiteResult, v Validator, opts SuiteArtifactOptions) (*SuiteArtifacts, error) {
	if v != nil {
		if err := v.ValidateValue(types.SuiteRunSchema, result); err != nil {
			return nil, fmt.Errorf("suite result failed self-validation: %w", err)
		}
	}

	out := &SuiteArtifacts{Results: filepath.Join(result.TargetDir, ResultsFile)}
	if err := WriteJSONFile(out.Results, result); err != nil {
		return nil, err
	}

	if opts.Profile {
		out.Profile = filepath.Join(result.TargetDir, ProfileFile)
		doc := profileDocument{
			SchemaVersion: types.SchemaVersion,
			Tool:          types.Tool,
			Kind:          profileKind,
			RunID:         result.RunID,
			Suite:         result.Suite,
			Summary:       result.Summary,
			Rows:          result.Results,
		}
		if err := WriteJSONFile(out.Profile, doc); err != nil {
			return nil, err
		}
	}

	if opts.SlowReportPath != "" {
		out.SlowReport = opts.SlowReportPath
		doc := slowReportDocument{
			SchemaVersion: types.SchemaVersion,
			Tool:          types.Tool,
			Kind:          slowReportKind,
			RunID:         result.RunID,
			Suite:         result.Suite,
			ThresholdMS:   result.SlowThresholdMS,
			SlowChecks:    result.SlowChecks,
			Summary:       result.Summary,
		}
		if err := WriteJSONFile(out.SlowReport, doc); err != nil {
			return nil, err
		}
	}

	if opts.JUnitPath != "" {
		out.JUnit = opts.JUnitPath
		if err := WriteJUnit(out.JUnit, result); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EncodeJSON renders v as JSON without HTML escaping. Pretty output is indented by two
// spaces. The output always ends with a newline.
func EncodeJSON(v any, pretty bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteJSONFile writes v as pretty JSON, creating parent directories.
func WriteJSONFile(path string, v any) error {
	data, err := EncodeJSON(v, true)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), artifactDirPerms); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, artifactFilePerms); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
