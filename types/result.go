package types

const (
	Tool          = "atlasctl"
	SchemaVersion = 1

	SuiteRunSchema = "atlasctl.suite-run.v1"
	GateRunSchema  = "atlasctl.gate-run.v1"
)

// Status is the outcome of a single task or lane.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// ExecutionMode is the termination policy a suite ran under.
type ExecutionMode string

const (
	ModeFailFast  ExecutionMode = "fail-fast"
	ModeMaxFail   ExecutionMode = "maxfail"
	ModeKeepGoing ExecutionMode = "keep-going"
)

// ExecutionRow records one executed task. Rows are never mutated after creation.
type ExecutionRow struct {
	Index      int      `json:"index"`
	Suite      string   `json:"suite"`
	Label      string   `json:"label"`
	Kind       TaskKind `json:"kind"`
	Value      string   `json:"value"`
	Status     Status   `json:"status"`
	Detail     string   `json:"detail"`
	DurationMS int64    `json:"duration_ms"`
}

// Summary aggregates the rows of one suite run.
type Summary struct {
	Passed       int    `json:"passed"`
	Failed       int    `json:"failed"`
	Skipped      int    `json:"skipped"`
	DurationMS   int64  `json:"duration_ms"`
	TimeBudgetMS int64  `json:"time_budget_ms,omitempty"`
	BudgetStatus string `json:"budget_status,omitempty"`
}

// SuiteResult is the canonical payload written to results.json.
type SuiteResult struct {
	SchemaName      string         `json:"schema_name"`
	SchemaVersion   int            `json:"schema_version"`
	Tool            string         `json:"tool"`
	Status          string         `json:"status"`
	RunID           string         `json:"run_id"`
	Suite           string         `json:"suite"`
	Summary         Summary        `json:"summary"`
	SlowThresholdMS int64          `json:"slow_threshold_ms"`
	SlowChecks      []ExecutionRow `json:"slow_checks"`
	Results         []ExecutionRow `json:"results"`
	Execution       ExecutionMode  `json:"execution"`
	MaxFail         int            `json:"maxfail"`
	TargetDir       string         `json:"target_dir"`
}

// Failed reports whether any row failed or the suite budget was exceeded.
func (r *SuiteResult) Failed() bool {
	return r.Summary.Failed > 0 || r.Summary.BudgetStatus == BudgetFail
}

// Budget statuses for first-class suites carrying a time budget.
const (
	BudgetPass = "pass"
	BudgetFail = "fail"
)

// Payload statuses.
const (
	PayloadOK    = "ok"
	PayloadError = "error"
)

// GateResult is the canonical payload of a gates run.
type GateResult struct {
	SchemaName    string       `json:"schema_name"`
	SchemaVersion int          `json:"schema_version"`
	Tool          string       `json:"tool"`
	Action        string       `json:"action"`
	Status        Status       `json:"status"`
	RunID         string       `json:"run_id"`
	Preset        string       `json:"preset"`
	TotalCount    int          `json:"total_count"`
	FailedCount   int          `json:"failed_count"`
	Results       []LaneResult `json:"results"`
	ArtifactJSON  string       `json:"artifact_json,omitempty"`
	ArtifactTXT   string       `json:"artifact_txt,omitempty"`
}
