package flags

import (
	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

const EnvVarPrefix = "ATLASCTL"

// Global flags.
var (
	RepoRoot = &cli.StringFlag{
		Name:    "repo-root",
		Value:   ".",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPO_ROOT"),
		Usage:   "Repository root that checks and commands run against",
	}
	RunID = &cli.StringFlag{
		Name:    "run-id",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_ID"),
		Usage:   "Run identifier used in artifact paths. Generated when empty",
	}
	EvidenceRoot = &cli.StringFlag{
		Name:    "evidence-root",
		Value:   "artifacts/evidence",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "EVIDENCE_ROOT"),
		Usage:   "Root directory for gate reports, relative to the repo root",
	}
	IsolateRoot = &cli.StringFlag{
		Name:    "isolate-root",
		Value:   "artifacts/isolate",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ISOLATE_ROOT"),
		Usage:   "Root directory for per-run suite artifacts, relative to the repo root",
	}
	SuitesConfig = &cli.StringFlag{
		Name:    "suites",
		Value:   "configs/suites/suites.yaml",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUITES"),
		Usage:   "Suite manifest file (.yaml, .yml, .json or pyproject-style .toml)",
	}
	LanesConfig = &cli.StringFlag{
		Name:    "lanes",
		Value:   "configs/gates/lanes.json",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LANES"),
		Usage:   "Gate lane catalog (.json or .yaml)",
	}
	SchemasDir = &cli.StringFlag{
		Name:    "schemas-dir",
		Value:   "configs/schemas",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SCHEMAS_DIR"),
		Usage:   "Directory searched for named schemas before the built-in set",
	}
	JSON = &cli.BoolFlag{
		Name:    "json",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "JSON"),
		Usage:   "Print machine-readable JSON payloads",
	}
	Quiet = &cli.BoolFlag{
		Name:    "quiet",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "QUIET"),
		Usage:   "Suppress per-task progress lines",
	}
	CmdTimeout = &cli.DurationFlag{
		Name:    "cmd-timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CMD_TIMEOUT"),
		Usage:   "Timeout for each command task or lane (e.g. '5m'). 0 disables the timeout",
	}
)

// suite run flags.
var (
	Only = &cli.StringSliceFlag{
		Name:    "only",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ONLY"),
		Usage:   "Keep only tasks whose kind:value matches a glob. Repeatable",
	}
	Skip = &cli.StringSliceFlag{
		Name:    "skip",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SKIP"),
		Usage:   "Drop tasks whose kind:value matches a glob. Repeatable",
	}
	FailFast = &cli.BoolFlag{
		Name:    "fail-fast",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FAIL_FAST"),
		Usage:   "Stop at the first failing task",
	}
	MaxFail = &cli.IntFlag{
		Name:    "maxfail",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "MAXFAIL"),
		Usage:   "Stop after N failing tasks. 0 disables the limit",
	}
	KeepGoing = &cli.BoolFlag{
		Name:    "keep-going",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "KEEP_GOING"),
		Usage:   "Run every task regardless of failures. Overrides --maxfail",
	}
	ListTasks = &cli.BoolFlag{
		Name:    "list",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LIST"),
		Usage:   "Print the selected plan without running it",
	}
	DryRun = &cli.BoolFlag{
		Name:    "dry-run",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DRY_RUN"),
		Usage:   "Alias of --list",
	}
	JUnit = &cli.StringFlag{
		Name:    "junit",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "JUNIT"),
		Usage:   "Write a JUnit XML report to this path",
	}
	SlowReport = &cli.StringFlag{
		Name:    "slow-report",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SLOW_REPORT"),
		Usage:   "Write a slow-check report to this path",
	}
	SlowThresholdMS = &cli.Int64Flag{
		Name:    "slow-threshold-ms",
		Value:   1000,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SLOW_THRESHOLD_MS"),
		Usage:   "Tasks at or above this duration are reported as slow",
	}
	TargetDir = &cli.StringFlag{
		Name:    "target-dir",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TARGET_DIR"),
		Usage:   "Artifact directory. Defaults to {isolate-root}/{run-id}/atlasctl-suite",
	}
	Profile = &cli.BoolFlag{
		Name:    "profile",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROFILE"),
		Usage:   "Write profile.json next to results.json",
	}
	ShowOutput = &cli.BoolFlag{
		Name:    "show-output",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_OUTPUT"),
		Usage:   "Echo command output while tasks run",
	}
)

// Other subcommand flags.
var (
	ByGroup = &cli.BoolFlag{
		Name:    "by-group",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "BY_GROUP"),
		Usage:   "Group first-class suites by marker",
	}
	Run1 = &cli.StringFlag{
		Name:     "run1",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "RUN1"),
		Usage:    "Baseline run id",
	}
	Run2 = &cli.StringFlag{
		Name:     "run2",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "RUN2"),
		Usage:    "Run id compared against the baseline",
	}
	Lane = &cli.StringSliceFlag{
		Name:    "lane",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LANE"),
		Usage:   "Lane id to run. Repeatable",
	}
	Preset = &cli.StringFlag{
		Name:    "preset",
		Value:   "root",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PRESET"),
		Usage:   "Lane preset to run when no lane is named",
	}
	AllLanes = &cli.BoolFlag{
		Name:    "all",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ALL"),
		Usage:   "Run every lane of the selected preset, ignoring named lanes",
	}
	Parallel = &cli.BoolFlag{
		Name:    "parallel",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PARALLEL"),
		Usage:   "Run lanes on a worker pool",
	}
	Jobs = &cli.IntFlag{
		Name:    "jobs",
		Value:   4,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "JOBS"),
		Usage:   "Worker count for --parallel",
	}
	Report = &cli.StringFlag{
		Name:    "report",
		Value:   "text",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORT"),
		Usage:   "Report format: text or json",
	}
)

var globalFlags = []cli.Flag{
	RepoRoot,
	RunID,
	EvidenceRoot,
	IsolateRoot,
	SuitesConfig,
	LanesConfig,
	SchemasDir,
	JSON,
	Quiet,
	CmdTimeout,
}

// SuiteRunFlags are the flags of `suite run`.
var SuiteRunFlags = []cli.Flag{
	Only,
	Skip,
	FailFast,
	MaxFail,
	KeepGoing,
	ListTasks,
	DryRun,
	JUnit,
	SlowReport,
	SlowThresholdMS,
	TargetDir,
	Profile,
	ShowOutput,
}

// GatesRunFlags are the flags of `gates run`.
var GatesRunFlags = []cli.Flag{
	Lane,
	Preset,
	AllLanes,
	Parallel,
	Jobs,
	Report,
}

var (
	// Flags are the global flags of the app.
	Flags []cli.Flag
	// all is every flag, used to check name and env var uniqueness.
	all []cli.Flag
)

func init() {
	Flags = append(Flags, globalFlags...)
	Flags = append(Flags, oplog.CLIFlags(EnvVarPrefix)...)

	all = append(all, Flags...)
	all = append(all, SuiteRunFlags...)
	all = append(all, GatesRunFlags...)
	all = append(all, ByGroup, Run1, Run2)
}
