package atlasctl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bijux/atlasctl/flags"
	"github.com/bijux/atlasctl/metrics"
	"github.com/bijux/atlasctl/reporting"
	"github.com/bijux/atlasctl/runner"
	"github.com/bijux/atlasctl/suite"
	"github.com/bijux/atlasctl/types"
)

const (
	maxPrintedViolations  = 40
	telemetryFlushTimeout = 5 * time.Second
	modeList              = "list"
)

func suiteCommand(opts []Option) *cli.Command {
	return &cli.Command{
		Name:  "suite",
		Usage: "inspect and run suites",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list suite names",
				Flags:  []cli.Flag{flags.ByGroup},
				Action: action(opts, suiteList),
			},
			{
				Name:   "check",
				Usage:  "validate suite membership and policy against the check catalog",
				Action: action(opts, suiteCheck),
			},
			{
				Name:      "explain",
				Usage:     "explain why each task is part of a suite",
				ArgsUsage: "[NAME]",
				Action:    action(opts, suiteExplain),
			},
			{
				Name:      "run",
				Usage:     "expand, select and run a suite",
				ArgsUsage: "[NAME]",
				Flags:     flags.SuiteRunFlags,
				Action:    action(opts, suiteRun),
			},
			{
				Name:   "diff",
				Usage:  "compare failing tasks between two runs",
				Flags:  []cli.Flag{flags.Run1, flags.Run2},
				Action: action(opts, suiteDiff),
			},
			{
				Name:   "doctor",
				Usage:  "suggest fixes for the failing tasks of a run (requires --run-id)",
				Action: action(opts, suiteDoctor),
			},
			{
				Name:   "coverage",
				Usage:  "show which suites cover each check",
				Action: action(opts, suiteCoverage),
			},
			{
				Name:   "artifacts",
				Usage:  "show the artifacts of a run (requires --run-id)",
				Action: action(opts, suiteArtifacts),
			},
		},
	}
}

func suiteList(c *cli.Context, a *App) error {
	set, err := a.Suites()
	if err != nil {
		return err
	}
	groups := groupByMarker(set.FirstClass())
	firstClass := make([]string, 0)
	for _, m := range set.FirstClass() {
		firstClass = append(firstClass, m.Name)
	}

	if a.cfg.JSON {
		payload := map[string]any{
			"schema_version":     types.SchemaVersion,
			"tool":               types.Tool,
			"status":             types.PayloadOK,
			"default":            set.Default(),
			"suites":             set.Names(),
			"first_class_suites": firstClass,
		}
		if c.Bool(flags.ByGroup.Name) {
			payload["groups"] = groups
		}
		return a.printJSON(payload)
	}

	if !c.Bool(flags.ByGroup.Name) {
		for _, name := range set.Names() {
			a.printf("%s\n", name)
		}
		return nil
	}
	markers := make([]string, 0, len(groups))
	for marker := range groups {
		markers = append(markers, marker)
	}
	sort.Strings(markers)
	for _, marker := range markers {
		a.printf("%s: %s\n", marker, strings.Join(groups[marker], ", "))
	}
	return nil
}

func groupByMarker(manifests []types.SuiteManifest) map[string][]string {
	groups := make(map[string][]string)
	for _, m := range manifests {
		markers := m.Markers
		if len(markers) == 0 {
			markers = []string{"ungrouped"}
		}
		for _, marker := range markers {
			groups[marker] = append(groups[marker], m.Name)
		}
	}
	return groups
}

func suiteCheck(_ *cli.Context, a *App) error {
	e, err := a.expander()
	if err != nil {
		return err
	}
	inv, err := e.BuildInventory()
	if err != nil {
		return NewUsageError(err)
	}

	status := types.PayloadOK
	if len(inv.Violations) > 0 {
		status = types.PayloadError
	}
	if a.cfg.JSON {
		if err := a.printJSON(map[string]any{
			"schema_version": types.SchemaVersion,
			"tool":           types.Tool,
			"status":         status,
			"errors":         inv.Violations,
		}); err != nil {
			return err
		}
	} else if len(inv.Violations) == 0 {
		a.printf("suite inventory: ok\n")
	} else {
		a.printf("suite inventory: fail\n")
		for i, v := range inv.Violations {
			if i == maxPrintedViolations {
				break
			}
			a.printf("- %s\n", v)
		}
	}
	if len(inv.Violations) > 0 {
		return NewFailureError("suite inventory has %d violation(s)", len(inv.Violations))
	}
	return nil
}

func suiteExplain(c *cli.Context, a *App) error {
	set, err := a.Suites()
	if err != nil {
		return err
	}
	m, err := set.Resolve(c.Args().First())
	if err != nil {
		return NewUsageError(err)
	}
	e := suite.NewExpander(a.registry, set)
	lines, err := e.Explain(m.Name)
	if err != nil {
		return NewUsageError(err)
	}
	if a.cfg.JSON {
		return a.printJSON(map[string]any{
			"schema_version": types.SchemaVersion,
			"tool":           types.Tool,
			"status":         types.PayloadOK,
			"suite":          m.Name,
			"lines":          lines,
		})
	}
	for _, line := range lines {
		a.printf("%s\n", line)
	}
	return nil
}

// checkGuards refuses to run internal suites outside internal mode and suites whose
// required environment is incomplete.
func (a *App) checkGuards(m types.SuiteManifest) error {
	if m.Internal {
		if v, _ := a.lookupEnv(InternalEnvVar); v != "1" {
			return NewUsageError(fmt.Errorf("suite `%s` is internal; set %s=1 to run it", m.Name, InternalEnvVar))
		}
	}
	var missing []string
	for _, name := range m.RequiredEnv {
		if v, ok := a.lookupEnv(name); !ok || v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return NewUsageError(fmt.Errorf("suite `%s` requires environment variables: %s", m.Name, strings.Join(missing, ", ")))
	}
	return nil
}

type planPayload struct {
	SchemaVersion int              `json:"schema_version"`
	Tool          string           `json:"tool"`
	Status        string           `json:"status"`
	Suite         string           `json:"suite"`
	Mode          string           `json:"mode"`
	TotalCount    int              `json:"total_count"`
	Tasks         []types.TaskSpec `json:"tasks"`
}

func suiteRun(c *cli.Context, a *App) error {
	set, err := a.Suites()
	if err != nil {
		return err
	}
	m, err := set.Resolve(c.Args().First())
	if err != nil {
		return NewUsageError(err)
	}
	if err := a.checkGuards(m); err != nil {
		return err
	}
	policy, err := runner.ResolvePolicy(c.Bool(flags.FailFast.Name), c.Bool(flags.KeepGoing.Name), c.Int(flags.MaxFail.Name))
	if err != nil {
		return NewUsageError(err)
	}

	tasks, err := suite.NewExpander(a.registry, set).Expand(m.Name)
	if err != nil {
		return NewUsageError(err)
	}
	tasks = suite.Select(tasks, c.StringSlice(flags.Only.Name), c.StringSlice(flags.Skip.Name))

	if c.Bool(flags.ListTasks.Name) || c.Bool(flags.DryRun.Name) {
		return a.printPlan(m.Name, tasks)
	}

	targetDir := c.String(flags.TargetDir.Name)
	if targetDir == "" {
		targetDir = reporting.SuiteTargetDir(a.cfg.IsolateRoot, a.cfg.RunID)
	}
	targetDir = underRoot(a.cfg.RepoRoot, targetDir)

	ctx := c.Context
	telemetry := metrics.NewTelemetry(a.log, filepath.Join(targetDir, reporting.TelemetryFile))
	defer a.closeTelemetry(ctx, telemetry)

	executor := runner.NewExecutor(a.executorConfig(c))
	a.log.Info("Running suite", "suite", m.Name, "run_id", a.cfg.RunID, "tasks", len(tasks), "execution", policy.Mode)
	start := time.Now()
	rows := executor.Run(ctx, tasks, policy)

	meta := reporting.SuiteMeta{
		RunID:           a.cfg.RunID,
		Suite:           m.Name,
		TargetDir:       targetDir,
		Execution:       policy.Mode,
		MaxFail:         policy.MaxFail,
		TotalSelected:   len(tasks),
		Duration:        time.Since(start),
		SlowThresholdMS: c.Int64(flags.SlowThresholdMS.Name),
	}
	if m.IsFirstClass() {
		meta.TimeBudgetMS = m.TimeBudgetMS
	}
	result := reporting.BuildSuiteResult(rows, meta)

	artifacts, err := reporting.WriteSuiteArtifacts(result, a.schemas, reporting.SuiteArtifactOptions{
		JUnitPath:      underRoot(a.cfg.RepoRoot, c.String(flags.JUnit.Name)),
		SlowReportPath: underRoot(a.cfg.RepoRoot, c.String(flags.SlowReport.Name)),
		Profile:        c.Bool(flags.Profile.Name),
	})
	if err != nil {
		metrics.RecordErrorDetails("suite_artifacts", err)
		return NewRuntimeError(err)
	}

	metrics.RecordSuiteRun(result)
	if err := metrics.WriteTextfile(filepath.Join(targetDir, reporting.MetricsFile)); err != nil {
		a.log.Warn("Failed to export metrics", "err", err)
	}
	telemetry.Emit(ctx, metrics.SuiteRunEvent(result))

	if a.cfg.JSON {
		if err := a.printJSON(result); err != nil {
			return err
		}
	} else {
		a.printf("%s\n", reporting.SuiteSummaryLine(result))
		a.printf("results: %s\n", artifacts.Results)
	}

	if result.Failed() {
		return NewFailureError("suite %s failed: failed=%d budget=%s", m.Name, result.Summary.Failed, budgetOrNA(result))
	}
	return nil
}

func budgetOrNA(result *types.SuiteResult) string {
	if result.Summary.BudgetStatus == "" {
		return "n/a"
	}
	return result.Summary.BudgetStatus
}

func (a *App) executorConfig(c *cli.Context) runner.Config {
	cfg := runner.Config{
		Checks:     a.registry,
		Commands:   a.commands,
		Schemas:    a.schemas,
		RepoRoot:   a.cfg.RepoRoot,
		Self:       a.self,
		CmdTimeout: a.cfg.CmdTimeout,
		Log:        a.log,
	}
	if c.Bool(flags.ShowOutput.Name) {
		cfg.Output = a.out
		if a.cfg.JSON {
			cfg.Output = a.errOut
		}
	}
	if !a.cfg.JSON {
		// --quiet still prints failing rows.
		cfg.OnRow = func(row types.ExecutionRow) {
			if a.cfg.Quiet && row.Status != types.StatusFail {
				return
			}
			a.printf("%s\n", reporting.RowLine(row))
		}
	}
	return cfg
}

func (a *App) closeTelemetry(parent context.Context, t *metrics.Telemetry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), telemetryFlushTimeout)
	defer cancel()
	if err := t.Close(ctx); err != nil {
		a.log.Warn("Failed to close telemetry", "err", err)
	}
}

func (a *App) printPlan(name string, tasks []types.TaskSpec) error {
	if tasks == nil {
		tasks = []types.TaskSpec{}
	}
	if a.cfg.JSON {
		return a.printJSON(planPayload{
			SchemaVersion: types.SchemaVersion,
			Tool:          types.Tool,
			Status:        types.PayloadOK,
			Suite:         name,
			Mode:          modeList,
			TotalCount:    len(tasks),
			Tasks:         tasks,
		})
	}
	for _, task := range tasks {
		a.printf("%s\n", task.Label)
	}
	a.printf("total: %d\n", len(tasks))
	return nil
}

func (a *App) loadRun(runID string) (*types.SuiteResult, error) {
	result, err := reporting.LoadSuiteResult(reporting.SuiteResultsPath(a.cfg.IsolateRoot, runID))
	if err != nil {
		return nil, NewUsageError(fmt.Errorf("no results for run %s: %w", runID, err))
	}
	return result, nil
}

func suiteDiff(c *cli.Context, a *App) error {
	run1, run2 := c.String(flags.Run1.Name), c.String(flags.Run2.Name)
	baseline, err := a.loadRun(run1)
	if err != nil {
		return err
	}
	current, err := a.loadRun(run2)
	if err != nil {
		return err
	}
	diff := reporting.DiffFailures(baseline, current)

	if a.cfg.JSON {
		return a.printJSON(map[string]any{
			"schema_version": types.SchemaVersion,
			"tool":           types.Tool,
			"status":         types.PayloadOK,
			"run1":           run1,
			"run2":           run2,
			"new_failures":   diff.NewFailures,
			"fixed":          diff.Fixed,
		})
	}
	a.printf("new_failures=%d fixed=%d\n", len(diff.NewFailures), len(diff.Fixed))
	for _, label := range diff.NewFailures {
		a.printf("+ %s\n", label)
	}
	for _, label := range diff.Fixed {
		a.printf("- %s\n", label)
	}
	return nil
}

func (a *App) requireRunID() error {
	if !a.cfg.RunIDSet {
		return NewUsageError(errors.New("--run-id is required"))
	}
	return nil
}

func suiteDoctor(_ *cli.Context, a *App) error {
	if err := a.requireRunID(); err != nil {
		return err
	}
	result, err := a.loadRun(a.cfg.RunID)
	if err != nil {
		return err
	}
	failed, advice := reporting.DoctorAdvice(result)

	if a.cfg.JSON {
		return a.printJSON(map[string]any{
			"schema_version": types.SchemaVersion,
			"tool":           types.Tool,
			"status":         types.PayloadOK,
			"run_id":         a.cfg.RunID,
			"failed_count":   failed,
			"advice":         advice,
		})
	}
	if failed == 0 {
		a.printf("no failed tasks\n")
		return nil
	}
	a.printf("failed tasks: %d\n", failed)
	for _, line := range advice {
		a.printf("- %s\n", line)
	}
	return nil
}

func suiteCoverage(_ *cli.Context, a *App) error {
	e, err := a.expander()
	if err != nil {
		return err
	}
	inv, err := e.BuildInventory()
	if err != nil {
		return NewUsageError(err)
	}

	if a.cfg.JSON {
		status := types.PayloadOK
		if len(inv.Unassigned) > 0 {
			status = types.PayloadError
		}
		if err := a.printJSON(map[string]any{
			"schema_version": types.SchemaVersion,
			"tool":           types.Tool,
			"status":         status,
			"coverage":       inv.Coverage,
			"unassigned":     inv.Unassigned,
		}); err != nil {
			return err
		}
	} else {
		reporting.RenderCoverage(a.out, inv)
	}
	if len(inv.Unassigned) > 0 {
		return NewFailureError("%d check(s) are not covered by any suite", len(inv.Unassigned))
	}
	return nil
}

func suiteArtifacts(_ *cli.Context, a *App) error {
	if err := a.requireRunID(); err != nil {
		return err
	}
	dir := reporting.SuiteTargetDir(a.cfg.IsolateRoot, a.cfg.RunID)
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return NewUsageError(fmt.Errorf("no artifacts for run %s under %s", a.cfg.RunID, dir))
	}
	if err != nil {
		return NewRuntimeError(err)
	}
	sort.Strings(files)

	if a.cfg.JSON {
		return a.printJSON(map[string]any{
			"schema_version": types.SchemaVersion,
			"tool":           types.Tool,
			"status":         types.PayloadOK,
			"run_id":         a.cfg.RunID,
			"target_dir":     dir,
			"artifacts":      files,
		})
	}
	for _, f := range files {
		a.printf("%s\n", f)
	}
	if result, err := reporting.LoadSuiteResult(filepath.Join(dir, reporting.ResultsFile)); err == nil {
		reporting.RenderSuiteResult(a.out, result)
	} else if !errors.Is(err, os.ErrNotExist) {
		a.log.Warn("Failed to read suite results", "err", err)
	}
	return nil
}
