// Package runner executes expanded suites sequentially and gate lanes concurrently.
package runner

import (
	"context"
	"io"
	"time"

	"github.com/bijux/atlasctl/process"
	"github.com/bijux/atlasctl/types"
	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/bijux/atlasctl/runner"

// CheckLookup resolves check ids to descriptors.
type CheckLookup interface {
	Lookup(id string) (types.CheckDescriptor, bool)
}

// SchemaValidator resolves schema names and validates payload files.
type SchemaValidator interface {
	Exists(name string) bool
	ValidateFile(name, path string) error
}

// Config contains executor configuration
type Config struct {
	Checks   CheckLookup
	Commands process.Runner
	Schemas  SchemaValidator
	RepoRoot string
	// Self replaces a leading "atlasctl" in cmd tasks so nested invocations use the
	// running binary.
	Self       string
	CmdTimeout time.Duration
	// Output receives live command output when set.
	Output io.Writer
	Log    log.Logger
	// OnRow is called after every task with the finished row.
	OnRow func(types.ExecutionRow)
}

// Executor runs a task list one task at a time under a Policy.
type Executor struct {
	checks     CheckLookup
	commands   process.Runner
	schemas    SchemaValidator
	repoRoot   string
	self       string
	cmdTimeout time.Duration
	output     io.Writer
	log        log.Logger
	onRow      func(types.ExecutionRow)
	tracer     trace.Tracer
}

// NewExecutor creates an Executor.
func NewExecutor(cfg Config) *Executor {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.Commands == nil {
		cfg.Commands = process.NewExecRunner(cfg.Log, 0)
	}
	return &Executor{
		checks:     cfg.Checks,
		commands:   cfg.Commands,
		schemas:    cfg.Schemas,
		repoRoot:   cfg.RepoRoot,
		self:       cfg.Self,
		cmdTimeout: cfg.CmdTimeout,
		output:     cfg.Output,
		log:        cfg.Log.New("component", "executor"),
		onRow:      cfg.OnRow,
		tracer:     otel.Tracer(tracerName),
	}
}

// Run executes tasks in order and returns one row per executed task. Rows are indexed
// from 1 contiguously. Once the policy says stop, no further task is started; tasks
// already running are never interrupted.
func (e *Executor) Run(ctx context.Context, tasks []types.TaskSpec, policy Policy) []types.ExecutionRow {
	ctx, span := e.tracer.Start(ctx, "suite.execute", trace.WithAttributes(
		attribute.Int("tasks", len(tasks)),
		attribute.String("execution", string(policy.Mode)),
		attribute.Int("maxfail", policy.MaxFail),
	))
	defer span.End()

	e.log.Debug("Starting suite execution", "tasks", len(tasks), "execution", policy.Mode, "maxfail", policy.MaxFail)

	rows := make([]types.ExecutionRow, 0, len(tasks))
	failures := 0
	for i, task := range tasks {
		row := e.runTask(ctx, i+1, task)
		rows = append(rows, row)
		if e.onRow != nil {
			e.onRow(row)
		}
		if row.Status != types.StatusFail {
			continue
		}
		failures++
		if policy.ShouldStop(failures) {
			e.log.Info("Stopping suite execution", "execution", policy.Mode, "failures", failures, "remaining", len(tasks)-len(rows))
			break
		}
	}

	span.SetAttributes(attribute.Int("executed", len(rows)), attribute.Int("failures", failures))
	if failures > 0 {
		span.SetStatus(codes.Error, "suite has failing tasks")
	}
	return rows
}

func (e *Executor) runTask(ctx context.Context, index int, task types.TaskSpec) types.ExecutionRow {
	ctx, span := e.tracer.Start(ctx, "suite.task", trace.WithAttributes(
		attribute.String("suite", task.Suite),
		attribute.String("kind", task.Kind.String()),
		attribute.String("value", task.Value),
	))
	defer span.End()

	start := time.Now()
	status, detail := e.dispatch(ctx, task)
	duration := time.Since(start)

	if status == types.StatusFail {
		span.SetStatus(codes.Error, detail)
		e.log.Debug("Task failed", "label", task.Label, "duration", duration, "detail", detail)
	} else {
		e.log.Debug("Task passed", "label", task.Label, "duration", duration)
	}

	return types.ExecutionRow{
		Index:      index,
		Suite:      task.Suite,
		Label:      task.Label,
		Kind:       task.Kind,
		Value:      task.Value,
		Status:     status,
		Detail:     detail,
		DurationMS: duration.Milliseconds(),
	}
}
