package metrics

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bijux/atlasctl/logging"
	"github.com/bijux/atlasctl/types"
	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/bijux/atlasctl/metrics"

const (
	EventSuiteRun = "suite.run"
	EventGateRun  = "gate.run"
)

// Event is one JSONL telemetry record.
type Event struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"ts"`
	RunID     string    `json:"run_id"`

	Suite      string `json:"suite,omitempty"`
	Passed     int    `json:"passed"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	DurationMS int64  `json:"duration_ms"`
	SlowChecks int    `json:"slow_checks"`

	Preset string `json:"preset,omitempty"`
}

// SuiteRunEvent summarizes a suite run for the telemetry sink.
func SuiteRunEvent(result *types.SuiteResult) Event {
	return Event{
		Event:      EventSuiteRun,
		Timestamp:  time.Now().UTC(),
		RunID:      result.RunID,
		Suite:      result.Suite,
		Passed:     result.Summary.Passed,
		Failed:     result.Summary.Failed,
		Skipped:    result.Summary.Skipped,
		DurationMS: result.Summary.DurationMS,
		SlowChecks: len(result.SlowChecks),
	}
}

// GateRunEvent summarizes a gates run for the telemetry sink.
func GateRunEvent(result *types.GateResult) Event {
	return Event{
		Event:     EventGateRun,
		Timestamp: time.Now().UTC(),
		RunID:     result.RunID,
		Preset:    result.Preset,
		Passed:    result.TotalCount - result.FailedCount,
		Failed:    result.FailedCount,
	}
}

// Telemetry emits events to an append-only JSONL file and as span events on the
// active trace. Emission never fails the caller and never blocks it on I/O.
type Telemetry struct {
	log  log.Logger
	sink *logging.AsyncFile
	wg   sync.WaitGroup
}

// NewTelemetry opens the JSONL sink at path. An empty path disables the file sink;
// events still reach the log and the trace.
func NewTelemetry(logger log.Logger, path string) *Telemetry {
	if logger == nil {
		logger = log.New()
	}
	t := &Telemetry{log: logger.New("component", "telemetry")}
	if path == "" {
		return t
	}
	sink, err := logging.OpenAsyncFile(t.log, path, 0)
	if err != nil {
		t.log.Warn("Telemetry sink unavailable", "path", path, "err", err)
		RecordErrorDetails("telemetry", err)
		return t
	}
	t.sink = sink
	return t
}

// Emit records ev. Failures are logged and counted.
func (t *Telemetry) Emit(ctx context.Context, ev Event) {
	trace.SpanFromContext(ctx).AddEvent(ev.Event, trace.WithAttributes(
		attribute.String("run_id", ev.RunID),
		attribute.String("suite", ev.Suite),
		attribute.String("preset", ev.Preset),
		attribute.Int("passed", ev.Passed),
		attribute.Int("failed", ev.Failed),
		attribute.Int("skipped", ev.Skipped),
		attribute.Int64("duration_ms", ev.DurationMS),
	))
	t.log.Debug("Telemetry event", "event", ev.Event, "run_id", ev.RunID, "failed", ev.Failed)

	if t.sink == nil {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		line, err := json.Marshal(ev)
		if err != nil {
			t.log.Warn("Failed to encode telemetry event", "err", err)
			return
		}
		if err := t.sink.Write(append(line, '\n')); err != nil {
			t.log.Warn("Failed to queue telemetry event", "err", err)
		}
	}()
}

// Close flushes pending events, giving up when ctx is done.
func (t *Telemetry) Close(ctx context.Context) error {
	_, span := otel.Tracer(tracerName).Start(ctx, "telemetry.close")
	defer span.End()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		t.log.Warn("Telemetry flush abandoned", "err", ctx.Err())
		return nil
	}
	if t.sink == nil {
		return nil
	}
	return t.sink.Close()
}
