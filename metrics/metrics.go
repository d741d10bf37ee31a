package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bijux/atlasctl/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "atlasctl"
)

var (
	Debug                = true
	nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	suiteRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_runs_total",
		Help:      "Count of suite runs by final status",
	}, []string{
		"suite",
		"status",
	})

	suiteTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_tasks_total",
		Help:      "Count of executed suite tasks by status",
	}, []string{
		"suite",
		"status",
	})

	suiteSkipped = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_skipped_tasks",
		Help:      "Tasks not executed in the last run because the failure policy stopped it",
	}, []string{
		"suite",
	})

	suiteDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_duration_seconds",
		Help:      "Wall-clock duration of the last suite run",
	}, []string{
		"suite",
	})

	suiteSlowChecks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_slow_checks",
		Help:      "Tasks at or above the slow threshold in the last suite run",
	}, []string{
		"suite",
	})

	gateLanesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "gate_lanes_total",
		Help:      "Count of gate lanes run by status",
	}, []string{
		"preset",
		"status",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordSuiteRun records the aggregate of one finished suite run.
func RecordSuiteRun(result *types.SuiteResult) {
	if Debug {
		log.Debug("metric inc",
			"m", "suite_runs_total",
			"suite", result.Suite,
			"status", result.Status,
			"passed", result.Summary.Passed,
			"failed", result.Summary.Failed)
	}
	suiteRunsTotal.WithLabelValues(result.Suite, result.Status).Inc()
	suiteTasksTotal.WithLabelValues(result.Suite, string(types.StatusPass)).Add(float64(result.Summary.Passed))
	suiteTasksTotal.WithLabelValues(result.Suite, string(types.StatusFail)).Add(float64(result.Summary.Failed))
	suiteSkipped.WithLabelValues(result.Suite).Set(float64(result.Summary.Skipped))
	suiteDuration.WithLabelValues(result.Suite).Set((time.Duration(result.Summary.DurationMS) * time.Millisecond).Seconds())
	suiteSlowChecks.WithLabelValues(result.Suite).Set(float64(len(result.SlowChecks)))
}

// RecordLane counts one finished gate lane.
func RecordLane(preset string, result types.LaneResult) {
	if Debug {
		log.Debug("metric inc",
			"m", "gate_lanes_total",
			"preset", preset,
			"lane", result.ID,
			"status", result.Status)
	}
	gateLanesTotal.WithLabelValues(preset, string(result.Status)).Inc()
}

// WriteTextfile dumps the default registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
