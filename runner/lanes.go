package runner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/bijux/atlasctl/process"
	"github.com/bijux/atlasctl/registry"
	"github.com/bijux/atlasctl/types"
	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMakeBinary = "make"
	DefaultJobs       = 4
	laneFailedMessage = "lane failed"
)

// LaneConfig contains lane scheduler configuration
type LaneConfig struct {
	Commands   process.Runner
	RepoRoot   string
	MakeBinary string
	Timeout    time.Duration
	Log        log.Logger
}

// LaneScheduler runs gate lanes sequentially or on a bounded worker pool.
type LaneScheduler struct {
	commands   process.Runner
	repoRoot   string
	makeBinary string
	timeout    time.Duration
	log        log.Logger
	tracer     trace.Tracer
}

// NewLaneScheduler creates a LaneScheduler.
func NewLaneScheduler(cfg LaneConfig) *LaneScheduler {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.Commands == nil {
		cfg.Commands = process.NewExecRunner(cfg.Log, 0)
	}
	if cfg.MakeBinary == "" {
		cfg.MakeBinary = DefaultMakeBinary
	}
	return &LaneScheduler{
		commands:   cfg.Commands,
		repoRoot:   cfg.RepoRoot,
		makeBinary: cfg.MakeBinary,
		timeout:    cfg.Timeout,
		log:        cfg.Log.New("component", "lane-scheduler"),
		tracer:     otel.Tracer(tracerName),
	}
}

// ResolveLanes maps lane ids onto catalog entries, dropping repeated ids. Every unknown id
// is reported in a single UnknownLaneError before anything runs.
func ResolveLanes(catalog *registry.LaneCatalog, ids []string) ([]types.Lane, error) {
	var (
		lanes   []types.Lane
		unknown []string
		seen    = make(map[string]bool, len(ids))
	)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		lane, ok := catalog.Lookup(id)
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		lanes = append(lanes, lane)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &types.UnknownLaneError{IDs: unknown}
	}
	return lanes, nil
}

// Run executes every lane and returns the results sorted by lane id. Sequential mode never
// stops early. Parallel mode uses min(max(1, jobs), len(lanes)) workers.
func (s *LaneScheduler) Run(ctx context.Context, lanes []types.Lane, parallel bool, jobs int) []types.LaneResult {
	ctx, span := s.tracer.Start(ctx, "gates.run", trace.WithAttributes(
		attribute.Int("lanes", len(lanes)),
		attribute.Bool("parallel", parallel),
		attribute.Int("jobs", jobs),
	))
	defer span.End()

	var results []types.LaneResult
	if parallel && len(lanes) > 1 {
		results = s.runParallel(ctx, lanes, jobs)
	} else {
		results = make([]types.LaneResult, 0, len(lanes))
		for _, lane := range lanes {
			results = append(results, s.runLane(ctx, lane))
		}
	}
	SortLaneResults(results)

	failed := 0
	for _, r := range results {
		if r.Status == types.StatusFail {
			failed++
		}
	}
	if failed > 0 {
		span.SetStatus(codes.Error, "gate lanes failed")
	}
	s.log.Info("Gate lanes finished", "total", len(results), "failed", failed, "parallel", parallel)
	return results
}

func (s *LaneScheduler) runParallel(ctx context.Context, lanes []types.Lane, jobs int) []types.LaneResult {
	workers := min(max(1, jobs), len(lanes))
	bufferSize := min(workers*2, 100)
	workChan := make(chan types.Lane, bufferSize)
	resultChan := make(chan types.LaneResult, bufferSize)

	s.log.Debug("Starting lane workers", "workers", workers, "lanes", len(lanes))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg, workChan, resultChan)
	}

	// Every lane is sent; a lane always runs to completion once started.
	go func() {
		defer close(workChan)
		for _, lane := range lanes {
			workChan <- lane
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]types.LaneResult, 0, len(lanes))
	for r := range resultChan {
		results = append(results, r)
	}
	return results
}

func (s *LaneScheduler) worker(ctx context.Context, wg *sync.WaitGroup, workChan <-chan types.Lane, resultChan chan<- types.LaneResult) {
	defer wg.Done()
	for lane := range workChan {
		resultChan <- s.runLane(ctx, lane)
	}
}

func (s *LaneScheduler) runLane(ctx context.Context, lane types.Lane) types.LaneResult {
	ctx, span := s.tracer.Start(ctx, "gates.lane", trace.WithAttributes(
		attribute.String("lane", lane.ID),
		attribute.String("make_target", lane.MakeTarget),
	))
	defer span.End()

	result := types.LaneResult{ID: lane.ID, MakeTarget: lane.MakeTarget, Status: types.StatusPass}
	s.log.Debug("Running lane", "lane", lane.ID, "target", lane.MakeTarget)

	res, err := s.commands.Run(ctx, process.Command{
		Args:    []string{s.makeBinary, "-s", lane.MakeTarget},
		Dir:     s.repoRoot,
		Timeout: s.timeout,
	})
	switch {
	case err != nil:
		result.Status = types.StatusFail
		result.Error = err.Error()
	case !res.Success():
		result.Status = types.StatusFail
		result.Error = process.LastLine(stripansi.Strip(res.Combined))
		if result.Error == "" {
			result.Error = laneFailedMessage
		}
	}

	if result.Status == types.StatusFail {
		span.SetStatus(codes.Error, result.Error)
		s.log.Warn("Lane failed", "lane", lane.ID, "error", result.Error)
	}
	return result
}

// SortLaneResults orders lane results by id. Completion order of parallel workers must
// never reach a report.
func SortLaneResults(results []types.LaneResult) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].ID < results[j].ID })
}
