package runner

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bijux/atlasctl/process"
	"github.com/bijux/atlasctl/registry"
	"github.com/bijux/atlasctl/schema"
	"github.com/bijux/atlasctl/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner answers commands from a table keyed by the joined argv.
type fakeRunner struct {
	mu       sync.Mutex
	results  map[string]*process.Result
	errs     map[string]error
	delay    func(args []string) time.Duration
	calls    []string
	inFlight int
	maxSeen  int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		results: make(map[string]*process.Result),
		errs:    make(map[string]error),
	}
}

func (f *fakeRunner) Run(ctx context.Context, c process.Command) (*process.Result, error) {
	key := strings.Join(c.Args, " ")

	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	delay := f.delay
	f.mu.Unlock()

	if delay != nil {
		time.Sleep(delay(c.Args))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if res, ok := f.results[key]; ok {
		return res, nil
	}
	return &process.Result{}, nil
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func testLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func outcomeCheck(pass bool) types.Checkable {
	return types.CheckFunc(func(context.Context, types.CheckEnv) types.CheckOutcome {
		if pass {
			return types.CheckOutcome{}
		}
		return types.CheckOutcome{Errors: []string{"broken"}}
	})
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.NewRegistry(registry.Config{Log: testLogger()})
	require.NoError(t, reg.RegisterAll(
		types.CheckDescriptor{ID: "pass", Check: outcomeCheck(true)},
		types.CheckDescriptor{ID: "fail", FixHint: "fix it", Check: outcomeCheck(false)},
		types.CheckDescriptor{ID: "panic", Check: types.CheckFunc(func(context.Context, types.CheckEnv) types.CheckOutcome {
			panic("kaboom")
		})},
		types.CheckDescriptor{ID: "env", Check: types.CheckFunc(func(_ context.Context, env types.CheckEnv) types.CheckOutcome {
			if env.RepoRoot == "" {
				return types.CheckOutcome{Errors: []string{"no repo root"}}
			}
			return types.CheckOutcome{}
		})},
	))
	return reg
}

func checkTasks(ids ...string) []types.TaskSpec {
	out := make([]types.TaskSpec, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.NewTaskSpec("s", types.TaskKindCheck, id))
	}
	return out
}

func statuses(rows []types.ExecutionRow) []types.Status {
	out := make([]types.Status, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Status)
	}
	return out
}

func TestResolvePolicy(t *testing.T) {
	tests := []struct {
		name      string
		failFast  bool
		keepGoing bool
		maxfail   int
		want      Policy
		wantErr   bool
	}{
		{name: "defaults to keep-going", want: Policy{Mode: types.ModeKeepGoing}},
		{name: "fail-fast", failFast: true, want: Policy{Mode: types.ModeFailFast}},
		{name: "maxfail", maxfail: 2, want: Policy{Mode: types.ModeMaxFail, MaxFail: 2}},
		{name: "keep-going overrides maxfail", keepGoing: true, maxfail: 1, want: Policy{Mode: types.ModeKeepGoing, MaxFail: 1}},
		{name: "fail-fast wins over maxfail", failFast: true, maxfail: 3, want: Policy{Mode: types.ModeFailFast, MaxFail: 3}},
		{name: "negative maxfail clamps", maxfail: -4, want: Policy{Mode: types.ModeKeepGoing}},
		{name: "fail-fast with keep-going", failFast: true, keepGoing: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePolicy(tt.failFast, tt.keepGoing, tt.maxfail)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConflictingPolicy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecutorPolicies(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	t.Run("fail-fast stops after first failure", func(t *testing.T) {
		exec := NewExecutor(Config{Checks: reg, Log: testLogger()})
		policy, err := ResolvePolicy(true, false, 0)
		require.NoError(t, err)

		tasks := checkTasks("pass", "fail", "pass")
		rows := exec.Run(ctx, tasks, policy)
		assert.Equal(t, []types.Status{types.StatusPass, types.StatusFail}, statuses(rows))
		assert.Equal(t, 1, len(tasks)-len(rows))
	})

	t.Run("maxfail stops at the limit", func(t *testing.T) {
		exec := NewExecutor(Config{Checks: reg, Log: testLogger()})
		policy, err := ResolvePolicy(false, false, 2)
		require.NoError(t, err)

		tasks := checkTasks("fail", "fail", "fail", "pass")
		rows := exec.Run(ctx, tasks, policy)
		assert.Len(t, rows, 2)
		assert.Equal(t, 2, len(tasks)-len(rows))
	})

	t.Run("keep-going overrides maxfail", func(t *testing.T) {
		exec := NewExecutor(Config{Checks: reg, Log: testLogger()})
		policy, err := ResolvePolicy(false, true, 1)
		require.NoError(t, err)

		rows := exec.Run(ctx, checkTasks("fail", "fail", "fail", "pass"), policy)
		assert.Equal(t, []types.Status{types.StatusFail, types.StatusFail, types.StatusFail, types.StatusPass}, statuses(rows))
	})

	t.Run("indexes are contiguous and rows reported", func(t *testing.T) {
		var seen []int
		exec := NewExecutor(Config{
			Checks: reg,
			Log:    testLogger(),
			OnRow:  func(r types.ExecutionRow) { seen = append(seen, r.Index) },
		})
		rows := exec.Run(ctx, checkTasks("pass", "fail", "pass"), Policy{Mode: types.ModeKeepGoing})
		for i, r := range rows {
			assert.Equal(t, i+1, r.Index)
			assert.Equal(t, "s", r.Suite)
		}
		assert.Equal(t, []int{1, 2, 3}, seen)
	})
}

func TestExecutorDispatch(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	repo := t.TempDir()

	runner := newFakeRunner()
	runner.results["make lint"] = &process.Result{ExitCode: 2, Stderr: "\nlint: 3 problems\nmore\n"}
	runner.results["make quiet-fail"] = &process.Result{ExitCode: 7}
	runner.results["/bin/atlasctl suite list"] = &process.Result{}
	runner.results["make slow"] = &process.Result{ExitCode: -1, TimedOut: true}
	runner.errs["missing-binary"] = errors.New("failed to start \"missing-binary\": not found")

	schemasDir := filepath.Join(repo, "schemas")
	require.NoError(t, os.MkdirAll(schemasDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(schemasDir, "widget.schema.json"),
		[]byte(`{"type":"object","required":["name"]}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "good.json"), []byte(`{"name":"x"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "bad.json"), []byte(`{}`), 0644))

	exec := NewExecutor(Config{
		Checks:     reg,
		Commands:   runner,
		Schemas:    schema.NewCatalog(schemasDir),
		RepoRoot:   repo,
		Self:       "/bin/atlasctl",
		CmdTimeout: time.Second,
		Log:        testLogger(),
	})

	tests := []struct {
		name       string
		task       types.TaskSpec
		wantStatus types.Status
		wantDetail string
	}{
		{name: "passing check", task: types.NewTaskSpec("s", types.TaskKindCheck, "pass"), wantStatus: types.StatusPass},
		{name: "check receives repo root", task: types.NewTaskSpec("s", types.TaskKindCheck, "env"), wantStatus: types.StatusPass},
		{
			name:       "failing check",
			task:       types.NewTaskSpec("s", types.TaskKindCheck, "fail"),
			wantStatus: types.StatusFail,
			wantDetail: "why=broken; how_to_fix=fix it; evidence=n/a",
		},
		{
			name:       "unknown check",
			task:       types.NewTaskSpec("s", types.TaskKindCheck, "nope"),
			wantStatus: types.StatusFail,
			wantDetail: "why=unknown check id `nope`; how_to_fix=register the check or remove it from the suite; evidence=n/a",
		},
		{
			name:       "panicking check",
			task:       types.NewTaskSpec("s", types.TaskKindCheck, "panic"),
			wantStatus: types.StatusFail,
			wantDetail: "why=check panicked: kaboom; how_to_fix=n/a; evidence=n/a",
		},
		{
			name:       "failing command uses first output line",
			task:       types.NewTaskSpec("s", types.TaskKindCmd, "make lint"),
			wantStatus: types.StatusFail,
			wantDetail: "why=lint: 3 problems; how_to_fix=run the command directly and resolve failures; evidence=n/a",
		},
		{
			name:       "silent failing command",
			task:       types.NewTaskSpec("s", types.TaskKindCmd, "make quiet-fail"),
			wantStatus: types.StatusFail,
			wantDetail: "why=command failed with exit 7; how_to_fix=run the command directly and resolve failures; evidence=n/a",
		},
		{
			name:       "timed out command",
			task:       types.NewTaskSpec("s", types.TaskKindCmd, "make slow"),
			wantStatus: types.StatusFail,
			wantDetail: "why=command timed out after 1s; how_to_fix=run the command directly and resolve failures; evidence=n/a",
		},
		{name: "atlasctl resolves to self", task: types.NewTaskSpec("s", types.TaskKindCmd, "atlasctl suite list"), wantStatus: types.StatusPass},
		{name: "start failure", task: types.NewTaskSpec("s", types.TaskKindCmd, "missing-binary"), wantStatus: types.StatusFail},
		{name: "unbalanced quotes", task: types.NewTaskSpec("s", types.TaskKindCmd, `echo "oops`), wantStatus: types.StatusFail},
		{name: "schema exists", task: types.NewTaskSpec("s", types.TaskKindSchema, "widget"), wantStatus: types.StatusPass},
		{name: "builtin schema exists", task: types.NewTaskSpec("s", types.TaskKindSchema, "atlasctl.suite-run.v1"), wantStatus: types.StatusPass},
		{name: "payload validates", task: types.NewTaskSpec("s", types.TaskKindSchema, "widget@good.json"), wantStatus: types.StatusPass},
		{name: "payload invalid", task: types.NewTaskSpec("s", types.TaskKindSchema, "widget@bad.json"), wantStatus: types.StatusFail},
		{
			name:       "payload missing",
			task:       types.NewTaskSpec("s", types.TaskKindSchema, "widget@missing.json"),
			wantStatus: types.StatusFail,
			wantDetail: "why=missing payload file `missing.json`; how_to_fix=generate or provide payload file path; evidence=n/a",
		},
		{name: "unknown schema", task: types.NewTaskSpec("s", types.TaskKindSchema, "nope"), wantStatus: types.StatusFail},
		{name: "unexpanded check-tag", task: types.NewTaskSpec("s", types.TaskKindCheckTag, "lint"), wantStatus: types.StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := exec.Run(ctx, []types.TaskSpec{tt.task}, Policy{Mode: types.ModeKeepGoing})
			require.Len(t, rows, 1)
			assert.Equal(t, tt.wantStatus, rows[0].Status, rows[0].Detail)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, rows[0].Detail)
			}
			if tt.wantStatus == types.StatusFail {
				assert.NotEmpty(t, rows[0].Detail)
			}
		})
	}

	assert.Contains(t, runner.Calls(), "/bin/atlasctl suite list")
}

func newTestCatalog(t *testing.T, ids ...string) *registry.LaneCatalog {
	t.Helper()
	lanes := make([]types.Lane, 0, len(ids))
	for _, id := range ids {
		lanes = append(lanes, types.Lane{ID: id, Description: id, MakeTarget: "target-" + id})
	}
	catalog, err := registry.NewLaneCatalog("test", lanes, map[string][]string{"root": ids})
	require.NoError(t, err)
	return catalog
}

func TestResolveLanes(t *testing.T) {
	catalog := newTestCatalog(t, "a", "b", "c")

	lanes, err := ResolveLanes(catalog, []string{"c", "a", "c"})
	require.NoError(t, err)
	require.Len(t, lanes, 2)
	assert.Equal(t, "c", lanes[0].ID)
	assert.Equal(t, "a", lanes[1].ID)

	_, err = ResolveLanes(catalog, []string{"zz", "a", "yy"})
	var unknown *types.UnknownLaneError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"yy", "zz"}, unknown.IDs)
	assert.Equal(t, "unknown lane ids: yy, zz", err.Error())
}

func TestLaneSchedulerOrderInvariance(t *testing.T) {
	ids := []string{"e-lane", "b-lane", "d-lane", "a-lane", "c-lane"}
	catalog := newTestCatalog(t, ids...)
	lanes, err := ResolveLanes(catalog, ids)
	require.NoError(t, err)

	newRunner := func(seed int64) *fakeRunner {
		r := newFakeRunner()
		r.results["make -s target-b-lane"] = &process.Result{ExitCode: 2, Combined: "building\n\x1b[0mError 2: b broke\n\n"}
		r.results["make -s target-d-lane"] = &process.Result{ExitCode: 1}
		rng := rand.New(rand.NewSource(seed))
		delays := make(map[string]time.Duration)
		for _, id := range ids {
			delays["target-"+id] = time.Duration(rng.Intn(30)) * time.Millisecond
		}
		r.delay = func(args []string) time.Duration { return delays[args[len(args)-1]] }
		return r
	}

	sequential := NewLaneScheduler(LaneConfig{Commands: newRunner(1), Log: testLogger()}).
		Run(context.Background(), lanes, false, 1)

	var gotIDs []string
	for _, r := range sequential {
		gotIDs = append(gotIDs, r.ID)
	}
	assert.Equal(t, []string{"a-lane", "b-lane", "c-lane", "d-lane", "e-lane"}, gotIDs)
	assert.Equal(t, types.StatusFail, sequential[1].Status)
	assert.Equal(t, "Error 2: b broke", sequential[1].Error)
	assert.Equal(t, "lane failed", sequential[3].Error)
	assert.Equal(t, "target-a-lane", sequential[0].MakeTarget)

	for seed := int64(0); seed < 5; seed++ {
		r := newRunner(seed)
		parallel := NewLaneScheduler(LaneConfig{Commands: r, Log: testLogger()}).
			Run(context.Background(), lanes, true, 4)
		assert.Equal(t, sequential, parallel)
		assert.LessOrEqual(t, r.maxSeen, 4)
		assert.Len(t, r.Calls(), 5)
	}
}

func TestLaneSchedulerStartFailure(t *testing.T) {
	r := newFakeRunner()
	r.errs["make -s target-a"] = errors.New("make not found")
	results := NewLaneScheduler(LaneConfig{Commands: r, Log: testLogger()}).
		Run(context.Background(), []types.Lane{{ID: "a", MakeTarget: "target-a"}}, true, 0)
	require.Len(t, results, 1)
	assert.Equal(t, types.StatusFail, results[0].Status)
	assert.Equal(t, "make not found", results[0].Error)
}

func TestSortLaneResults(t *testing.T) {
	results := []types.LaneResult{{ID: "c"}, {ID: "a"}, {ID: "b"}}
	SortLaneResults(results)
	assert.Equal(t, []types.LaneResult{{ID: "a"}, {ID: "b"}, {ID: "c"}}, results)
}
