package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/bijux/atlasctl/types"
)

const maxDoctorAdvice = 10

// LoadSuiteResult reads a results.json written by a previous run.
func LoadSuiteResult(path string) (*types.SuiteResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite results: %w", err)
	}
	var result types.SuiteResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse suite results %s: %w", path, err)
	}
	return &result, nil
}

// FailedLabels returns the distinct labels of failing rows, sorted.
func FailedLabels(result *types.SuiteResult) []string {
	seen := make(map[string]struct{})
	for _, row := range result.Results {
		if row.Status == types.StatusFail {
			seen[row.Label] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for label := range seen {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// FailureDiff is the set difference of failing labels between two runs.
type FailureDiff struct {
	NewFailures []string `json:"new_failures"`
	Fixed       []string `json:"fixed"`
}

// DiffFailures compares a baseline run with a later run.
func DiffFailures(baseline, current *types.SuiteResult) FailureDiff {
	before := FailedLabels(baseline)
	after := FailedLabels(current)
	return FailureDiff{
		NewFailures: difference(after, before),
		Fixed:       difference(before, after),
	}
}

func difference(a, b []string) []string {
	exclude := make(map[string]struct{}, len(b))
	for _, s := range b {
		exclude[s] = struct{}{}
	}
	out := make([]string, 0)
	for _, s := range a {
		if _, ok := exclude[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// DoctorAdvice returns one remediation line per failing row, at most ten, in run order.
func DoctorAdvice(result *types.SuiteResult) (failed int, advice []string) {
	advice = make([]string, 0)
	for _, row := range result.Results {
		if row.Status != types.StatusFail {
			continue
		}
		failed++
		if len(advice) < maxDoctorAdvice {
			advice = append(advice, "fix failing task: "+row.Label)
		}
	}
	return failed, advice
}
