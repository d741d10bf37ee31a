package runner

import (
	"errors"

	"github.com/bijux/atlasctl/types"
)

// ErrConflictingPolicy is returned when fail-fast and keep-going are both requested.
var ErrConflictingPolicy = errors.New("--fail-fast and --keep-going cannot be combined")

// Policy controls when the executor stops starting new tasks.
type Policy struct {
	Mode    types.ExecutionMode
	MaxFail int
}

// ResolvePolicy maps run flags onto a Policy. keep-going always wins over maxfail, and
// fail-fast wins over maxfail. Without any flag every task runs.
func ResolvePolicy(failFast, keepGoing bool, maxfail int) (Policy, error) {
	if maxfail < 0 {
		maxfail = 0
	}
	switch {
	case failFast && keepGoing:
		return Policy{}, ErrConflictingPolicy
	case failFast:
		return Policy{Mode: types.ModeFailFast, MaxFail: maxfail}, nil
	case keepGoing:
		return Policy{Mode: types.ModeKeepGoing, MaxFail: maxfail}, nil
	case maxfail > 0:
		return Policy{Mode: types.ModeMaxFail, MaxFail: maxfail}, nil
	default:
		return Policy{Mode: types.ModeKeepGoing}, nil
	}
}

// ShouldStop reports whether execution must stop after failures failed tasks.
func (p Policy) ShouldStop(failures int) bool {
	switch p.Mode {
	case types.ModeFailFast:
		return failures > 0
	case types.ModeMaxFail:
		return p.MaxFail > 0 && failures >= p.MaxFail
	default:
		return false
	}
}
