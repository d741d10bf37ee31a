// Package exitcodes defines the exit codes used by atlasctl.
package exitcodes

// Exit code constants used by atlasctl:
//
// * Success (0): every task and lane passed, or the inventory is clean
// * Failure (1): a task or lane failed, a time budget was exceeded, or checks report violations
// * Usage (2): bad flags or manifests, unknown names, cyclic includes, guard refusals
// * RuntimeErr (3): artifacts could not be written or validated
const (
	Success    = 0
	Failure    = 1
	Usage      = 2
	RuntimeErr = 3
)
