package types

// Lane is one independently runnable gate unit backed by a make target.
type Lane struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	MakeTarget  string `json:"make_target" yaml:"make_target"`
}

// LaneResult is the outcome of running a single lane.
type LaneResult struct {
	ID         string `json:"id"`
	MakeTarget string `json:"make_target"`
	Status     Status `json:"status"`
	Error      string `json:"error,omitempty"`
}
