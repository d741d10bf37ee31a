// Package types contains the shared model of the suite and gate execution engine.
package types

import (
	"context"
	"slices"
	"strings"
)

// CheckEnv is the read-only view of the repository handed to every check.
type CheckEnv struct {
	RepoRoot string
}

// CheckOutcome is what a check reports back. A check passes when it reports no errors;
// warnings are carried into the detail text but never fail the task.
type CheckOutcome struct {
	Errors   []string
	Warnings []string
	Evidence []string
}

// Passed reports whether the outcome has no errors.
func (o CheckOutcome) Passed() bool {
	return len(o.Errors) == 0
}

// Detail renders the outcome in the why/how_to_fix/evidence form used in result rows.
func (o CheckOutcome) Detail(fixHint string) string {
	if o.Passed() {
		return ""
	}
	var reasons []string
	reasons = append(reasons, firstN(o.Errors, 2)...)
	reasons = append(reasons, firstN(o.Warnings, 2)...)
	reason := "check failed"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}
	return FormatDetail(reason, fixHint, o.Evidence)
}

// FormatDetail builds a detail string from a reason, a fix hint and evidence paths.
func FormatDetail(reason, fixHint string, evidence []string) string {
	if fixHint == "" {
		fixHint = "n/a"
	}
	ev := "n/a"
	if len(evidence) > 0 {
		ev = strings.Join(evidence, ", ")
	}
	return "why=" + reason + "; how_to_fix=" + fixHint + "; evidence=" + ev
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// Checkable is implemented by everything that can be registered as a check.
type Checkable interface {
	Run(ctx context.Context, env CheckEnv) CheckOutcome
}

// CheckFunc adapts a plain function to the Checkable interface.
type CheckFunc func(ctx context.Context, env CheckEnv) CheckOutcome

// Run implements Checkable.
func (f CheckFunc) Run(ctx context.Context, env CheckEnv) CheckOutcome {
	return f(ctx, env)
}

// CheckDescriptor describes a registered check.
type CheckDescriptor struct {
	ID          string
	Domain      string
	Description string
	Tags        []string
	Effects     []string
	FixHint     string
	Check       Checkable
}

// HasTag reports whether the descriptor carries the given tag.
func (d CheckDescriptor) HasTag(tag string) bool {
	return slices.Contains(d.Tags, tag)
}

// IsInternal reports whether the check is exempt from suite membership rules.
func (d CheckDescriptor) IsInternal() bool {
	return d.HasTag(TagInternal) || d.HasTag(TagInternalOnly)
}

// Tags with special meaning to suite inventory checks.
const (
	TagInternal     = "internal"
	TagInternalOnly = "internal-only"
	TagRequired     = "required"
)
