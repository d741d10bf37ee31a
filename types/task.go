package types

import (
	"fmt"
	"strings"
)

// TaskKind identifies how a task is dispatched.
type TaskKind int

const (
	TaskKindUnknown TaskKind = iota
	TaskKindCheck
	TaskKindCheckTag
	TaskKindCmd
	TaskKindSchema
)

var taskKindNames = map[TaskKind]string{
	TaskKindCheck:    "check",
	TaskKindCheckTag: "check-tag",
	TaskKindCmd:      "cmd",
	TaskKindSchema:   "schema",
}

// String implements the Stringer interface for TaskKind
func (k TaskKind) String() string {
	if name, ok := taskKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseTaskKind maps a token prefix to its TaskKind.
func ParseTaskKind(s string) (TaskKind, bool) {
	for kind, name := range taskKindNames {
		if name == s {
			return kind, true
		}
	}
	return TaskKindUnknown, false
}

// MarshalText encodes the kind by name so artifacts stay readable.
func (k TaskKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind written by MarshalText.
func (k *TaskKind) UnmarshalText(text []byte) error {
	kind, ok := ParseTaskKind(string(text))
	if !ok {
		return fmt.Errorf("unknown task kind %q", string(text))
	}
	*k = kind
	return nil
}

// TaskSpec is one concrete unit of work produced by suite expansion.
type TaskSpec struct {
	Suite string   `json:"suite"`
	Kind  TaskKind `json:"kind"`
	Value string   `json:"value"`
	Label string   `json:"label"`
}

// NewTaskSpec creates a TaskSpec with its canonical label.
func NewTaskSpec(suite string, kind TaskKind, value string) TaskSpec {
	return TaskSpec{
		Suite: suite,
		Kind:  kind,
		Value: value,
		Label: kind.String() + " " + value,
	}
}

// Key is the string that only/skip patterns are matched against.
func (t TaskSpec) Key() string {
	return t.Kind.String() + ":" + t.Value
}

// ParseTaskToken decodes a raw suite item. Tokens with a known kind prefix are split on
// the first colon; everything else is a command.
func ParseTaskToken(suite, raw string) (TaskSpec, error) {
	token := strings.TrimSpace(raw)
	if token == "" {
		return TaskSpec{}, &ConfigError{Source: "suite " + suite, Message: "empty task entry"}
	}
	if prefix, value, found := strings.Cut(token, ":"); found {
		if kind, ok := ParseTaskKind(strings.TrimSpace(prefix)); ok {
			value = strings.TrimSpace(value)
			if value == "" {
				return TaskSpec{}, &ConfigError{
					Source:  "suite " + suite,
					Message: fmt.Sprintf("invalid suite task entry %q: missing value", raw),
				}
			}
			return NewTaskSpec(suite, kind, value), nil
		}
	}
	return NewTaskSpec(suite, TaskKindCmd, token), nil
}
