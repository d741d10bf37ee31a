package types

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports a malformed manifest, catalog or task token.
type ConfigError struct {
	Source  string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Source == "" {
		return "config error: " + e.Message
	}
	return fmt.Sprintf("config error in %s: %s", e.Source, e.Message)
}

// DuplicateIDError is returned when an id is registered twice.
type DuplicateIDError struct {
	Kind string
	ID   string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate %s id %q", e.Kind, e.ID)
}

// CyclicIncludeError names the include path that loops back on itself.
type CyclicIncludeError struct {
	Cycle []string
}

func (e *CyclicIncludeError) Error() string {
	return "suite include cycle detected: " + strings.Join(e.Cycle, " -> ")
}

// UnknownSuiteError is returned when a suite name is not defined.
type UnknownSuiteError struct {
	Name string
}

func (e *UnknownSuiteError) Error() string {
	return fmt.Sprintf("unknown suite %q", e.Name)
}

// UnknownLaneError lists every requested lane id that is not in the catalog.
type UnknownLaneError struct {
	IDs []string
}

func (e *UnknownLaneError) Error() string {
	return "unknown lane ids: " + strings.Join(e.IDs, ", ")
}

// IsStructural reports whether err is a configuration problem that must abort an
// invocation before anything runs.
func IsStructural(err error) bool {
	if err == nil {
		return false
	}
	var (
		cfgErr   *ConfigError
		dupErr   *DuplicateIDError
		cycleErr *CyclicIncludeError
		suiteErr *UnknownSuiteError
		laneErr  *UnknownLaneError
	)
	return errors.As(err, &cfgErr) ||
		errors.As(err, &dupErr) ||
		errors.As(err, &cycleErr) ||
		errors.As(err, &suiteErr) ||
		errors.As(err, &laneErr)
}
