package types

// SuiteKind distinguishes suites composed from includes/items from suites with a fixed
// check list.
type SuiteKind string

const (
	SuiteKindLegacy     SuiteKind = "legacy"
	SuiteKindFirstClass SuiteKind = "first-class"
)

// SuiteManifest is a declarative suite definition loaded from configuration.
type SuiteManifest struct {
	Name           string
	Kind           SuiteKind
	Description    string
	Includes       []string
	Items          []string
	Complete       bool
	Markers        []string
	RequiredEnv    []string
	DefaultEffects []string
	CheckIDs       []string
	TimeBudgetMS   int64
	Internal       bool
}

// IsFirstClass reports whether the suite is defined by a fixed check id list.
func (m SuiteManifest) IsFirstClass() bool {
	return m.Kind == SuiteKindFirstClass
}
