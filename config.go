package atlasctl

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/bijux/atlasctl/flags"
	"github.com/ethereum/go-ethereum/log"
)

const runIDPrefix = "atlas-"

// Config holds the application configuration
type Config struct {
	RepoRoot     string
	RunID        string
	RunIDSet     bool // Whether --run-id was given rather than generated
	EvidenceRoot string
	IsolateRoot  string
	SuitesPath   string
	LanesPath    string
	SchemasDir   string
	JSON         bool
	Quiet        bool
	CmdTimeout   time.Duration // Per command task and lane timeout, 0 for none
	Log          log.Logger
}

// NewConfig creates a new Config from cli context. Relative paths are resolved
// against the repository root.
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	root, err := filepath.Abs(ctx.String(flags.RepoRoot.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repo root '%s': %w", ctx.String(flags.RepoRoot.Name), err)
	}

	runID := ctx.String(flags.RunID.Name)
	runIDSet := runID != ""
	if !runIDSet {
		runID = NewRunID()
	}

	return &Config{
		RepoRoot:     root,
		RunID:        runID,
		RunIDSet:     runIDSet,
		EvidenceRoot: underRoot(root, ctx.String(flags.EvidenceRoot.Name)),
		IsolateRoot:  underRoot(root, ctx.String(flags.IsolateRoot.Name)),
		SuitesPath:   underRoot(root, ctx.String(flags.SuitesConfig.Name)),
		LanesPath:    underRoot(root, ctx.String(flags.LanesConfig.Name)),
		SchemasDir:   underRoot(root, ctx.String(flags.SchemasDir.Name)),
		JSON:         ctx.Bool(flags.JSON.Name),
		Quiet:        ctx.Bool(flags.Quiet.Name),
		CmdTimeout:   ctx.Duration(flags.CmdTimeout.Name),
		Log:          log,
	}, nil
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return runIDPrefix + uuid.New().String()
}

func underRoot(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
