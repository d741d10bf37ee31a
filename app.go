// Package atlasctl wires the suite and gate engines into the atlasctl command line.
package atlasctl

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/bijux/atlasctl/checks"
	"github.com/bijux/atlasctl/flags"
	"github.com/bijux/atlasctl/process"
	"github.com/bijux/atlasctl/registry"
	"github.com/bijux/atlasctl/reporting"
	"github.com/bijux/atlasctl/schema"
	"github.com/bijux/atlasctl/suite"
	"github.com/bijux/atlasctl/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	"github.com/ethereum/go-ethereum/log"
)

// InternalEnvVar must be "1" to run suites marked internal.
const InternalEnvVar = "ATLASCTL_INTERNAL"

// Option customizes an App.
type Option func(*App)

// WithCommandRunner replaces the process runner used for cmd tasks and lanes.
func WithCommandRunner(r process.Runner) Option {
	return func(a *App) { a.commands = r }
}

// WithChecks registers extra checks next to the built-in catalog.
func WithChecks(descs ...types.CheckDescriptor) Option {
	return func(a *App) { a.extraChecks = append(a.extraChecks, descs...) }
}

// WithLookupEnv replaces the environment lookup used by suite guards.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(a *App) { a.lookupEnv = fn }
}

// App is one invocation of atlasctl: configuration, the check registry and lazily
// loaded manifests.
type App struct {
	cfg      *Config
	log      log.Logger
	out      io.Writer
	errOut   io.Writer
	registry *registry.Registry
	schemas  *schema.Catalog
	commands process.Runner
	self     string

	extraChecks []types.CheckDescriptor
	lookupEnv   func(string) (string, bool)

	suites *registry.SuiteSet
	lanes  *registry.LaneCatalog
}

// New builds an App and registers the built-in checks.
func New(cfg *Config, out, errOut io.Writer, opts ...Option) (*App, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	a := &App{
		cfg:       cfg,
		log:       cfg.Log,
		out:       out,
		errOut:    errOut,
		schemas:   schema.NewCatalog(cfg.SchemasDir),
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.commands == nil {
		a.commands = process.NewExecRunner(cfg.Log, 0)
	}
	if self, err := os.Executable(); err == nil {
		a.self = self
	}

	a.registry = registry.NewRegistry(registry.Config{Log: cfg.Log})
	if err := checks.Register(a.registry); err != nil {
		return nil, fmt.Errorf("failed to register built-in checks: %w", err)
	}
	if err := a.registry.RegisterAll(a.extraChecks...); err != nil {
		return nil, NewUsageError(err)
	}
	return a, nil
}

// Suites loads the suite manifests on first use.
func (a *App) Suites() (*registry.SuiteSet, error) {
	if a.suites != nil {
		return a.suites, nil
	}
	set, err := registry.LoadSuiteManifests(a.cfg.SuitesPath)
	if err != nil {
		return nil, NewUsageError(err)
	}
	a.suites = set
	return set, nil
}

// Lanes loads the lane catalog on first use.
func (a *App) Lanes() (*registry.LaneCatalog, error) {
	if a.lanes != nil {
		return a.lanes, nil
	}
	catalog, err := registry.LoadLanes(a.cfg.LanesPath)
	if err != nil {
		return nil, NewUsageError(err)
	}
	a.lanes = catalog
	return catalog, nil
}

func (a *App) expander() (*suite.Expander, error) {
	set, err := a.Suites()
	if err != nil {
		return nil, err
	}
	return suite.NewExpander(a.registry, set), nil
}

func (a *App) printJSON(v any) error {
	data, err := reporting.EncodeJSON(v, true)
	if err != nil {
		return NewRuntimeError(err)
	}
	_, err = a.out.Write(data)
	return err
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// action builds the App for a command from the cli context and hands it to fn.
func action(opts []Option, fn func(*cli.Context, *App) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		logger := oplog.NewLogger(c.App.ErrWriter, oplog.ReadCLIConfig(c))
		oplog.SetGlobalLogHandler(logger.Handler())

		cfg, err := NewConfig(c, logger)
		if err != nil {
			return NewUsageError(fmt.Errorf("failed to create config: %w", err))
		}
		cfg.Log.Debug("Config", "config", cfg)

		app, err := New(cfg, c.App.Writer, c.App.ErrWriter, opts...)
		if err != nil {
			return err
		}
		return fn(c, app)
	}
}

// NewCLI returns the atlasctl command tree. Commands return typed errors; callers map
// them to exit codes with ExitCode.
func NewCLI(version string, opts ...Option) *cli.App {
	app := cli.NewApp()
	app.Name = "atlasctl"
	app.Version = version
	app.Usage = "Repository suite and gate runner"
	app.Description = "atlasctl expands declarative suites into checks, commands and schema validations, runs them under a failure policy and writes machine-readable results"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Commands = []*cli.Command{
		{
			Name:   "list",
			Usage:  "list configured suites and gate lanes",
			Action: action(opts, listCatalog),
		},
		suiteCommand(opts),
		gatesCommand(opts),
	}
	return app
}

func listCatalog(_ *cli.Context, a *App) error {
	set, err := a.Suites()
	if err != nil {
		return err
	}
	var lanes []types.Lane
	if _, statErr := os.Stat(a.cfg.LanesPath); statErr == nil {
		catalog, err := a.Lanes()
		if err != nil {
			return err
		}
		lanes = catalog.Lanes()
	}

	if a.cfg.JSON {
		ids := make([]string, 0, len(lanes))
		for _, lane := range lanes {
			ids = append(ids, lane.ID)
		}
		return a.printJSON(map[string]any{
			"schema_version": types.SchemaVersion,
			"tool":           types.Tool,
			"status":         types.PayloadOK,
			"default":        set.Default(),
			"suites":         set.Names(),
			"lanes":          ids,
		})
	}
	reporting.RenderCatalog(a.out, set.All(), set.Default(), lanes)
	return nil
}
