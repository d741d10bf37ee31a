package atlasctl

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/bijux/atlasctl/flags"
	"github.com/bijux/atlasctl/metrics"
	"github.com/bijux/atlasctl/reporting"
	"github.com/bijux/atlasctl/runner"
	"github.com/bijux/atlasctl/types"
)

const (
	reportText = "text"
	reportJSON = "json"
)

func gatesCommand(opts []Option) *cli.Command {
	return &cli.Command{
		Name:  "gates",
		Usage: "run make-target gate lanes",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list lanes and presets",
				Flags:  []cli.Flag{flags.Report},
				Action: action(opts, gatesList),
			},
			{
				Name:      "run",
				Usage:     "run lanes sequentially or in parallel",
				ArgsUsage: "[LANE]",
				Flags:     flags.GatesRunFlags,
				Action:    action(opts, gatesRun),
			},
		},
	}
}

func (a *App) reportJSON(c *cli.Context) (bool, error) {
	switch format := c.String(flags.Report.Name); format {
	case reportText, "":
		return a.cfg.JSON, nil
	case reportJSON:
		return true, nil
	default:
		return false, NewUsageError(fmt.Errorf("unsupported report format %q", format))
	}
}

func gatesList(c *cli.Context, a *App) error {
	asJSON, err := a.reportJSON(c)
	if err != nil {
		return err
	}
	catalog, err := a.Lanes()
	if err != nil {
		return err
	}

	if asJSON {
		presets := make(map[string][]string)
		for _, name := range catalog.PresetNames() {
			presets[name], _ = catalog.Preset(name)
		}
		return a.printJSON(map[string]any{
			"schema_version": types.SchemaVersion,
			"tool":           types.Tool,
			"status":         types.PayloadOK,
			"lanes":          catalog.Lanes(),
			"presets":        presets,
		})
	}
	for _, lane := range catalog.Lanes() {
		a.printf("%s: %s (target=%s)\n", lane.ID, lane.Description, lane.MakeTarget)
	}
	if names := catalog.PresetNames(); len(names) > 0 {
		a.printf("presets:\n")
		for _, name := range names {
			ids, _ := catalog.Preset(name)
			a.printf("- %s: %s\n", name, strings.Join(ids, ", "))
		}
	}
	return nil
}

// selectLanes resolves the lanes to run. --all runs the whole selected preset and wins
// over named lanes; named lanes (positional LANE and --lane) win over the preset default.
// The returned preset is always the --preset value.
func (a *App) selectLanes(c *cli.Context) (string, []string, error) {
	catalog, err := a.Lanes()
	if err != nil {
		return "", nil, err
	}
	preset := c.String(flags.Preset.Name)
	named := append(c.Args().Slice(), c.StringSlice(flags.Lane.Name)...)
	if len(named) > 0 && !c.Bool(flags.AllLanes.Name) {
		return preset, named, nil
	}
	ids, ok := catalog.Preset(preset)
	if !ok {
		return "", nil, NewUsageError(fmt.Errorf("unknown preset %q (known: %s)", preset, strings.Join(catalog.PresetNames(), ", ")))
	}
	return preset, ids, nil
}

func gatesRun(c *cli.Context, a *App) error {
	asJSON, err := a.reportJSON(c)
	if err != nil {
		return err
	}
	preset, ids, err := a.selectLanes(c)
	if err != nil {
		return err
	}
	catalog, err := a.Lanes()
	if err != nil {
		return err
	}
	lanes, err := runner.ResolveLanes(catalog, ids)
	if err != nil {
		if asJSON {
			if perr := a.printJSON(map[string]any{
				"schema_version": types.SchemaVersion,
				"tool":           types.Tool,
				"status":         types.StatusFail,
				"action":         "run",
				"run_id":         a.cfg.RunID,
				"error":          err.Error(),
			}); perr != nil {
				return perr
			}
		}
		return NewUsageError(err)
	}

	ctx := c.Context
	reportDir := reporting.GateReportDir(a.cfg.EvidenceRoot, a.cfg.RunID)
	telemetry := metrics.NewTelemetry(a.log, filepath.Join(reportDir, reporting.TelemetryFile))
	defer a.closeTelemetry(ctx, telemetry)

	scheduler := runner.NewLaneScheduler(runner.LaneConfig{
		Commands: a.commands,
		RepoRoot: a.cfg.RepoRoot,
		Timeout:  a.cfg.CmdTimeout,
		Log:      a.log,
	})
	parallel := c.Bool(flags.Parallel.Name)
	a.log.Info("Running gates", "preset", preset, "lanes", len(lanes), "parallel", parallel, "run_id", a.cfg.RunID)
	results := scheduler.Run(ctx, lanes, parallel, c.Int(flags.Jobs.Name))
	for _, r := range results {
		metrics.RecordLane(preset, r)
	}

	result := reporting.BuildGateResult(a.cfg.RunID, preset, results)
	if err := reporting.WriteGateArtifacts(result, a.schemas, a.cfg.EvidenceRoot, a.cfg.RepoRoot); err != nil {
		metrics.RecordErrorDetails("gate_artifacts", err)
		return NewRuntimeError(err)
	}
	telemetry.Emit(ctx, metrics.GateRunEvent(result))

	if asJSON {
		if err := a.printJSON(result); err != nil {
			return err
		}
	} else {
		reporting.RenderGateResult(a.out, result)
	}
	if result.FailedCount > 0 {
		return NewFailureError("gates failed: %d of %d lanes", result.FailedCount, result.TotalCount)
	}
	return nil
}
