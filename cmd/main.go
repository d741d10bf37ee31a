package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	"github.com/bijux/atlasctl"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	oplog.SetupDefaults()

	app := atlasctl.NewCLI(fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate))
	// Exit codes are decided below so that deferred shutdowns still run.
	app.ExitErrHandler = func(*cli.Context, error) {}

	ctx := context.Background()
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		shutdown, err := otelconfig.ConfigureOpenTelemetry(
			otelconfig.WithServiceName(app.Name),
			otelconfig.WithServiceVersion(app.Version),
		)
		if err != nil {
			log.Crit("Failed to setup open telemetry", "message", err)
		}
		defer shutdown()
	}

	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err := app.RunContext(ctx, args)
	if err != nil && !atlasctl.IsFailureError(err) {
		fmt.Fprintln(app.ErrWriter, err.Error())
	}
	return atlasctl.ExitCode(err)
}
