package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bijux/atlasctl/process"
	"github.com/bijux/atlasctl/types"
	"github.com/sourcegraph/conc/panics"
)

const (
	unknownCheckHint  = "register the check or remove it from the suite"
	cmdFixHint        = "run the command directly and resolve failures"
	missingSchemaHint = "add the schema under the schemas directory or fix the task"
	missingFileHint   = "generate or provide payload file path"
)

func (e *Executor) dispatch(ctx context.Context, task types.TaskSpec) (types.Status, string) {
	switch task.Kind {
	case types.TaskKindCheck:
		return e.runCheck(ctx, task.Value)
	case types.TaskKindCmd:
		return e.runCmd(ctx, task.Value)
	case types.TaskKindSchema:
		return e.runSchema(task.Value)
	default:
		return types.StatusFail, types.FormatDetail(fmt.Sprintf("unsupported task kind `%s`", task.Kind), "", nil)
	}
}

func (e *Executor) runCheck(ctx context.Context, id string) (types.Status, string) {
	if e.checks == nil {
		return types.StatusFail, types.FormatDetail("no check registry configured", "", nil)
	}
	desc, ok := e.checks.Lookup(id)
	if !ok {
		return types.StatusFail, types.FormatDetail(fmt.Sprintf("unknown check id `%s`", id), unknownCheckHint, nil)
	}

	var (
		outcome types.CheckOutcome
		pc      panics.Catcher
	)
	pc.Try(func() {
		outcome = desc.Check.Run(ctx, types.CheckEnv{RepoRoot: e.repoRoot})
	})
	if r := pc.Recovered(); r != nil {
		e.log.Error("Check panicked", "check", id, "panic", r.Value)
		return types.StatusFail, types.FormatDetail(fmt.Sprintf("check panicked: %v", r.Value), desc.FixHint, nil)
	}
	if outcome.Passed() {
		return types.StatusPass, ""
	}
	return types.StatusFail, outcome.Detail(desc.FixHint)
}

func (e *Executor) runCmd(ctx context.Context, line string) (types.Status, string) {
	args, err := process.SplitCommand(line)
	if err != nil {
		return types.StatusFail, types.FormatDetail(err.Error(), cmdFixHint, nil)
	}
	if args[0] == types.Tool && e.self != "" {
		args[0] = e.self
	}

	res, err := e.commands.Run(ctx, process.Command{
		Args:    args,
		Dir:     e.repoRoot,
		Timeout: e.cmdTimeout,
		Stream:  e.output,
	})
	if err != nil {
		return types.StatusFail, types.FormatDetail(err.Error(), cmdFixHint, nil)
	}
	if res.Success() {
		return types.StatusPass, ""
	}
	if res.TimedOut {
		return types.StatusFail, types.FormatDetail(fmt.Sprintf("command timed out after %s", e.cmdTimeout), cmdFixHint, nil)
	}
	reason := process.FirstLine(res.Stderr + "\n" + res.Stdout)
	if reason == "" {
		reason = fmt.Sprintf("command failed with exit %d", res.ExitCode)
	}
	return types.StatusFail, types.FormatDetail(reason, cmdFixHint, nil)
}

// runSchema handles "name" (the schema must exist) and "name@path" (the payload file
// must validate against the schema).
func (e *Executor) runSchema(spec string) (types.Status, string) {
	if e.schemas == nil {
		return types.StatusFail, types.FormatDetail("no schema catalog configured", "", nil)
	}
	name, file, hasFile := strings.Cut(spec, "@")
	name = strings.TrimSpace(name)
	if !e.schemas.Exists(name) {
		return types.StatusFail, types.FormatDetail(fmt.Sprintf("unknown schema `%s`", name), missingSchemaHint, nil)
	}
	if !hasFile {
		return types.StatusPass, ""
	}

	file = strings.TrimSpace(file)
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.repoRoot, file)
	}
	if _, err := os.Stat(path); err != nil {
		return types.StatusFail, types.FormatDetail(fmt.Sprintf("missing payload file `%s`", file), missingFileHint, nil)
	}
	if err := e.schemas.ValidateFile(name, path); err != nil {
		return types.StatusFail, types.FormatDetail(err.Error(), fmt.Sprintf("fix the payload to match schema `%s`", name), []string{file})
	}
	return types.StatusPass, ""
}
