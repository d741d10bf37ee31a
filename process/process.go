// Package process runs external commands and captures their output.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/shlex"
)

// Command describes one external process invocation.
type Command struct {
	Args    []string
	Dir     string
	Env     []string // appended to the parent environment
	Timeout time.Duration
	// Stream, when set, receives a live copy of the combined output.
	Stream io.Writer
}

// Result is the captured outcome of a finished process. Output has ANSI escapes removed.
type Result struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	Combined  string
	Duration  time.Duration
	TimedOut  bool
	Truncated bool
}

// Success reports whether the process exited with status zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Runner executes commands. An error is returned only when the process could not be
// started; a non-zero exit is reported through Result.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

var _ Runner = (*ExecRunner)(nil)

// waitDelay bounds how long output pipes are drained after a timed out process is killed.
const waitDelay = 2 * time.Second

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	log       log.Logger
	tailBytes int
}

// NewExecRunner creates an ExecRunner. tailBytes bounds the output kept per stream; zero
// selects the default.
func NewExecRunner(logger log.Logger, tailBytes int) *ExecRunner {
	if logger == nil {
		logger = log.New()
	}
	return &ExecRunner{
		log:       logger.New("component", "process"),
		tailBytes: tailBytes,
	}
}

// Run starts the command and waits for it to finish.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	if len(c.Args) == 0 {
		return nil, errors.New("empty command")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = waitDelay
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	stdout := newTailBuffer(r.tailBytes)
	stderr := newTailBuffer(r.tailBytes)
	combined := newTailBuffer(r.tailBytes)
	outWriters := []io.Writer{stdout, combined}
	errWriters := []io.Writer{stderr, combined}
	if c.Stream != nil {
		outWriters = append(outWriters, c.Stream)
		errWriters = append(errWriters, c.Stream)
	}
	cmd.Stdout = io.MultiWriter(outWriters...)
	cmd.Stderr = io.MultiWriter(errWriters...)

	r.log.Debug("Running command", "args", c.Args, "dir", c.Dir, "timeout", c.Timeout)
	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	res := &Result{
		Stdout:    stripansi.Strip(stdout.String()),
		Stderr:    stripansi.Strip(stderr.String()),
		Combined:  stripansi.Strip(combined.String()),
		Duration:  duration,
		Truncated: combined.Truncated(),
	}
	if runErr == nil {
		return res, nil
	}

	if c.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}
	exitErr := &exec.ExitError{}
	if errors.As(runErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode == 0 {
			// killed by a signal
			res.ExitCode = -1
		}
		return res, nil
	}
	return nil, fmt.Errorf("failed to start %q: %w", c.Args[0], runErr)
}

// SplitCommand tokenizes a command line using shell quoting rules.
func SplitCommand(line string) ([]string, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("invalid command %q: %w", line, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("invalid command %q: no arguments", line)
	}
	return args, nil
}

// FirstLine returns the first non-blank line of text.
func FirstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// LastLine returns the last non-blank line of text.
func LastLine(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
