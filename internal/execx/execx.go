// Package execx runs external CLI tools (kind, k3d, kubectl, docker, terraform)
// with a bounded wall-clock time and captures their output.
//
// A non-zero exit code is a normal Result, never an error. Timeouts and
// missing binaries are reported as synthetic failure results.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/logging"
)

const (
	// ShortTimeout bounds status and list calls.
	ShortTimeout = 30 * time.Second
	// LongTimeout bounds create, install and scale calls.
	LongTimeout = 600 * time.Second

	exitNotFound = 127
)

// Cmd describes one process invocation.
type Cmd struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string // appended to the current environment
	Stdin   []byte
	Timeout time.Duration // zero means ShortTimeout
}

// String renders the command line for logs and error messages.
func (c Cmd) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the captured outcome of a process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
	TimedOut bool
	NotFound bool
	Command  string
}

// OK reports a zero exit code.
func (r *Result) OK() bool { return r != nil && r.ExitCode == 0 }

// Err converts a failed result into a *model.CommandError, or nil on success.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	e := &model.CommandError{Cmd: r.Command, ExitCode: r.ExitCode, Stderr: r.Stderr}
	switch {
	case r.TimedOut:
		e.Cause = model.ErrTimeout
	case r.NotFound:
		e.Cause = model.ErrToolUnavailable
	}
	return e
}

// Runner executes commands. Implementations never return Go errors for
// process failures; everything is carried in Result.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) *Result
	LookPath(name string) (string, error)
}

// OSRunner runs commands as child processes of the current process.
type OSRunner struct{}

// New returns a Runner backed by os/exec.
func New() *OSRunner { return &OSRunner{} }

// LookPath searches for an executable in PATH.
func (OSRunner) LookPath(name string) (string, error) { return exec.LookPath(name) }

// Run executes cmd. The process group is killed when the timeout elapses.
func (OSRunner) Run(ctx context.Context, c Cmd) *Result {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = ShortTimeout
	}
	logger := logging.FromContext(ctx)
	res := &Result{Command: c.String()}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	configureProcessGroup(cmd)
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err := cmd.Run()
	res.Elapsed = time.Since(start)
	res.Stdout = decode(stdout.Bytes())
	res.Stderr = decode(stderr.Bytes())

	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.ExitCode = 1
		res.TimedOut = true
		res.Stderr = joinLines(res.Stderr, fmt.Sprintf("command timed out after %s", timeout))
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist):
		res.ExitCode = exitNotFound
		res.NotFound = true
		res.Stderr = joinLines(res.Stderr, fmt.Sprintf("%s: executable not found", c.Name))
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = 1
			res.Stderr = joinLines(res.Stderr, err.Error())
		}
	}

	logger.Debug(ctx, "exec", "cmd", res.Command, "exitCode", res.ExitCode, "elapsed", res.Elapsed.Seconds())
	return res
}

// decode converts process output to text, replacing invalid UTF-8 sequences.
func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

func joinLines(a, b string) string {
	a = strings.TrimRight(a, "\n")
	if a == "" {
		return b
	}
	return a + "\n" + b
}

var _ Runner = OSRunner{}
