// Package exectest provides a scripted execx.Runner for tests.
package exectest

import (
	"context"
	"strings"
	"sync"

	"github.com/clustermaster/clustermaster/internal/execx"
)

// Handler produces the result of a matched command.
type Handler func(cmd execx.Cmd) *execx.Result

type rule struct {
	prefix string
	fn     Handler
}

// Fake records every command and answers from prefix rules. The most
// recently registered matching rule wins. Unmatched commands succeed with
// empty output.
type Fake struct {
	mu      sync.Mutex
	rules   []rule
	calls   []execx.Cmd
	Missing map[string]bool // binaries reported as not installed
}

// New returns an empty Fake.
func New() *Fake { return &Fake{Missing: map[string]bool{}} }

// On registers fn for command lines starting with prefix, e.g. "k3d node create".
func (f *Fake) On(prefix string, fn Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{prefix: prefix, fn: fn})
	return f
}

// OnOutput answers prefix with exit code 0 and stdout.
func (f *Fake) OnOutput(prefix, stdout string) *Fake {
	return f.On(prefix, func(execx.Cmd) *execx.Result { return &execx.Result{Stdout: stdout} })
}

// OnFail answers prefix with a non-zero exit code and stderr.
func (f *Fake) OnFail(prefix string, code int, stderr string) *Fake {
	return f.On(prefix, func(execx.Cmd) *execx.Result { return &execx.Result{ExitCode: code, Stderr: stderr} })
}

// Run implements execx.Runner.
func (f *Fake) Run(_ context.Context, cmd execx.Cmd) *execx.Result {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	missing := f.Missing[cmd.Name]
	var fn Handler
	line := cmd.String()
	for i := len(f.rules) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, f.rules[i].prefix) {
			fn = f.rules[i].fn
			break
		}
	}
	f.mu.Unlock()

	var res *execx.Result
	switch {
	case missing:
		res = &execx.Result{ExitCode: 127, NotFound: true, Stderr: cmd.Name + ": executable not found"}
	case fn != nil:
		res = fn(cmd)
	default:
		res = &execx.Result{}
	}
	res.Command = line
	return res
}

// LookPath implements execx.Runner.
func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Missing[name] {
		return "", &notFoundError{name: name}
	}
	return "/usr/local/bin/" + name, nil
}

// Calls returns every recorded command line.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.String())
	}
	return out
}

// CallsWith returns the recorded commands whose line starts with prefix.
func (f *Fake) CallsWith(prefix string) []execx.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []execx.Cmd
	for _, c := range f.calls {
		if strings.HasPrefix(c.String(), prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls but keeps rules.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type notFoundError struct{ name string }

func (e *notFoundError) Error() string { return "exec: " + e.name + ": executable file not found in $PATH" }

var _ execx.Runner = (*Fake)(nil)
