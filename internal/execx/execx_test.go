//go:build !windows

package execx

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/clustermaster/clustermaster/domain/model"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name       string
		cmd        Cmd
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{
			name:       "success",
			cmd:        Cmd{Name: "sh", Args: []string{"-c", "echo hello"}},
			wantCode:   0,
			wantStdout: "hello\n",
		},
		{
			name:       "non-zero exit is a result",
			cmd:        Cmd{Name: "sh", Args: []string{"-c", "echo oops >&2; exit 3"}},
			wantCode:   3,
			wantStderr: "oops",
		},
		{
			name:       "stdin is piped",
			cmd:        Cmd{Name: "cat", Stdin: []byte("from stdin")},
			wantCode:   0,
			wantStdout: "from stdin",
		},
		{
			name:       "invalid utf-8 is replaced",
			cmd:        Cmd{Name: "sh", Args: []string{"-c", `printf 'a\377b'`}},
			wantCode:   0,
			wantStdout: "a�b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New().Run(context.Background(), tt.cmd)
			if res.ExitCode != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (stderr=%q)", res.ExitCode, tt.wantCode, res.Stderr)
			}
			if tt.wantStdout != "" && res.Stdout != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", res.Stdout, tt.wantStdout)
			}
			if tt.wantStderr != "" && !strings.Contains(res.Stderr, tt.wantStderr) {
				t.Errorf("stderr = %q, want substring %q", res.Stderr, tt.wantStderr)
			}
			if (res.Err() == nil) != (tt.wantCode == 0) {
				t.Errorf("Err() = %v with exit code %d", res.Err(), res.ExitCode)
			}
		})
	}
}

func TestRun_Timeout(t *testing.T) {
	start := time.Now()
	res := New().Run(context.Background(), Cmd{Name: "sh", Args: []string{"-c", "sleep 10"}, Timeout: 200 * time.Millisecond})
	if time.Since(start) > 8*time.Second {
		t.Fatalf("timeout not enforced, elapsed %s", time.Since(start))
	}
	if res.ExitCode != 1 || !res.TimedOut {
		t.Fatalf("want synthetic timeout failure, got code=%d timedOut=%v", res.ExitCode, res.TimedOut)
	}
	if !strings.Contains(res.Stderr, "timed out") {
		t.Errorf("stderr = %q", res.Stderr)
	}
	if !errors.Is(res.Err(), model.ErrTimeout) {
		t.Errorf("Err() = %v, want ErrTimeout", res.Err())
	}
}

func TestRun_NotFound(t *testing.T) {
	res := New().Run(context.Background(), Cmd{Name: "clustermaster-no-such-binary"})
	if !res.NotFound || res.ExitCode != exitNotFound {
		t.Fatalf("got code=%d notFound=%v", res.ExitCode, res.NotFound)
	}
	if !errors.Is(res.Err(), model.ErrToolUnavailable) {
		t.Errorf("Err() = %v, want ErrToolUnavailable", res.Err())
	}
	var ce *model.CommandError
	if !errors.As(res.Err(), &ce) || ce.Cmd != "clustermaster-no-such-binary" {
		t.Errorf("Err() = %#v", res.Err())
	}
}
