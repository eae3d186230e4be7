//go:build !windows

package execx

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup places the child in its own process group so that a
// timeout kills grandchildren too (kind and k3d spawn docker clients).
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
