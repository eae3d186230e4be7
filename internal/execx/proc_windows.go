//go:build windows

package execx

import "os/exec"

// configureProcessGroup relies on the default Cancel, which kills the direct child.
func configureProcessGroup(cmd *exec.Cmd) {}
