//go:build unix

package engine

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup puts the command in its own process group and
// kills the whole group on cancellation, so commands like `sleep 10; cat`
// leave no orphans behind.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
