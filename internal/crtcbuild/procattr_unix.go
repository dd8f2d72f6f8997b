//go:build unix

package crtcbuild

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup isolates the child so cancellation reaches its whole tree
// (gclient and ninja spawn many subprocesses).
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
}

func isExecutable(fi os.FileInfo) bool {
	return fi.Mode()&0o111 != 0
}

func envKeyEqual(a, b string) bool { return a == b }
