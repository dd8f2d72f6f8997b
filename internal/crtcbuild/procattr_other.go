//go:build !unix

package crtcbuild

import (
	"os"
	"os/exec"
	"strings"
)

func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// Windows has no exec bit; depot_tools wrappers are .bat files.
func isExecutable(fi os.FileInfo) bool { return true }

// environment keys are case-insensitive on Windows (Path vs PATH)
func envKeyEqual(a, b string) bool { return strings.EqualFold(a, b) }
