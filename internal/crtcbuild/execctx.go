package crtcbuild

import (
	"os"
	"path/filepath"
)

// ExecutionContext carries everything stages used to take from process-wide
// state: the workspace root, the host, the resolved toolchain directory and
// the base environment handed to each external command.
type ExecutionContext struct {
	Root     string
	Host     HostEnvironment
	Settings *Settings
	Runner   CommandRunner

	toolchain string
	baseEnv   []string
}

// NewExecutionContext snapshots os.Environ() once; later changes to the
// process environment do not leak into commands.
func NewExecutionContext(s *Settings, host HostEnvironment, runner CommandRunner) *ExecutionContext {
	return &ExecutionContext{
		Root:     s.Root,
		Host:     host,
		Settings: s,
		Runner:   runner,
		baseEnv:  os.Environ(),
	}
}

// UseToolchain records dir as the depot_tools location. Setting it again
// with the same value is harmless.
func (ec *ExecutionContext) UseToolchain(dir string) {
	ec.toolchain = dir
}

// Toolchain returns the registered depot_tools directory, or "".
func (ec *ExecutionContext) Toolchain() string { return ec.toolchain }

// Paths resolves the locations for req under this context's root.
func (ec *ExecutionContext) Paths(req BuildRequest) Paths {
	return ResolvePaths(ec.Root, req)
}

// Env builds the environment for a child: the base snapshot with the
// toolchain prepended to PATH and the Windows toolchain switches set.
func (ec *ExecutionContext) Env() []string {
	env := append([]string(nil), ec.baseEnv...)
	if ec.toolchain != "" {
		path := envValue(env, "PATH")
		if path == "" {
			path = ec.toolchain
		} else {
			path = ec.toolchain + string(filepath.ListSeparator) + path
		}
		env = withEnv(env, "PATH", path)
	}
	if ec.Host.IsWindows() {
		env = withEnv(env, "DEPOT_TOOLS_WIN_TOOLCHAIN", "0")
		if ec.Settings != nil && ec.Settings.VS2022Install != "" {
			env = withEnv(env, "vs2022_install", ec.Settings.VS2022Install)
		}
	}
	return env
}

// Tool builds a Command for a depot_tools wrapper; on a Windows host the
// wrappers are batch files.
func (ec *ExecutionContext) Tool(name, dir string, args ...string) Command {
	if ec.Host.IsWindows() {
		name += ".bat"
	}
	return ec.Command(name, dir, args...)
}

// Command builds a Command for a plain executable such as git.
func (ec *ExecutionContext) Command(name, dir string, args ...string) Command {
	return Command{Name: name, Args: args, Dir: dir, Env: ec.Env()}
}
