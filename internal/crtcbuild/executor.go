package crtcbuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Command is one external tool invocation. Dir and Env are explicit so no
// stage ever changes the process-wide working directory or environment.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string // complete environment; nil inherits os.Environ()
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// CommandRunner runs external tools. Executor is the real implementation;
// tests substitute a recorder.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExitError reports a tool that ran and exited non-zero.
type ExitError struct {
	Command  string
	Dir      string
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%q exited with status %d (dir=%s)", e.Command, e.ExitCode, e.Dir)
}

// Executor streams the child's output to Stdout/Stderr and, when set, to Log.
type Executor struct {
	Stdout io.Writer
	Stderr io.Writer
	Log    io.Writer
}

// SetLog implements logSink.
func (e *Executor) SetLog(w io.Writer) { e.Log = w }

// NewExecutor returns an Executor attached to the terminal.
func NewExecutor() *Executor {
	return &Executor{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes c and waits for it. The child runs in its own process group
// which is killed when ctx is cancelled; there is no timeout.
func (e *Executor) Run(ctx context.Context, c Command) error {
	env := c.Env
	if env == nil {
		env = os.Environ()
	}

	path := lookPathIn(c.Name, envValue(env, "PATH"))
	cmd := exec.Command(path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = env
	cmd.Stdin = nil

	stdout, stderr := e.Stdout, e.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	if e.Log != nil {
		fmt.Fprintf(e.Log, "$ %s  (dir=%s)\n", c, c.Dir)
		stdout = io.MultiWriter(stdout, e.Log)
		stderr = io.MultiWriter(stderr, e.Log)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	debugf("Running %s in %s\n", c, c.Dir)

	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", c.Name, err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			killProcessGroup(cmd)
		case <-done:
		}
	}()

	if waitErr := cmd.Wait(); waitErr != nil {
		if ctx.Err() != nil {
			time.Sleep(100 * time.Millisecond)
			return fmt.Errorf("command aborted: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &ExitError{Command: c.String(), Dir: c.Dir, ExitCode: exitErr.ExitCode()}
		}
		return waitErr
	}
	return nil
}

// lookPathIn resolves name against an explicit PATH value instead of the
// process environment, so a toolchain injected only into the child's
// environment is still found.
func lookPathIn(name, pathList string) string {
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return name
	}
	for _, dir := range filepath.SplitList(pathList) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() && isExecutable(fi) {
			return candidate
		}
	}
	// let exec report the failure with its usual message
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return name
}

// envValue returns the last value of key in env.
func envValue(env []string, key string) string {
	val := ""
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if ok && envKeyEqual(k, key) {
			val = v
		}
	}
	return val
}

// withEnv returns env with key set to val, replacing any existing entries.
func withEnv(env []string, key, val string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		k, _, _ := strings.Cut(kv, "=")
		if envKeyEqual(k, key) {
			continue
		}
		out = append(out, kv)
	}
	return append(out, key+"="+val)
}
