package crtcbuild

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrLocked is returned when another orchestrator holds the workspace.
var ErrLocked = errors.New("workspace is locked by another crtcbuild process")

const lockFileName = ".crtcbuild.lock"

// WorkspaceLock is an advisory lock on <root>/3dparty/.crtcbuild.lock.
type WorkspaceLock struct {
	path string
	f    *os.File
}

// AcquireWorkspaceLock takes the lock without blocking. The file holds the
// owner's pid for diagnostics.
func AcquireWorkspaceLock(root string) (*WorkspaceLock, error) {
	dir := filepath.Join(root, "3dparty")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		owner, _ := os.ReadFile(path)
		f.Close()
		if len(owner) > 0 {
			return nil, fmt.Errorf("%w (pid %s)", ErrLocked, owner)
		}
		return nil, ErrLocked
	}

	_ = f.Truncate(0)
	_, _ = f.WriteAt([]byte(fmt.Sprintf("%d", os.Getpid())), 0)
	debugf("Acquired workspace lock %s\n", path)
	return &WorkspaceLock{path: path, f: f}, nil
}

// Release drops the lock. Calling it more than once is harmless.
func (l *WorkspaceLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = l.f.Truncate(0)
	unlockFile(l.f)
	err := l.f.Close()
	l.f = nil
	return err
}
