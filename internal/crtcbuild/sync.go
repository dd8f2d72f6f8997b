package crtcbuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// SyncManager makes sure the WebRTC tree for a (project, os) pair is fetched,
// synchronized and linked to this project exactly once per workspace.
type SyncManager struct {
	ec *ExecutionContext
}

func NewSyncManager(ec *ExecutionContext) *SyncManager {
	return &SyncManager{ec: ec}
}

// Synced reports whether the sentinel for req exists.
func (m *SyncManager) Synced(req BuildRequest) bool {
	return fileExists(m.ec.Paths(req).Sentinel)
}

// EnsureSynced fetches or resets the tree, runs gclient sync, installs the
// integration links and only then writes the sentinel. An interrupted run
// leaves no sentinel, so the next run repeats the whole sync.
func (m *SyncManager) EnsureSynced(ctx context.Context, req BuildRequest) error {
	p := m.ec.Paths(req)
	fail := func(err error) error { return stageErr(StageSync, ErrSync, &req, err) }

	if fileExists(p.Sentinel) {
		debugf("Sentinel %s present, skipping sync\n", p.Sentinel)
		return nil
	}

	if err := os.MkdirAll(p.Tree, 0o755); err != nil {
		return fail(err)
	}

	if !fileExists(p.Src) {
		step("Fetching %s into %s", fetchProfile(req), p.Tree)
		fetch := m.ec.Tool("fetch", p.Tree, "--nohooks", "--nohistory", fetchProfile(req))
		if err := m.ec.Runner.Run(ctx, fetch); err != nil {
			if !m.legacyFetch() {
				return fail(fmt.Errorf("fetch %s: %w", fetchProfile(req), err))
			}
			colArrow.Print("-> ")
			colWarn.Printf("fetch failed (%v), continuing because CRTC_LEGACY_FETCH is set\n", err)
		}
	} else {
		if err := m.resetTree(ctx, p); err != nil {
			return fail(err)
		}
	}

	step("Synchronizing dependencies in %s", p.Tree)
	gsync := m.ec.Tool("gclient", p.Tree, "sync", "--with_branch_heads", "--force")
	if err := m.ec.Runner.Run(ctx, gsync); err != nil {
		return fail(fmt.Errorf("gclient sync: %w", err))
	}

	if err := linkProject(p); err != nil {
		return fail(err)
	}

	if err := touch(p.Sentinel); err != nil {
		return fail(fmt.Errorf("failed to write sync sentinel: %w", err))
	}
	step("Source tree for %s/%s synchronized", req.Project, req.TargetOS)
	return nil
}

// resetTree brings an existing checkout back to the remote branch head,
// recovering from an interrupted earlier sync without refetching.
func (m *SyncManager) resetTree(ctx context.Context, p Paths) error {
	branch := defaultBranch
	if m.ec.Settings != nil && m.ec.Settings.Branch != "" {
		branch = m.ec.Settings.Branch
	}
	remote := "origin/" + branch

	step("Resetting %s to %s", p.Src, remote)
	for _, args := range [][]string{
		{"fetch", "origin"},
		{"reset", "--hard", remote},
		{"checkout", remote},
		{"clean", "-f"},
	} {
		if err := m.ec.Runner.Run(ctx, m.ec.Command("git", p.Src, args...)); err != nil {
			return fmt.Errorf("git %s: %w", args[0], err)
		}
	}
	return nil
}

func (m *SyncManager) legacyFetch() bool {
	return m.ec.Settings != nil && m.ec.Settings.LegacyFetch
}

// linkProject exposes this project inside the tree: src/crtc points at the
// project root and src/BUILD.gn is replaced by a link to root.gn.
func linkProject(p Paths) error {
	if !fileExists(p.Src) {
		return fmt.Errorf("source directory %s does not exist after fetch", p.Src)
	}
	if _, err := os.Lstat(p.Link); os.IsNotExist(err) {
		if err := os.Symlink(p.Root, p.Link); err != nil {
			return fmt.Errorf("failed to link %s -> %s: %w", p.Link, p.Root, err)
		}
	}
	target := filepath.Join(p.Root, rootBuildFile)
	if err := replaceWithSymlink(target, p.BuildFile); err != nil {
		return fmt.Errorf("failed to link %s -> %s: %w", p.BuildFile, target, err)
	}
	return nil
}
