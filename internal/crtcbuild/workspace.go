package crtcbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// TreeStatus describes one (project, os) source tree.
type TreeStatus struct {
	Project Project
	OS      TargetOS
	Tree    string
	Present bool
	Synced  bool
	Patches map[string]bool // android only
}

// ArchiveStatus describes one package in dist/.
type ArchiveStatus struct {
	Path     string
	Size     int64
	Checksum string // "ok", "mismatch", or "missing"
}

// WorkspaceStatus is what `crtcbuild status` prints.
type WorkspaceStatus struct {
	Root      string
	Toolchain bool
	Trees     []TreeStatus
	Staged    []string // dist/<project>/<os>/<cpu>, relative to root
	Archives  []ArchiveStatus
}

// archiveSuffixes are the extensions Packager writes.
var archiveSuffixes = []string{"." + string(FormatTarGz), "." + string(FormatTarZst), "." + string(FormatZip)}

// ReadStatus inspects the workspace without running any command.
func ReadStatus(ec *ExecutionContext) (WorkspaceStatus, error) {
	st := WorkspaceStatus{Root: ec.Root}
	st.Toolchain = fileExists(ec.Paths(BuildRequest{}).Toolchain)

	patches := NewPatchApplier(ec)
	syncs := NewSyncManager(ec)
	for _, project := range AllProjects {
		for _, o := range AllOSes {
			req := BuildRequest{Project: project, TargetOS: o, TargetCPU: AllCPUs[0]}
			p := ec.Paths(req)
			ts := TreeStatus{
				Project: project,
				OS:      o,
				Tree:    p.Tree,
				Present: fileExists(p.Src),
				Synced:  syncs.Synced(req),
			}
			if ts.Present && len(patches.patches[o]) > 0 {
				ts.Patches = patches.Status(req)
			}
			st.Trees = append(st.Trees, ts)

			for _, cpu := range AllCPUs {
				stage := ec.Paths(req.ForCPU(cpu)).Stage
				if fileExists(stage) {
					rel, _ := filepath.Rel(ec.Root, stage)
					st.Staged = append(st.Staged, filepath.ToSlash(rel))
				}
			}
		}
	}

	dist := filepath.Join(ec.Root, "dist")
	entries, err := os.ReadDir(dist)
	if err != nil && !os.IsNotExist(err) {
		return st, err
	}
	for _, e := range entries {
		if e.IsDir() || !isArchiveName(e.Name()) {
			continue
		}
		path := filepath.Join(dist, e.Name())
		as := ArchiveStatus{Path: path, Checksum: "missing"}
		if fi, err := e.Info(); err == nil {
			as.Size = fi.Size()
		}
		if fileExists(path + ".b3") {
			as.Checksum = "ok"
			if err := VerifyChecksum(path); err != nil {
				as.Checksum = "mismatch"
			}
		}
		st.Archives = append(st.Archives, as)
	}
	sort.Slice(st.Archives, func(i, j int) bool { return st.Archives[i].Path < st.Archives[j].Path })
	return st, nil
}

func isArchiveName(name string) bool {
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// Lines renders the status for the terminal or the pager.
func (s WorkspaceStatus) Lines() []string {
	yes := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	lines := []string{
		fmt.Sprintf("root:        %s", s.Root),
		fmt.Sprintf("depot_tools: %s", yes(s.Toolchain)),
		"",
		"source trees:",
	}
	for _, t := range s.Trees {
		if !t.Present && !t.Synced {
			continue
		}
		line := fmt.Sprintf("  %-10s %-8s present=%s synced=%s", t.Project, t.OS, yes(t.Present), yes(t.Synced))
		if len(t.Patches) > 0 {
			files := make([]string, 0, len(t.Patches))
			for f := range t.Patches {
				files = append(files, f)
			}
			sort.Strings(files)
			var parts []string
			for _, f := range files {
				parts = append(parts, fmt.Sprintf("%s=%s", filepath.ToSlash(f), yes(t.Patches[f])))
			}
			line += " patched: " + strings.Join(parts, " ")
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", "staged:")
	for _, st := range s.Staged {
		lines = append(lines, "  "+st)
	}
	lines = append(lines, "", "archives:")
	for _, a := range s.Archives {
		lines = append(lines, fmt.Sprintf("  %-40s %10s  checksum=%s", filepath.Base(a.Path), humanReadableSize(a.Size), a.Checksum))
	}
	return lines
}

// CleanOptions select what Clean removes. Empty Project or OS means all.
type CleanOptions struct {
	Project Project
	OS      TargetOS
	Out     bool // out/<os>
	Stage   bool // dist/<project>/<os>
	Sync    bool // sync sentinels, forcing a resync on the next build
	Logs    bool // dist/logs
}

// CleanTargets lists the paths Clean would remove, in removal order.
func CleanTargets(root string, opts CleanOptions) []string {
	projects := AllProjects
	if opts.Project != "" {
		projects = []Project{opts.Project}
	}
	oses := AllOSes
	if opts.OS != "" {
		oses = []TargetOS{opts.OS}
	}

	var targets []string
	add := func(p string) {
		if fileExists(p) {
			targets = append(targets, p)
		}
	}
	for _, o := range oses {
		if opts.Out {
			add(filepath.Join(root, "out", string(o)))
		}
		for _, project := range projects {
			p := ResolvePaths(root, BuildRequest{Project: project, TargetOS: o, TargetCPU: AllCPUs[0]})
			if opts.Stage {
				add(filepath.Dir(p.Stage))
			}
			if opts.Sync {
				add(p.Sentinel)
			}
		}
	}
	if opts.Logs {
		add(filepath.Join(root, "dist", "logs"))
	}
	return targets
}

// Clean removes the selected paths and returns what was removed.
func Clean(root string, opts CleanOptions) ([]string, error) {
	var removed []string
	for _, t := range CleanTargets(root, opts) {
		debugf("Removing %s\n", t)
		if err := os.RemoveAll(t); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", t, err)
		}
		removed = append(removed, t)
	}
	return removed, nil
}
