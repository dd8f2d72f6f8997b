package crtcbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SourcePatch is a marker-guarded substitution in a file of the WebRTC tree.
// The patch counts as applied iff Marker already occurs in the file.
type SourcePatch struct {
	File    string // relative to src/
	Search  string // anchor; every line containing it is rewritten
	Replace string
	Marker  string
}

// androidPatches let libunwind be linked into common_deps, which the Android
// build of a non-component shared library needs and upstream does not allow.
var androidPatches = []SourcePatch{
	{
		File:    filepath.Join("buildtools", "third_party", "libunwind", "BUILD.gn"),
		Search:  `visibility = [ "//buildtools/third_party/libc++abi" ]`,
		Replace: `visibility = [ "//buildtools/third_party/libc++abi" ]` + "\n" + `  visibility += ["//build/config:common_deps"]`,
		Marker:  `visibility += ["//build/config:common_deps"]`,
	},
	{
		File:    filepath.Join("build", "config", "BUILD.gn"),
		Search:  `if (use_custom_libcxx) {`,
		Replace: "if (is_android) {\n" + `    public_deps += [ "//buildtools/third_party/libunwind" ]` + "\n  } else if (use_custom_libcxx) {",
		Marker:  `public_deps += [ "//buildtools/third_party/libunwind" ]`,
	},
}

// PatchReport lists which files were rewritten and which already carried
// their marker.
type PatchReport struct {
	Applied []string
	Skipped []string
}

// PatchApplier applies the per-target patch set to a synchronized tree.
type PatchApplier struct {
	ec      *ExecutionContext
	patches map[TargetOS][]SourcePatch
}

func NewPatchApplier(ec *ExecutionContext) *PatchApplier {
	return &PatchApplier{
		ec:      ec,
		patches: map[TargetOS][]SourcePatch{OSAndroid: androidPatches},
	}
}

// EnsurePatched applies every missing patch for req's OS. Applying twice
// writes nothing the second time.
func (a *PatchApplier) EnsurePatched(req BuildRequest) (PatchReport, error) {
	var report PatchReport
	patches := a.patches[req.TargetOS]
	if len(patches) == 0 {
		return report, nil
	}

	src := a.ec.Paths(req).Src
	for _, p := range patches {
		path := filepath.Join(src, p.File)
		applied, err := applyPatch(path, p)
		if err != nil {
			return report, stageErr(StagePatch, ErrPatch, &req, err)
		}
		if applied {
			step("Patched %s", p.File)
			report.Applied = append(report.Applied, p.File)
		} else {
			debugf("%s already patched\n", p.File)
			report.Skipped = append(report.Skipped, p.File)
		}
	}
	return report, nil
}

// Status reports, without writing, whether each patch for req is present.
func (a *PatchApplier) Status(req BuildRequest) map[string]bool {
	out := make(map[string]bool)
	src := a.ec.Paths(req).Src
	for _, p := range a.patches[req.TargetOS] {
		data, err := os.ReadFile(filepath.Join(src, p.File))
		out[p.File] = err == nil && strings.Contains(string(data), p.Marker)
	}
	return out
}

// applyPatch returns false without touching the file when the marker is
// present. Otherwise it keeps the original at path.bak and rewrites path.
func applyPatch(path string, p SourcePatch) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	content := string(data)
	if strings.Contains(content, p.Marker) {
		return false, nil
	}

	patched, n := substituteLines(content, p.Search, p.Replace)
	if n == 0 {
		return false, fmt.Errorf("anchor %q not found in %s; the upstream file changed", p.Search, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path+".bak", data, info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("failed to write backup of %s: %w", path, err)
	}
	if err := writeFileAtomic(path, []byte(patched), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

// substituteLines replaces search with replace on every line that contains
// it and returns the new content and the number of lines changed.
func substituteLines(content, search, replace string) (string, int) {
	lines := strings.SplitAfter(content, "\n")
	n := 0
	for i, line := range lines {
		if strings.Contains(line, search) {
			lines[i] = strings.ReplaceAll(line, search, replace)
			n++
		}
	}
	return strings.Join(lines, ""), n
}
