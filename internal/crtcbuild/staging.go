package crtcbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact is one file copied into a staging directory.
type Artifact struct {
	Source string // absolute
	Dest   string // relative to the staging directory, slash separated
}

// ArtifactSet is the staged output of one request.
type ArtifactSet struct {
	Request BuildRequest
	Stage   string
	Files   []Artifact
}

// artifactRule maps a path under out/<os>/<cpu> to a staging destination.
type artifactRule struct {
	Source string // relative to the output directory, slash separated
	Dest   string
}

type artifactKey struct {
	Project Project
	OS      TargetOS
}

var (
	sharedObject  = []artifactRule{{"libcrtc.so", "lib/libcrtc.so"}}
	dynamicLib    = []artifactRule{{"libcrtc.dylib", "lib/libcrtc.dylib"}}
	windowsDLL    = []artifactRule{{"crtc.dll", "lib/crtc.dll"}, {"crtc.dll.lib", "lib/crtc.lib"}}
	staticArchive = []artifactRule{{"obj/libwebrtc.a", "lib/libwebrtc.a"}}
	staticLib     = []artifactRule{{"obj/webrtc.lib", "lib/webrtc.lib"}}
)

// artifactTable lists the compiled outputs expected per (project, os).
var artifactTable = map[artifactKey][]artifactRule{
	{ProjectLibrary, OSLinux}:      sharedObject,
	{ProjectLibrary, OSAndroid}:    sharedObject,
	{ProjectLibrary, OSWindows}:    windowsDLL,
	{ProjectLibrary, OSMacOS}:      dynamicLib,
	{ProjectDependency, OSLinux}:   staticArchive,
	{ProjectDependency, OSAndroid}: staticArchive,
	{ProjectDependency, OSMacOS}:   staticArchive,
	{ProjectDependency, OSWindows}: staticLib,
}

// ExpectedArtifacts resolves the table for req against its paths. The header
// always comes first.
func ExpectedArtifacts(p Paths, req BuildRequest) []Artifact {
	files := []Artifact{{Source: p.Header, Dest: "include/" + publicHeader}}
	for _, r := range artifactTable[artifactKey{req.Project, req.TargetOS}] {
		files = append(files, Artifact{
			Source: filepath.Join(p.Out, filepath.FromSlash(r.Source)),
			Dest:   r.Dest,
		})
	}
	return files
}

// Collector copies build outputs into the per-target staging directory.
type Collector struct {
	ec *ExecutionContext
}

func NewCollector(ec *ExecutionContext) *Collector {
	return &Collector{ec: ec}
}

// Collect recreates the staging directory and copies every expected file.
// The old stage is removed first, so a failed collect never leaves a
// previous build's files behind. All sources are checked before anything is
// copied; if any is missing the result is an artifact error naming every
// missing path and the stage stays empty.
func (c *Collector) Collect(req BuildRequest) (ArtifactSet, error) {
	p := c.ec.Paths(req)
	fail := func(err error) error { return stageErr(StageCollect, ErrArtifact, &req, err) }

	if err := os.RemoveAll(p.Stage); err != nil {
		return ArtifactSet{}, fail(fmt.Errorf("failed to clear staging dir %s: %w", p.Stage, err))
	}

	files := ExpectedArtifacts(p, req)
	var missing []string
	for _, f := range files {
		if fi, err := os.Stat(f.Source); err != nil || fi.IsDir() {
			missing = append(missing, f.Source)
		}
	}
	if len(missing) > 0 {
		return ArtifactSet{}, fail(fmt.Errorf("build reported success but produced no %s", strings.Join(missing, ", ")))
	}

	for _, dir := range []string{p.Include, p.Lib} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ArtifactSet{}, fail(err)
		}
	}

	for _, f := range files {
		dst := filepath.Join(p.Stage, filepath.FromSlash(f.Dest))
		if err := copyFile(f.Source, dst); err != nil {
			return ArtifactSet{}, fail(err)
		}
		debugf("staged %s -> %s\n", f.Source, dst)
	}

	step("Staged %d files in %s", len(files), p.Stage)
	return ArtifactSet{Request: req, Stage: p.Stage, Files: files}, nil
}

// StagedSet rebuilds the ArtifactSet of an earlier Collect from the staging
// directory alone, for packaging without rebuilding.
func StagedSet(ec *ExecutionContext, req BuildRequest) (ArtifactSet, error) {
	p := ec.Paths(req)
	files := ExpectedArtifacts(p, req)
	for i, f := range files {
		staged := filepath.Join(p.Stage, filepath.FromSlash(f.Dest))
		if !fileExists(staged) {
			return ArtifactSet{}, stageErr(StagePackage, ErrArtifact, &req, fmt.Errorf("%s is not staged; build it first", staged))
		}
		files[i].Source = staged
	}
	return ArtifactSet{Request: req, Stage: p.Stage, Files: files}, nil
}
