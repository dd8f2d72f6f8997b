package crtcbuild

import (
	"fmt"
	"path/filepath"
)

// Paths holds every filesystem location the pipeline touches for one request.
type Paths struct {
	Root       string
	ThirdParty string // 3dparty
	Toolchain  string // depot_tools checkout
	Tree       string // gclient root (contains .gclient and src/)
	Src        string // WebRTC checkout
	Link       string // src/crtc -> Root
	BuildFile  string // src/BUILD.gn -> Root/root.gn
	Sentinel   string // marks a completed sync for (project, os)
	Out        string // out/<os>/<cpu>, the gn build graph
	Stage      string // dist/<project>/<os>/<cpu>
	Include    string // Stage/include
	Lib        string // Stage/lib
	Dist       string
	Logs       string
	Header     string // Root/include/crtc.h
}

// ResolvePaths computes the canonical locations for req under root.
// It is total and performs no I/O.
func ResolvePaths(root string, req BuildRequest) Paths {
	root = filepath.Clean(root)
	thirdParty := filepath.Join(root, "3dparty")
	tree := filepath.Join(thirdParty, treeName(req))
	src := filepath.Join(tree, "src")
	dist := filepath.Join(root, "dist")
	stage := filepath.Join(dist, string(req.Project), string(req.TargetOS), string(req.TargetCPU))

	return Paths{
		Root:       root,
		ThirdParty: thirdParty,
		Toolchain:  filepath.Join(thirdParty, "depot_tools"),
		Tree:       tree,
		Src:        src,
		Link:       filepath.Join(src, "crtc"),
		BuildFile:  filepath.Join(src, "BUILD.gn"),
		Sentinel:   filepath.Join(thirdParty, fmt.Sprintf(".webrtc_sync_%s_%s", req.Project, req.TargetOS)),
		Out:        filepath.Join(root, "out", string(req.TargetOS), string(req.TargetCPU)),
		Stage:      stage,
		Include:    filepath.Join(stage, "include"),
		Lib:        filepath.Join(stage, "lib"),
		Dist:       dist,
		Logs:       filepath.Join(dist, "logs"),
		Header:     filepath.Join(root, "include", publicHeader),
	}
}

// treeName picks the gclient checkout. Android needs its own checkout because
// the webrtc_android fetch profile pulls the NDK and SDK into the same tree.
// The sync sentinel is keyed by (project, os) because each project has its
// own tree, so library and dependency builds each sync once per OS.
func treeName(req BuildRequest) string {
	name := "webrtc"
	if req.Project == ProjectDependency {
		name = "libwebrtc"
	}
	if req.TargetOS == OSAndroid {
		name += "_android"
	}
	return name
}

// fetchProfile is the depot_tools fetch config name for the request.
func fetchProfile(req BuildRequest) string {
	if req.TargetOS == OSAndroid {
		return "webrtc_android"
	}
	return "webrtc"
}

// libName is the archive prefix for a project.
func libName(p Project) string {
	if p == ProjectDependency {
		return "libwebrtc"
	}
	return "libcrtc"
}
