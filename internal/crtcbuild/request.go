package crtcbuild

import (
	"fmt"
	"runtime"
	"strings"
)

// Project selects which product of the tree is built.
type Project string

const (
	ProjectLibrary    Project = "library"    // the crtc shared library
	ProjectDependency Project = "dependency" // the WebRTC static library crtc links against
)

// TargetOS is an operating system name as used for output and staging paths.
type TargetOS string

const (
	OSWindows TargetOS = "windows"
	OSLinux   TargetOS = "linux"
	OSAndroid TargetOS = "android"
	OSMacOS   TargetOS = "macos"
)

// TargetCPU is a CPU architecture name. The names match gn's target_cpu values.
type TargetCPU string

const (
	CPUx86   TargetCPU = "x86"
	CPUx64   TargetCPU = "x64"
	CPUArm   TargetCPU = "arm"
	CPUArm64 TargetCPU = "arm64"
)

var (
	AllProjects = []Project{ProjectLibrary, ProjectDependency}
	AllOSes     = []TargetOS{OSWindows, OSLinux, OSAndroid, OSMacOS}
	AllCPUs     = []TargetCPU{CPUx86, CPUx64, CPUArm, CPUArm64}
)

// gnOS maps our OS names onto gn's target_os vocabulary.
var gnOS = map[TargetOS]string{
	OSWindows: "win",
	OSLinux:   "linux",
	OSAndroid: "android",
	OSMacOS:   "mac",
}

// GN returns the value gn expects for target_os.
func (o TargetOS) GN() string { return gnOS[o] }

// BuildRequest fully determines the paths, gn args, product and artifacts
// of one pipeline run. It is passed by value and never mutated.
type BuildRequest struct {
	Project   Project
	TargetOS  TargetOS
	TargetCPU TargetCPU
	Debug     bool
	// Examples builds the crtc-examples product instead of crtc.
	Examples bool
}

func (r BuildRequest) String() string {
	variant := "release"
	if r.Debug {
		variant = "debug"
	}
	return fmt.Sprintf("%s %s/%s (%s)", r.Project, r.TargetOS, r.TargetCPU, variant)
}

// Validate rejects values outside the supported matrix.
func (r BuildRequest) Validate() error {
	if _, err := ParseProject(string(r.Project)); err != nil {
		return err
	}
	if _, err := ParseOS(string(r.TargetOS)); err != nil {
		return err
	}
	if _, err := ParseCPU(string(r.TargetCPU)); err != nil {
		return err
	}
	if r.Examples && r.Project != ProjectLibrary {
		return fmt.Errorf("examples can only be built for the %s project", ProjectLibrary)
	}
	return nil
}

// ForCPU returns a copy of the request targeting cpu.
func (r BuildRequest) ForCPU(cpu TargetCPU) BuildRequest {
	r.TargetCPU = cpu
	return r
}

// ParseProject accepts "library"/"dependency" and the short aliases "crtc"/"webrtc".
func ParseProject(s string) (Project, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "library", "lib", "crtc":
		return ProjectLibrary, nil
	case "dependency", "dep", "webrtc":
		return ProjectDependency, nil
	}
	return "", fmt.Errorf("unknown project %q (want library or dependency)", s)
}

// ParseOS accepts our names plus the gn and Go spellings (win, mac, darwin).
func ParseOS(s string) (TargetOS, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "windows", "win", "win32":
		return OSWindows, nil
	case "linux":
		return OSLinux, nil
	case "android":
		return OSAndroid, nil
	case "macos", "mac", "darwin", "osx":
		return OSMacOS, nil
	}
	return "", fmt.Errorf("unknown target os %q (want one of windows, linux, android, macos)", s)
}

// ParseCPU accepts gn names plus common machine names (x86_64, amd64, aarch64, i386).
func ParseCPU(s string) (TargetCPU, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x86", "i386", "i686", "386":
		return CPUx86, nil
	case "x64", "x86_64", "amd64":
		return CPUx64, nil
	case "arm", "armv7", "armv7l":
		return CPUArm, nil
	case "arm64", "aarch64":
		return CPUArm64, nil
	}
	return "", fmt.Errorf("unknown target cpu %q (want one of x86, x64, arm, arm64)", s)
}

// HostEnvironment is the machine the orchestrator runs on. It only decides
// whether cross-compilation overrides are emitted.
type HostEnvironment struct {
	OS  TargetOS
	CPU TargetCPU
}

// DetectHost maps the Go runtime platform onto the build vocabulary.
// Unknown platforms keep the raw GOOS/GOARCH, which never equals a valid
// target, so every override is emitted.
func DetectHost() HostEnvironment {
	return hostFrom(runtime.GOOS, runtime.GOARCH)
}

func hostFrom(goos, goarch string) HostEnvironment {
	h := HostEnvironment{OS: TargetOS(goos), CPU: TargetCPU(goarch)}
	if o, err := ParseOS(goos); err == nil {
		h.OS = o
	}
	if c, err := ParseCPU(goarch); err == nil {
		h.CPU = c
	}
	return h
}

// IsWindows reports whether depot_tools wrappers need the .bat suffix.
func (h HostEnvironment) IsWindows() bool { return h.OS == OSWindows }
