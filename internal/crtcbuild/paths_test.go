package crtcbuild

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePathsIsTotal(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "work", "crtc")
	for _, project := range AllProjects {
		for _, o := range AllOSes {
			for _, cpu := range AllCPUs {
				req := BuildRequest{Project: project, TargetOS: o, TargetCPU: cpu}
				p := ResolvePaths(root, req)

				v := reflect.ValueOf(p)
				for i := 0; i < v.NumField(); i++ {
					field := v.Type().Field(i).Name
					val := v.Field(i).String()
					assert.NotEmpty(t, val, "%s for %s", field, req)
					assert.True(t, filepath.IsAbs(val), "%s for %s is %q", field, req, val)
				}
				assert.Equal(t, p, ResolvePaths(root, req), "resolution must be stable")
			}
		}
	}
}

func TestResolvePathsLayout(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "w")
	j := func(parts ...string) string { return filepath.Join(append([]string{root}, parts...)...) }

	p := ResolvePaths(root, BuildRequest{Project: ProjectLibrary, TargetOS: OSAndroid, TargetCPU: CPUArm64})
	assert.Equal(t, j("3dparty", "depot_tools"), p.Toolchain)
	assert.Equal(t, j("3dparty", "webrtc_android"), p.Tree)
	assert.Equal(t, j("3dparty", "webrtc_android", "src", "crtc"), p.Link)
	assert.Equal(t, j("3dparty", ".webrtc_sync_library_android"), p.Sentinel)
	assert.Equal(t, j("out", "android", "arm64"), p.Out)
	assert.Equal(t, j("dist", "library", "android", "arm64"), p.Stage)
	assert.Equal(t, j("dist", "library", "android", "arm64", "lib"), p.Lib)
	assert.Equal(t, j("dist", "logs"), p.Logs)
	assert.Equal(t, "webrtc_android", fetchProfile(BuildRequest{TargetOS: OSAndroid}))

	p = ResolvePaths(root, BuildRequest{Project: ProjectDependency, TargetOS: OSWindows, TargetCPU: CPUx86})
	assert.Equal(t, j("3dparty", "libwebrtc"), p.Tree)
	assert.Equal(t, j("3dparty", ".webrtc_sync_dependency_windows"), p.Sentinel)
	assert.Equal(t, "webrtc", fetchProfile(BuildRequest{TargetOS: OSWindows}))
}
