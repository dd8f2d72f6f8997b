package crtcbuild

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectFor(t *testing.T, ec *ExecutionContext, req BuildRequest) ArtifactSet {
	t.Helper()
	writeOutputs(t, ec, req)
	set, err := NewCollector(ec).Collect(req)
	require.NoError(t, err)
	return set
}

func TestArchiveName(t *testing.T) {
	assert.Equal(t, "libcrtc-linux-x64.tar.gz", ArchiveName(ProjectLibrary, OSLinux, "x64", FormatTarGz))
	assert.Equal(t, "libwebrtc-windows-all.zip", ArchiveName(ProjectDependency, OSWindows, AllTag, FormatZip))
	assert.Equal(t, "libcrtc-android-arm.tar.zst", ArchiveName(ProjectLibrary, OSAndroid, "arm", FormatTarZst))
}

func TestParseArchiveFormat(t *testing.T) {
	for in, want := range map[string]ArchiveFormat{"tar.gz": FormatTarGz, "TGZ": FormatTarGz, ".zip": FormatZip, "zstd": FormatTarZst} {
		got, err := ParseArchiveFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseArchiveFormat("7z")
	assert.Error(t, err)
}

func TestPackageSingleTargetAtRoot(t *testing.T) {
	for _, format := range []ArchiveFormat{FormatTarGz, FormatTarZst, FormatZip} {
		t.Run(string(format), func(t *testing.T) {
			ec, _ := newTestWorkspace(t)
			req := BuildRequest{Project: ProjectLibrary, TargetOS: OSLinux, TargetCPU: CPUx64}
			set := collectFor(t, ec, req)

			pk := &Packager{Format: format}
			out, err := pk.Package(ec.Paths(req).Dist, []ArtifactSet{set}, ProjectLibrary, OSLinux, "x64")
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(ec.Root, "dist", "libcrtc-linux-x64."+string(format)), out)

			names, err := ListArchive(out)
			require.NoError(t, err)
			assert.Equal(t, []string{"include/", "include/crtc.h", "lib/", "lib/libcrtc.so"}, names)
		})
	}
}

func TestPackageIsDeterministic(t *testing.T) {
	for _, format := range []ArchiveFormat{FormatTarGz, FormatTarZst, FormatZip} {
		t.Run(string(format), func(t *testing.T) {
			ec, _ := newTestWorkspace(t)
			req := BuildRequest{Project: ProjectLibrary, TargetOS: OSMacOS, TargetCPU: CPUArm64}
			set := collectFor(t, ec, req)
			pk := &Packager{Format: format}
			dist := ec.Paths(req).Dist

			first, err := pk.Package(dist, []ArtifactSet{set}, req.Project, req.TargetOS, "arm64")
			require.NoError(t, err)
			a, err := os.ReadFile(first)
			require.NoError(t, err)

			// recollect so every staged file gets a new mtime
			set = collectFor(t, ec, req)
			second, err := pk.Package(dist, []ArtifactSet{set}, req.Project, req.TargetOS, "arm64")
			require.NoError(t, err)
			b, err := os.ReadFile(second)
			require.NoError(t, err)

			assert.Equal(t, first, second)
			assert.Equal(t, a, b)
		})
	}
}

func TestPackageAllPrefixesEachTarget(t *testing.T) {
	ec, _ := newTestWorkspace(t)
	var sets []ArtifactSet
	for _, cpu := range AllCPUs {
		sets = append(sets, collectFor(t, ec, BuildRequest{Project: ProjectDependency, TargetOS: OSAndroid, TargetCPU: cpu}))
	}

	out, err := (&Packager{}).Package(filepath.Join(ec.Root, "dist"), sets, ProjectDependency, OSAndroid, AllTag)
	require.NoError(t, err)
	assert.Equal(t, "libwebrtc-android-all.tar.gz", filepath.Base(out))

	names, err := ListArchive(out)
	require.NoError(t, err)
	assert.Contains(t, names, "android_arm64/lib/libwebrtc.a")
	assert.Contains(t, names, "android_x86/include/crtc.h")
	for _, n := range names {
		assert.True(t, strings.HasPrefix(n, "android_"), n)
	}
}

func TestPackageRejectsBadInput(t *testing.T) {
	ec, _ := newTestWorkspace(t)
	dist := filepath.Join(ec.Root, "dist")
	pk := &Packager{}

	_, err := pk.Package(dist, nil, ProjectLibrary, OSLinux, "x64")
	require.ErrorIs(t, err, ErrPackaging)

	a := collectFor(t, ec, BuildRequest{Project: ProjectLibrary, TargetOS: OSLinux, TargetCPU: CPUx64})
	b := collectFor(t, ec, BuildRequest{Project: ProjectLibrary, TargetOS: OSLinux, TargetCPU: CPUArm})
	_, err = pk.Package(dist, []ArtifactSet{a, b}, ProjectLibrary, OSLinux, "x64")
	require.ErrorIs(t, err, ErrPackaging)

	_, err = pk.Package(dist, []ArtifactSet{a, a}, ProjectLibrary, OSLinux, AllTag)
	require.ErrorIs(t, err, ErrPackaging)

	entries, err := os.ReadDir(dist)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".pkg-"), "temp file %s left behind", e.Name())
	}
}
