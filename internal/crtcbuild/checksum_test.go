package crtcbuild

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumSidecar(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "libcrtc-linux-x64.tar.gz")
	require.NoError(t, os.WriteFile(archive, []byte("payload"), 0o644))

	sum, err := WriteChecksum(archive)
	require.NoError(t, err)
	assert.Len(t, sum, 64)

	line, err := os.ReadFile(archive + ".b3")
	require.NoError(t, err)
	assert.Equal(t, sum+"  libcrtc-linux-x64.tar.gz\n", string(line))
	require.NoError(t, VerifyChecksum(archive))

	require.NoError(t, os.WriteFile(archive, []byte("tampered"), 0o644))
	err = VerifyChecksum(archive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestVerifyChecksumWithoutSidecar(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "x.zip")
	require.NoError(t, os.WriteFile(archive, nil, 0o644))
	assert.ErrorIs(t, VerifyChecksum(archive), os.ErrNotExist)
}

func TestManifestDescribesStagedFiles(t *testing.T) {
	ec, _ := newTestWorkspace(t)
	req := BuildRequest{Project: ProjectLibrary, TargetOS: OSLinux, TargetCPU: CPUx64, Debug: true}
	set := collectFor(t, ec, req)
	archive := filepath.Join(ec.Root, "dist", "libcrtc-linux-x64.tar.gz")

	m, err := NewManifest("", archive, FormatTarGz, "x64", []ArtifactSet{set})
	require.NoError(t, err)
	assert.NotEmpty(t, m.BuildID)
	assert.Equal(t, ProjectLibrary, m.Project)
	assert.Equal(t, OSLinux, m.OS)

	path, err := m.Write(archive)
	require.NoError(t, err)
	assert.Equal(t, archive+".manifest.yaml", path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "build_id: "+m.BuildID))

	got, err := ReadManifest(archive)
	require.NoError(t, err)
	require.Len(t, got.Targets, 1)
	target := got.Targets[0]
	assert.Equal(t, CPUx64, target.CPU)
	assert.True(t, target.Debug)
	require.Len(t, target.Files, 2)
	assert.Equal(t, "lib/libcrtc.so", target.Files[1].Path)

	want, err := hashFile(filepath.Join(set.Stage, "lib", "libcrtc.so"))
	require.NoError(t, err)
	assert.Equal(t, want, target.Files[1].Blake3)
	assert.Equal(t, int64(len("crtc x64")), target.Files[1].Size)
}
