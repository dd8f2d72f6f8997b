package crtcbuild

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadStatus(t *testing.T) {
	ec, _ := newTestWorkspace(t)
	req := BuildRequest{Project: ProjectLibrary, TargetOS: OSAndroid, TargetCPU: CPUArm}
	res, err := NewPipeline(ec).Build(context.Background(), req)
	require.NoError(t, err)

	st, err := ReadStatus(ec)
	require.NoError(t, err)
	assert.True(t, st.Toolchain)
	assert.Equal(t, []string{"dist/library/android/arm"}, st.Staged)
	require.Len(t, st.Archives, 1)
	assert.Equal(t, res.Archive, st.Archives[0].Path)
	assert.Equal(t, "ok", st.Archives[0].Checksum)

	var android *TreeStatus
	for i := range st.Trees {
		if st.Trees[i].Project == ProjectLibrary && st.Trees[i].OS == OSAndroid {
			android = &st.Trees[i]
		}
	}
	require.NotNil(t, android)
	assert.True(t, android.Synced)
	assert.Len(t, android.Patches, 2)
	for f, ok := range android.Patches {
		assert.True(t, ok, f)
	}

	lines := st.Lines()
	assert.Contains(t, lines, "depot_tools: yes")
}

func TestCleanSelectsTargets(t *testing.T) {
	ec, _ := newTestWorkspace(t)
	ctx := context.Background()
	for _, o := range []TargetOS{OSLinux, OSWindows} {
		_, err := NewPipeline(ec).Build(ctx, BuildRequest{Project: ProjectLibrary, TargetOS: o, TargetCPU: CPUx64})
		require.NoError(t, err)
	}
	root := ec.Root

	assert.Empty(t, CleanTargets(root, CleanOptions{}))

	targets := CleanTargets(root, CleanOptions{OS: OSLinux, Out: true, Stage: true, Sync: true})
	assert.Equal(t, []string{
		filepath.Join(root, "out", "linux"),
		filepath.Join(root, "dist", "library", "linux"),
		filepath.Join(root, "3dparty", ".webrtc_sync_library_linux"),
	}, targets)

	removed, err := Clean(root, CleanOptions{OS: OSLinux, Out: true, Stage: true, Sync: true})
	require.NoError(t, err)
	assert.Equal(t, targets, removed)
	assert.NoDirExists(t, filepath.Join(root, "out", "linux"))
	assert.DirExists(t, filepath.Join(root, "out", "windows"))
	assert.FileExists(t, filepath.Join(root, "3dparty", ".webrtc_sync_library_windows"))

	// archives in dist/ are never cleaned
	_, err = os.Stat(filepath.Join(root, "dist", "libcrtc-linux-x64.tar.gz"))
	assert.NoError(t, err)
}
