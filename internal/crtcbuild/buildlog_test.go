package crtcbuild

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLogRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	req := BuildRequest{Project: ProjectDependency, TargetOS: OSMacOS, TargetCPU: CPUArm64}

	log, err := OpenBuildLog(dir, req, "build-1")
	require.NoError(t, err)
	fmt.Fprintln(log, "ninja: Entering directory `out/macos/arm64'")
	require.NoError(t, log.Close(nil))
	require.NoError(t, log.Close(nil), "second close is a no-op")

	assert.Equal(t, filepath.Join(dir, "dependency-macos-arm64.log.xz"), log.Path())
	text, err := ReadBuildLog(log.Path())
	require.NoError(t, err)
	assert.Contains(t, text, "build build-1")
	assert.Contains(t, text, "Entering directory")
	assert.Contains(t, text, "# result: ok")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must be removed")
}

func TestBuildLogRecordsFailure(t *testing.T) {
	dir := t.TempDir()
	req := BuildRequest{Project: ProjectLibrary, TargetOS: OSLinux, TargetCPU: CPUx64}

	log, err := OpenBuildLog(dir, req, "b")
	require.NoError(t, err)
	require.NoError(t, log.Close(errors.New("ninja exited with status 1")))

	text, err := ReadBuildLog(LogPath(dir, req))
	require.NoError(t, err)
	assert.Contains(t, text, "# result: failed: ninja exited with status 1")
}
