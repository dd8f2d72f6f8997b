package crtcbuild

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureToolchainClonesOnce(t *testing.T) {
	ec, runner := newTestWorkspace(t)
	ctx := context.Background()

	dir, err := EnsureToolchain(ctx, ec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ec.Root, "3dparty", "depot_tools"), dir)
	assert.Equal(t, dir, ec.Toolchain())
	android := BuildRequest{Project: ProjectDependency, TargetOS: OSAndroid, TargetCPU: CPUArm64}
	assert.Equal(t, ec.Paths(android).Toolchain, dir)

	clones := runner.named("git")
	require.Len(t, clones, 1)
	assert.Equal(t, []string{"clone", depotToolsURL, dir}, clones[0].Args)
	assert.Equal(t, ec.Root, clones[0].Dir)

	runner.reset()
	_, err = EnsureToolchain(ctx, ec)
	require.NoError(t, err)
	assert.Empty(t, runner.cmds)
}

func TestEnsureToolchainFailureRemovesPartialClone(t *testing.T) {
	ec, runner := newTestWorkspace(t)
	runner.fail = func(c Command) error {
		dir := c.Args[len(c.Args)-1]
		_ = os.MkdirAll(filepath.Join(dir, ".git"), 0o755)
		return errors.New("network unreachable")
	}

	_, err := EnsureToolchain(context.Background(), ec)
	require.ErrorIs(t, err, ErrToolchain)
	assert.NoDirExists(t, filepath.Join(ec.Root, "3dparty", "depot_tools"))
	assert.Empty(t, ec.Toolchain())
}

func TestToolchainIsOnlyInChildEnvironment(t *testing.T) {
	ec, _ := newTestWorkspace(t)
	before := os.Getenv("PATH")

	_, err := EnsureToolchain(context.Background(), ec)
	require.NoError(t, err)

	cmd := ec.Tool("gclient", ec.Root, "sync")
	path := envValue(cmd.Env, "PATH")
	assert.True(t, strings.HasPrefix(path, ec.Toolchain()+string(filepath.ListSeparator)) || path == ec.Toolchain())
	assert.Equal(t, before, os.Getenv("PATH"), "process PATH must not change")
	assert.Equal(t, "gclient", cmd.Name)
}

func TestWindowsHostEnvironment(t *testing.T) {
	ec, _ := newTestWorkspace(t)
	ec.Host = HostEnvironment{OS: OSWindows, CPU: CPUx64}
	ec.Settings.VS2022Install = `D:\VS\2022`

	cmd := ec.Tool("gn", ec.Root, "gen")
	assert.Equal(t, "gn.bat", cmd.Name)
	assert.Equal(t, "0", envValue(cmd.Env, "DEPOT_TOOLS_WIN_TOOLCHAIN"))
	assert.Equal(t, `D:\VS\2022`, envValue(cmd.Env, "vs2022_install"))

	git := ec.Command("git", ec.Root, "status")
	assert.Equal(t, "git", git.Name)
}

func TestWithEnvReplaces(t *testing.T) {
	env := withEnv([]string{"A=1", "PATH=/bin", "B=2"}, "PATH", "/opt/bin:/bin")
	assert.Equal(t, []string{"A=1", "B=2", "PATH=/opt/bin:/bin"}, env)
	assert.Equal(t, "/opt/bin:/bin", envValue(env, "PATH"))
	assert.Equal(t, "", envValue(env, "MISSING"))
}
