package crtcbuild

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countPrefix(args []string, prefix string) (int, string) {
	n, last := 0, ""
	for _, a := range args {
		if strings.HasPrefix(a, prefix) {
			n++
			last = a
		}
	}
	return n, last
}

func TestGNArgsLinuxFlags(t *testing.T) {
	for _, host := range []HostEnvironment{testHost, {OS: OSMacOS, CPU: CPUArm64}} {
		for _, cpu := range AllCPUs {
			args := GNArgs(BuildRequest{Project: ProjectLibrary, TargetOS: OSLinux, TargetCPU: cpu}, host)
			assert.Contains(t, args, "use_ozone=true")
			assert.Contains(t, args, "is_desktop_linux=false")
			assert.Contains(t, args, "rtc_use_gtk=false")
		}
	}
	args := GNArgs(BuildRequest{Project: ProjectLibrary, TargetOS: OSWindows, TargetCPU: CPUx64}, testHost)
	assert.NotContains(t, args, "use_ozone=true")
}

func TestGNArgsTargetOverrides(t *testing.T) {
	for _, o := range AllOSes {
		for _, cpu := range AllCPUs {
			req := BuildRequest{Project: ProjectLibrary, TargetOS: o, TargetCPU: cpu}
			args := GNArgs(req, testHost)

			n, flag := countPrefix(args, "target_os=")
			if o == testHost.OS {
				assert.Zero(t, n, "%s", req)
			} else {
				assert.Equal(t, 1, n, "%s", req)
				assert.Equal(t, `target_os="`+o.GN()+`"`, flag)
			}

			n, flag = countPrefix(args, "target_cpu=")
			if cpu == testHost.CPU {
				assert.Zero(t, n, "%s", req)
			} else {
				assert.Equal(t, 1, n, "%s", req)
				assert.Equal(t, `target_cpu="`+string(cpu)+`"`, flag)
			}
		}
	}
}

func TestGNArgsOrder(t *testing.T) {
	args := GNArgs(BuildRequest{Project: ProjectLibrary, TargetOS: OSMacOS, TargetCPU: CPUArm64, Debug: true}, testHost)
	want := append(append([]string(nil), baseGNArgs...), "is_debug=true", `target_os="mac"`, `target_cpu="arm64"`)
	assert.Equal(t, want, args)
}

func TestGenerateRunsGNInSource(t *testing.T) {
	ec, runner := newTestWorkspace(t)
	req := BuildRequest{Project: ProjectLibrary, TargetOS: OSWindows, TargetCPU: CPUx86}
	p := ec.Paths(req)

	out, err := NewConfigGenerator(ec).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, p.Out, out)
	assert.DirExists(t, p.Out)

	gens := runner.named("gn")
	require.Len(t, gens, 1)
	assert.Equal(t, p.Src, gens[0].Dir)
	assert.Equal(t, []string{"gen", p.Out, "--args=" + strings.Join(GNArgs(req, testHost), " ")}, gens[0].Args)
}

func TestGenerateFailureIsConfigError(t *testing.T) {
	ec, runner := newTestWorkspace(t)
	runner.fail = func(c Command) error {
		return &ExitError{Command: c.String(), Dir: c.Dir, ExitCode: 1}
	}
	req := BuildRequest{Project: ProjectLibrary, TargetOS: OSLinux, TargetCPU: CPUx64}

	_, err := NewConfigGenerator(ec).Generate(context.Background(), req)
	require.ErrorIs(t, err, ErrConfig)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageConfig, se.Stage)
	assert.Equal(t, req, *se.Request)

	var exit *ExitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.ExitCode)
}
