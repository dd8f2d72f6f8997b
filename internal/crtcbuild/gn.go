package crtcbuild

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// baseGNArgs are passed to every gn gen, in this order.
var baseGNArgs = []string{
	"rtc_include_tests=false",
	"is_component_build=false",
	"rtc_use_h264=true",
	`ffmpeg_branding="Chrome"`,
	"rtc_enable_protobuf=false",
	"treat_warnings_as_errors=false",
	"use_custom_libcxx=false",
}

// linuxGNArgs select the Ozone backend and drop the desktop GTK integration.
var linuxGNArgs = []string{
	"use_ozone=true",
	"is_desktop_linux=false",
	"rtc_use_gtk=false",
}

// GNArgs derives the gn argument list for req on host. Overrides for
// target_os and target_cpu are only emitted when cross-compiling.
func GNArgs(req BuildRequest, host HostEnvironment) []string {
	args := append([]string(nil), baseGNArgs...)
	args = append(args, "is_debug="+strconv.FormatBool(req.Debug))

	if req.TargetOS == OSLinux {
		args = append(args, linuxGNArgs...)
	}
	if req.TargetOS != host.OS {
		args = append(args, fmt.Sprintf("target_os=%q", req.TargetOS.GN()))
	}
	if req.TargetCPU != host.CPU {
		args = append(args, fmt.Sprintf("target_cpu=%q", string(req.TargetCPU)))
	}
	return args
}

// ConfigGenerator runs gn gen for a request.
type ConfigGenerator struct {
	ec *ExecutionContext
}

func NewConfigGenerator(ec *ExecutionContext) *ConfigGenerator {
	return &ConfigGenerator{ec: ec}
}

// Generate writes the build graph to out/<os>/<cpu>. It returns that directory.
func (g *ConfigGenerator) Generate(ctx context.Context, req BuildRequest) (string, error) {
	p := g.ec.Paths(req)
	fail := func(err error) error { return stageErr(StageConfig, ErrConfig, &req, err) }

	if err := os.MkdirAll(p.Out, 0o755); err != nil {
		return "", fail(err)
	}

	args := GNArgs(req, g.ec.Host)
	step("Generating build graph in %s", p.Out)
	debugf("gn args: %s\n", strings.Join(args, " "))

	gen := g.ec.Tool("gn", p.Src, "gen", p.Out, "--args="+strings.Join(args, " "))
	if err := g.ec.Runner.Run(ctx, gen); err != nil {
		return "", fail(err)
	}
	return p.Out, nil
}
