package crtcbuild

import (
	"runtime"

	"github.com/gookit/color"
)

// Global variables
var (
	version   = "dev"     // overridden at build time
	buildDate = "unknown" // overridden at build time
	arch      = runtime.GOARCH

	// Debug enables debugf output. Set from CRTC_DEBUG.
	Debug bool

	ConfigFileName = "crtcbuild.conf"
)

const (
	depotToolsURL = "https://chromium.googlesource.com/chromium/tools/depot_tools.git"
	defaultBranch = "main"

	// header shipped in every staging directory
	publicHeader = "crtc.h"

	// build-graph description this project injects into the WebRTC tree
	rootBuildFile = "root.gn"
)

// color helpers
var (
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
	colNote    = color.Tag("notice")
)
