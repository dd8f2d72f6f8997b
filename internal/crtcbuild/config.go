package crtcbuild

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds raw KEY=VALUE settings from crtcbuild.conf merged with the
// environment.
type Config struct {
	Values map[string]string
}

// env prefixes that override the config file
var envPrefixes = []string{"CRTC_", "WEBRTC_", "R2_"}

// loadConfig reads path (a missing file is not an error) and merges the
// environment on top.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	values, err := godotenv.Read(path)
	switch {
	case err == nil:
		for k, v := range values {
			cfg.Values[k] = v
		}
	case errors.Is(err, fs.ErrNotExist):
		debugf("No config file at %s, using defaults\n", path)
	default:
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	mergeEnvOverrides(cfg, os.Environ())
	return cfg, nil
}

// mergeEnvOverrides copies CRTC_*, WEBRTC_* and R2_* variables into cfg.
func mergeEnvOverrides(cfg *Config, environ []string) {
	for _, env := range environ {
		key, val, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		for _, p := range envPrefixes {
			if strings.HasPrefix(key, p) {
				cfg.Values[key] = val
				break
			}
		}
	}
}

func (c *Config) bool(key string) bool {
	switch strings.ToLower(c.Values[key]) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (c *Config) str(key, def string) string {
	if v := strings.TrimSpace(c.Values[key]); v != "" {
		return v
	}
	return def
}

// Settings are the typed values the pipeline runs with.
type Settings struct {
	Root          string
	DepotToolsURL string
	Branch        string
	ArchiveFormat ArchiveFormat
	LegacyFetch   bool // tolerate fetch failures like the original script did
	VS2022Install string
	Request       BuildRequest
}

// initSettings resolves cfg into Settings. root is the default workspace
// root when CRTC_ROOT is unset. host supplies the default target.
func initSettings(cfg *Config, root string, host HostEnvironment) (*Settings, error) {
	Debug = cfg.bool("CRTC_DEBUG")

	s := &Settings{
		Root:          cfg.str("CRTC_ROOT", root),
		DepotToolsURL: cfg.str("CRTC_DEPOT_TOOLS_URL", depotToolsURL),
		Branch:        cfg.str("CRTC_BRANCH", defaultBranch),
		LegacyFetch:   cfg.bool("CRTC_LEGACY_FETCH"),
		VS2022Install: cfg.str("CRTC_VS2022_INSTALL", `C:\Program Files\Microsoft Visual Studio\2022\Professional`),
	}

	abs, err := filepath.Abs(s.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", s.Root, err)
	}
	s.Root = abs

	format, err := ParseArchiveFormat(cfg.str("CRTC_ARCHIVE_FORMAT", string(FormatTarGz)))
	if err != nil {
		return nil, err
	}
	s.ArchiveFormat = format

	req := BuildRequest{
		Project:   ProjectLibrary,
		TargetOS:  host.OS,
		TargetCPU: host.CPU,
		Debug:     cfg.Values["WEBRTC_DEBUG"] == "true",
		Examples:  cfg.Values["WEBRTC_EXAMPLES"] == "true",
	}
	if v := cfg.Values["CRTC_PROJECT"]; v != "" {
		if req.Project, err = ParseProject(v); err != nil {
			return nil, err
		}
	}
	if v := cfg.Values["WEBRTC_TARGET_OS"]; v != "" {
		if req.TargetOS, err = ParseOS(v); err != nil {
			return nil, err
		}
	}
	if v := cfg.Values["WEBRTC_TARGET_CPU"]; v != "" {
		if req.TargetCPU, err = ParseCPU(v); err != nil {
			return nil, err
		}
	}
	s.Request = req

	if s.LegacyFetch {
		debugf("=> Legacy fetch mode: fetch failures will not abort the sync\n")
	}
	return s, nil
}
