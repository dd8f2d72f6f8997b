package crtcbuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// EnsureToolchain clones depot_tools on first use and registers it on the
// execution context. A failed clone is fatal and not retried; a partially
// cloned directory is removed so the next run starts clean.
func EnsureToolchain(ctx context.Context, ec *ExecutionContext) (string, error) {
	dir := ec.Paths(BuildRequest{}).Toolchain

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return "", stageErr(StageToolchain, ErrToolchain, nil, err)
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		step("Cloning depot_tools into %s", dir)
		url := depotToolsURL
		if ec.Settings != nil && ec.Settings.DepotToolsURL != "" {
			url = ec.Settings.DepotToolsURL
		}
		clone := ec.Command("git", ec.Root, "clone", url, dir)
		if err := ec.Runner.Run(ctx, clone); err != nil {
			_ = os.RemoveAll(dir)
			return "", stageErr(StageToolchain, ErrToolchain, nil, fmt.Errorf("git clone %s: %w", url, err))
		}
	} else if err != nil {
		return "", stageErr(StageToolchain, ErrToolchain, nil, err)
	} else {
		debugf("depot_tools already present at %s\n", dir)
	}

	ec.UseToolchain(dir)
	return dir, nil
}
