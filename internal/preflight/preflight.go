package preflight

import (
	"context"

	"optic/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The items file check is skipped when no file is configured; run commands
// that take the file as an argument check it separately.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Media cache directory", cfg.Paths.MediaDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckCheckpointLock(cfg.CheckpointPath()),
		CheckVisionEndpoint(ctx, cfg),
	}

	if cfg.Input.ItemsFile != "" {
		results = append(results, CheckItemsFile(cfg.Input.ItemsFile))
	}

	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
