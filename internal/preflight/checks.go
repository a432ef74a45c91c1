package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"optic/internal/checkpoint"
	"optic/internal/config"
	"optic/internal/post"
	"optic/internal/retry"
	"optic/internal/services/vision"
)

// CheckVisionEndpoint verifies that the vision endpoint is reachable and
// serving its model list. It uses a 30-second timeout and a single attempt
// (no retries).
func CheckVisionEndpoint(ctx context.Context, cfg *config.Config) Result {
	const name = "Vision endpoint"

	if strings.TrimSpace(cfg.Analysis.BaseURL) == "" {
		return Result{Name: name, Detail: "base_url missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := vision.NewClient(vision.Config{
		BaseURL: cfg.Analysis.BaseURL,
		APIKey:  cfg.Analysis.APIKey,
		Model:   cfg.Analysis.Model,
		Timeout: 30 * time.Second,
		Retry:   retry.Policy{MaxAttempts: 1},
	})

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeEndpointError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable and
// writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCheckpointLock verifies that no other process holds the checkpoint
// lock. The lock is released immediately; the run command acquires it for
// real once checks pass.
func CheckCheckpointLock(path string) Result {
	const name = "Checkpoint lock"

	store := checkpoint.NewStore(path)
	if err := store.Acquire(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if err := store.Release(); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("release: %v", err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckItemsFile verifies that the items file exists and parses.
func CheckItemsFile(path string) Result {
	const name = "Items file"

	items, err := post.ReadFile(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if len(items) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: no items)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d items)", path, len(items))}
}

// summarizeEndpointError produces a human-readable summary for endpoint
// health check failures.
func summarizeEndpointError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (endpoint unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (endpoint unreachable)"
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "connection refused (is LM Studio running?)"
	case strings.Contains(msg, "no such host"):
		return "host not found (check base_url)"
	default:
		return msg
	}
}
