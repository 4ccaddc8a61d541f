package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"letterpod/internal/deps"
	"letterpod/internal/services"
	"letterpod/internal/stage"
)

const probeTimeout = 30 * time.Second

// CheckProbe runs one reachability probe with a single attempt.
func CheckProbe(ctx context.Context, probe stage.Probe) Result {
	if probe.Check == nil {
		return Result{Name: probe.Name, Detail: "not configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := probe.Check(checkCtx); err != nil {
		return Result{Name: probe.Name, Detail: summarizeError(err)}
	}
	return Result{Name: probe.Name, Passed: true, Detail: "reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
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

// CheckFFmpeg reports the transcoder binary. It is optional: without it the
// synthesizer output is delivered as-is.
func CheckFFmpeg(configured string) Result {
	status := deps.ResolveFFmpeg(configured)
	if status.Available {
		return Result{Name: status.Name, Passed: true, Detail: status.Command, Optional: true}
	}
	return Result{Name: status.Name, Detail: status.Detail + "; audio is delivered without transcoding", Optional: true}
}

// summarizeError produces a human-readable summary for probe failures.
func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (service unreachable)"
	}
	if errors.Is(err, services.ErrConfiguration) {
		return "credentials rejected: " + err.Error()
	}
	return err.Error()
}
