// Package drives verifies that the source and destination storage roots are
// usable before a transfer pass starts. The source only needs to be readable;
// the destination is created when absent and must accept writes and hold the
// configured minimum free space.
package drives

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"ferry/internal/config"
)

// Result reports the outcome of a single storage check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// VerifyAll runs every storage check for the given config. All checks run
// even when an early one fails, so the operator sees the complete picture.
func VerifyAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckSourceReadable("Source root", cfg.Paths.SourceRoot),
		CheckDestinationWritable("Destination root", cfg.Paths.DestinationRoot, cfg.Transfer.MinFreeSpaceGiB),
	}
}

// Passed reports whether every result in the set passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Summarize joins the failing results into one error, or returns nil when all
// checks passed.
func Summarize(results []Result) error {
	var failing []string
	for _, r := range results {
		if !r.Passed {
			failing = append(failing, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failing) == 0 {
		return nil
	}
	msg := failing[0]
	for _, f := range failing[1:] {
		msg += "; " + f
	}
	return fmt.Errorf("storage verification failed: %s", msg)
}

// CheckSourceReadable verifies the source root exists, is a directory, and is
// readable and traversable. The source is never written to.
func CheckSourceReadable(name, path string) Result {
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
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read ok)", path)}
}

// CheckDestinationWritable verifies the destination root accepts writes,
// creating it when absent, and that the filesystem reports at least
// minFreeGiB of free space. The write probe is a real create-and-remove so
// mount points that went read-only are caught.
func CheckDestinationWritable(name, path string, minFreeGiB int) Result {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: create: %v)", path, err)}
	}

	probe := filepath.Join(path, ".ferry-write-probe")
	f, err := os.Create(probe)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: write probe: %v)", path, err)}
	}
	_ = f.Close()
	_ = os.Remove(probe)

	if minFreeGiB > 0 {
		var stat unix.Statfs_t
		if err := unix.Statfs(path, &stat); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
		}
		free := stat.Bavail * uint64(stat.Bsize)
		need := uint64(minFreeGiB) << 30
		if free < need {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: %d GiB free required, %.1f GiB available)",
				path, minFreeGiB, float64(free)/float64(1<<30))}
		}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (write ok)", path)}
}
