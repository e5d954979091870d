package scheduler

import (
	"fmt"

	"github.com/cyclus-sim/cyclus/internal/cerr"
	"github.com/shirou/gopsutil/v3/disk"
)

// MinFreeDiskPercent is the free-space percentage on the run's data
// directory below which CheckDiskSpace reports an error. cmd/cyclus logs
// that error as a warning and starts the run anyway; the check flags a run
// that might fill its output database mid-simulation.
const MinFreeDiskPercent = 5.0

// CheckDiskSpace reports an error if the filesystem backing dataDir has
// less than MinFreeDiskPercent free, adapting the teacher's gopsutil-based
// resource sampling (used there for CPU/memory reporting) to a pre-run
// guard instead of a live dashboard reading.
func CheckDiskSpace(dataDir string) error {
	usage, err := disk.Usage(dataDir)
	if err != nil {
		return fmt.Errorf("scheduler: read disk usage for %s: %w", dataDir, err)
	}
	freePercent := 100.0 - usage.UsedPercent
	if freePercent < MinFreeDiskPercent {
		return cerr.State("scheduler: only %.1f%% free on %s, need at least %.1f%%", freePercent, dataDir, MinFreeDiskPercent)
	}
	return nil
}
