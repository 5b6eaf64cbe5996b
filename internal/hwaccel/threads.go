package hwaccel

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
)

// LogicalCPUs returns the logical processor count, falling back to the Go
// runtime's view when the host cannot be queried.
func LogicalCPUs(ctx context.Context) int {
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}
