//go:build linux

package strategycore

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToLastCore best-effort pins the calling thread to the
// highest-numbered CPU reported available, matching "pinned to the last
// reported physical core" in the component design. Errors are returned
// for the caller to log; they are never fatal.
func pinToLastCore() error {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return fmt.Errorf("strategycore: read affinity: %w", err)
	}

	last := -1
	for cpu := 0; cpu < runtime.NumCPU(); cpu++ {
		if set.IsSet(cpu) {
			last = cpu
		}
	}
	if last < 0 {
		return fmt.Errorf("strategycore: no CPUs reported available")
	}

	var target unix.CPUSet
	target.Set(last)
	if err := unix.SchedSetaffinity(0, &target); err != nil {
		return fmt.Errorf("strategycore: set affinity to cpu %d: %w", last, err)
	}
	return nil
}
