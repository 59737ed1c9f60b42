//go:build !linux

package strategycore

import "fmt"

// pinToLastCore is a no-op on platforms without a sched_setaffinity
// equivalent wired up here; the caller logs the error and continues
// unpinned.
func pinToLastCore() error {
	return fmt.Errorf("strategycore: CPU pinning not implemented on this platform")
}
