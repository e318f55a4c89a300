//go:build linux

package realtime

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// setAffinity pins the calling OS thread to cpu.
func setAffinity(cpu int) error {
	if cpu < 0 {
		return fmt.Errorf("realtime: cpu %d is negative", cpu)
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("realtime: sched_setaffinity cpu %d: %w", cpu, err)
	}
	return nil
}
