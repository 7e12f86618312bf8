// Package clock converts the kernel's monotonic timestamps to epoch time.
package clock

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// BootToEpoch returns CLOCK_REALTIME minus CLOCK_MONOTONIC in nanoseconds.
// bpf_ktime_get_ns reads CLOCK_MONOTONIC, so adding the result to an event
// timestamp yields epoch nanoseconds. Any skew between the two reads is
// carried into every converted timestamp.
func BootToEpoch() (uint64, error) {
	var wall, mono unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_REALTIME, &wall); err != nil {
		return 0, fmt.Errorf("read CLOCK_REALTIME: %w", err)
	}
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &mono); err != nil {
		return 0, fmt.Errorf("read CLOCK_MONOTONIC: %w", err)
	}
	return Offset(wall, mono), nil
}

func Offset(realtime, monotonic unix.Timespec) uint64 {
	return uint64(realtime.Nano()) - uint64(monotonic.Nano())
}
