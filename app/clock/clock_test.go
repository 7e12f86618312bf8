package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestOffset(t *testing.T) {
	wall := unix.NsecToTimespec(1_700_000_000_500_000_000)
	mono := unix.NsecToTimespec(500_000_000)
	assert.Equal(t, uint64(1_700_000_000_000_000_000), Offset(wall, mono))
}

func TestBootToEpoch(t *testing.T) {
	offset, err := BootToEpoch()
	require.NoError(t, err)

	var mono unix.Timespec
	require.NoError(t, unix.ClockGettime(unix.CLOCK_MONOTONIC, &mono))

	converted := time.Unix(0, int64(uint64(mono.Nano())+offset))
	assert.WithinDuration(t, time.Now(), converted, time.Second)
}
