package framework

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockTicks(t *testing.T) {
	base := time.Date(2020, 2, 15, 0, 0, 0, 0, time.UTC)
	now := base
	c := NewClock(1000)
	c.now = func() time.Time { return now }
	require.Equal(t, uint64(0), c.Ticks())

	c.Start()
	require.Equal(t, uint64(0), c.Ticks())
	now = base.Add(1500 * time.Millisecond)
	require.Equal(t, uint64(1500), c.Ticks())

	c.TickRate = 100
	require.Equal(t, uint64(150), c.Ticks())

	c.Start()
	require.Equal(t, uint64(0), c.Ticks())
}

func TestClockDefaultRate(t *testing.T) {
	require.Equal(t, DefaultTickRate, NewClock(0).TickRate)
	require.Equal(t, DefaultTickRate, NewClock(-5).TickRate)
}

var (
	_ TimeSource = (*Clock)(nil)
	_ TickSource = (*Clock)(nil)
)
