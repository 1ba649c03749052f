package framework

import (
	"sync"
	"time"
)

// DefaultTickRate is the default scheduler tick rate in Hz.
const DefaultTickRate = 1000

// TickSource reports scheduler ticks.
type TickSource interface {
	Ticks() uint64
}

// Clock counts scheduler ticks since it was started.
type Clock struct {
	TickRate int

	now   func() time.Time
	start time.Time
	lock  sync.RWMutex
}

// NewClock creates a Clock ticking at rate Hz.
func NewClock(rate int) *Clock {
	if rate <= 0 {
		rate = DefaultTickRate
	}
	return &Clock{TickRate: rate, now: time.Now}
}

// Start (re)starts counting from zero.
func (c *Clock) Start() *Clock {
	c.lock.Lock()
	c.start = c.timeNow()
	c.lock.Unlock()
	return c
}

// Time implements TimeSource.
func (c *Clock) Time() time.Time {
	return c.timeNow()
}

// Ticks implements TickSource. It returns 0 before Start.
func (c *Clock) Ticks() uint64 {
	c.lock.RLock()
	start := c.start
	c.lock.RUnlock()
	if start.IsZero() {
		return 0
	}
	elapsed := c.timeNow().Sub(start)
	if elapsed < 0 {
		return 0
	}
	rate := c.TickRate
	if rate <= 0 {
		rate = DefaultTickRate
	}
	return uint64(elapsed / (time.Second / time.Duration(rate)))
}

func (c *Clock) timeNow() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}
