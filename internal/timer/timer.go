// Package timer implements the scenario's monotonic tick counter.
package timer

import (
	"context"
	"time"
)

// Timer is a monotonic tick counter with a fixed tick period. The counter
// starts at 0; the first call to Next resolves at tick 1.
type Timer struct {
	period  time.Duration
	endTick uint32
	counter uint32
}

// New builds a timer with the given tick period and terminal tick count.
func New(period time.Duration, endTick uint32) *Timer {
	return &Timer{period: period, endTick: endTick}
}

// Next suspends for one tick period, then increments the counter. It
// returns true until the counter reaches endTick, after which it returns
// false (termination is exclusive of further actions at endTick).
func (t *Timer) Next(ctx context.Context) bool {
	select {
	case <-time.After(t.period):
	case <-ctx.Done():
		return false
	}
	t.counter++
	return t.counter != t.endTick
}

// CurrentTick returns the counter's current value.
func (t *Timer) CurrentTick() uint32 {
	return t.counter
}

// DoAction reports whether an action scheduled every rate ticks should fire
// at the current tick. rate == 0 never fires (callers should validate rate
// > 0 at scenario-construction time per spec.md §3).
func (t *Timer) DoAction(rate uint32) bool {
	if rate == 0 {
		return false
	}
	return t.counter%rate == 0
}
