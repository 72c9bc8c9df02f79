package watering

import (
	"context"
	"math"
	"time"
)

// MaxDeadline is the longest span a tick deadline can represent before the counter comparison wraps.
const MaxDeadline = time.Duration(math.MaxInt32) * time.Millisecond

// Ticks is a millisecond counter that wraps around at 2^32.
// Compare ticks only through TicksDiff.
type Ticks uint32

// TicksDiff returns end - start, tolerating a single wraparound of the counter.
// The result is valid as long as the real distance is below ~24.8 days.
func TicksDiff(end, start Ticks) time.Duration {
	return time.Duration(int32(end-start)) * time.Millisecond
}

// Add returns t advanced by d.
func (t Ticks) Add(d time.Duration) Ticks {
	return t + Ticks(uint32(d.Milliseconds()))
}

// Clock is the time source of the controller.
type Clock interface {
	// Ticks returns the monotonic tick counter.
	Ticks() Ticks
	// Now returns the wall clock time.
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct {
	start time.Time
}

// SystemClock returns a Clock backed by the runtime monotonic clock.
//
//nolint:ireturn // Returns Clock interface
func SystemClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) Ticks() Ticks {
	return Ticks(uint32(time.Since(c.start).Milliseconds()))
}

func (c *systemClock) Now() time.Time {
	return time.Now()
}

func (c *systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// deadline is an optional point in tick time.
type deadline struct {
	at  Ticks
	set bool
}

func deadlineAfter(now Ticks, d time.Duration) deadline {
	return deadline{at: now.Add(d), set: true}
}

// pending reports whether the deadline is set and still in the future.
func (d deadline) pending(now Ticks) bool {
	return d.set && TicksDiff(d.at, now) > 0
}

// expired reports whether the deadline is set but already reached.
func (d deadline) expired(now Ticks) bool {
	return d.set && TicksDiff(d.at, now) <= 0
}

func (d deadline) remaining(now Ticks) time.Duration {
	if !d.pending(now) {
		return 0
	}

	return TicksDiff(d.at, now)
}
