package watering

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTicksDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		end   Ticks
		start Ticks
		want  time.Duration
	}{
		{name: "forward", end: 1500, start: 500, want: time.Second},
		{name: "backward", end: 500, start: 1500, want: -time.Second},
		{name: "equal", end: 42, start: 42, want: 0},
		{name: "across wraparound", end: 999, start: Ticks(0xFFFFFFFF - 1000), want: 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := TicksDiff(tt.end, tt.start); got != tt.want {
				t.Errorf("TicksDiff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeadlineAcrossWraparound(t *testing.T) {
	t.Parallel()

	now := Ticks(0xFFFFFFFF - 4999)
	d := deadlineAfter(now, 10*time.Second)

	if !d.pending(now) {
		t.Fatal("deadline should be pending right after it was set")
	}

	later := now.Add(6 * time.Second)
	if later > now {
		t.Fatalf("expected counter to wrap, got %d", later)
	}

	if !d.pending(later) {
		t.Error("deadline should still be pending after the counter wrapped")
	}

	if got := d.remaining(later); got != 4*time.Second {
		t.Errorf("remaining() = %v, want %v", got, 4*time.Second)
	}

	end := now.Add(10 * time.Second)
	if d.pending(end) || !d.expired(end) {
		t.Error("deadline should be expired once reached")
	}

	var unset deadline
	if unset.pending(now) || unset.expired(now) || unset.remaining(now) != 0 {
		t.Error("zero deadline should never be pending or expired")
	}
}

func TestSystemClockSleepCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := SystemClock().Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() error = %v, want %v", err, context.Canceled)
	}
}
