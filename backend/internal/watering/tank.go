package watering

import (
	"math"
	"sync"
)

// Tank is the water reservoir ledger. Remaining capacity always stays within [0, full].
type Tank struct {
	mu        sync.Mutex
	full      float64
	remaining float64
}

// NewTank creates a full tank of the given capacity in millilitres.
func NewTank(fullML float64) *Tank {
	if !finite(fullML) || fullML < 0 {
		fullML = 0
	}

	return &Tank{full: fullML, remaining: fullML}
}

// Reduce removes ml from the tank, never going below zero. Non-positive and non-finite amounts are ignored.
func (t *Tank) Reduce(ml float64) {
	if !finite(ml) || ml <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.remaining = clamp(t.remaining-ml, 0, t.full)
}

// Add pours ml into the tank, never exceeding the full capacity.
func (t *Tank) Add(ml float64) {
	if !finite(ml) || ml <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.remaining = clamp(t.remaining+ml, 0, t.full)
}

// Set overrides the remaining capacity, e.g. when restoring persisted state. NaN is ignored.
func (t *Tank) Set(ml float64) {
	if math.IsNaN(ml) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.remaining = clamp(ml, 0, t.full)
}

// Reset refills the tank to its full capacity.
func (t *Tank) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.remaining = t.full
}

// Remaining returns the current remaining capacity.
func (t *Tank) Remaining() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.remaining
}

// FullCapacity returns the capacity of a full tank.
func (t *Tank) FullCapacity() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.full
}

// SetFullCapacity changes the size of the tank and clamps the remaining water to it.
// Non-finite sizes are ignored.
func (t *Tank) SetFullCapacity(ml float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !finite(ml) {
		return
	}

	if ml < 0 {
		ml = 0
	}

	t.full = ml
	t.remaining = clamp(t.remaining, 0, t.full)
}
