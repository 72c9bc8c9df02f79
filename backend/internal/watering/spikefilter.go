package watering

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultFilterWindow is the number of accepted values kept per sensor.
	DefaultFilterWindow = 5
	// DefaultFilterFloor is the minimum absolute deviation treated as a spike.
	DefaultFilterFloor = 50.0
)

// SpikeFilter is a per-sensor bounded moving-average outlier rejector.
// A value that deviates from the running average by more than
// max(floor, 50% of |average|) is replaced by that average.
type SpikeFilter struct {
	mu      sync.Mutex
	window  int
	floor   float64
	history map[string][]float64
}

// NewSpikeFilter creates a filter keeping window accepted values per sensor key.
func NewSpikeFilter(window int, floor float64) *SpikeFilter {
	if window < 1 {
		window = DefaultFilterWindow
	}

	return &SpikeFilter{
		window:  window,
		floor:   math.Abs(floor),
		history: make(map[string][]float64),
	}
}

// Filter returns the accepted value for sensor key and records it in the key's history.
func (f *SpikeFilter) Filter(key string, value float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	h := f.history[key]

	accepted := value
	if len(h) >= f.window {
		avg := stat.Mean(h, nil)
		threshold := math.Max(f.floor, 0.5*math.Abs(avg))

		if math.Abs(value-avg) > threshold {
			accepted = avg
		}
	}

	h = append(h, accepted)
	if len(h) > f.window {
		// Copy instead of reslicing so the backing array does not grow forever.
		h = append(h[:0:0], h[len(h)-f.window:]...)
	}

	f.history[key] = h

	return accepted
}

// History returns a copy of the accepted values for key, oldest first.
func (f *SpikeFilter) History(key string) []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]float64(nil), f.history[key]...)
}

// Reset drops the history of key.
func (f *SpikeFilter) Reset(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.history, key)
}

// Window returns the configured window size.
func (f *SpikeFilter) Window() int {
	return f.window
}
