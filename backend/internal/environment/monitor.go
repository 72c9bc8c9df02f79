package environment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"growmat/backend/pkg/utils"
)

// TagSensorRead is the supervisor error tag for failed climate reads.
const TagSensorRead = "sensor_read"

// DefaultMaxAge is how long a reading is reused before the sensors are read again.
const DefaultMaxAge = time.Second

// Source reads the climate sensors.
type Source interface {
	ReadEnvironment(ctx context.Context) (Sample, error)
}

// Supervisor receives read failures.
type Supervisor interface {
	AddError(tag string)
}

// Options configures a Monitor.
type Options struct {
	Source      Source
	Calibration Calibration
	Supervisor  Supervisor
	// MaxAge defaults to DefaultMaxAge.
	MaxAge time.Duration
	Now    func() time.Time
}

// Monitor reads, conditions and caches the climate sensors and tracks extremes.
type Monitor struct {
	l      *slog.Logger
	src    Source
	cal    Calibration
	sup    Supervisor
	maxAge time.Duration
	now    func() time.Time

	// run serialises sensor access; mu guards the fields below.
	run      sync.Mutex
	mu       sync.Mutex
	latest   Reading
	has      bool
	extremes Extremes
}

// NewMonitor creates a monitor for opts.Source.
func NewMonitor(l *slog.Logger, opts Options) (*Monitor, error) {
	if opts.Source == nil {
		return nil, errors.New("environment source is required")
	}

	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Monitor{
		l:      l.With(slog.String("component", "environment")),
		src:    opts.Source,
		cal:    opts.Calibration,
		sup:    opts.Supervisor,
		maxAge: opts.MaxAge,
		now:    opts.Now,
	}, nil
}

// Read returns a conditioned reading, reusing the last one while it is younger than MaxAge.
func (m *Monitor) Read(ctx context.Context) (Reading, error) {
	m.run.Lock()
	defer m.run.Unlock()

	now := m.now()

	if latest, ok := m.Latest(); ok && now.Sub(latest.At) < m.maxAge {
		return latest, nil
	}

	sample, err := m.sample(ctx)
	if err == nil {
		err = sample.Validate()
	}

	if err != nil {
		m.l.Warn("failed to read environment sensors", utils.ErrAttr(err))

		if m.sup != nil {
			m.sup.AddError(TagSensorRead)
		}

		return Reading{}, err
	}

	reading := Condition(sample, m.cal, now)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.trackLocked(reading)
	m.latest = reading
	m.has = true

	return reading, nil
}

func (m *Monitor) sample(ctx context.Context) (s Sample, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("environment sensor panicked: %v", r)
		}
	}()

	return m.src.ReadEnvironment(ctx)
}

func (m *Monitor) trackLocked(r Reading) {
	if !m.has {
		m.extremes = Extremes{
			MinTemperatureC: r.TemperatureC,
			MaxTemperatureC: r.TemperatureC,
			MinGasOhms:      r.GasOhms,
			MaxGasOhms:      r.GasOhms,
		}

		return
	}

	m.extremes.MinTemperatureC = min(m.extremes.MinTemperatureC, r.TemperatureC)
	m.extremes.MaxTemperatureC = max(m.extremes.MaxTemperatureC, r.TemperatureC)
	m.extremes.MinGasOhms = min(m.extremes.MinGasOhms, r.GasOhms)
	m.extremes.MaxGasOhms = max(m.extremes.MaxGasOhms, r.GasOhms)
}

// Latest returns the last successful reading.
func (m *Monitor) Latest() (Reading, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.latest, m.has
}

// Extremes returns the extremes since start. ok is false before the first reading.
func (m *Monitor) Extremes() (e Extremes, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.extremes, m.has
}
