package hardware

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"growmat/backend/internal/environment"
)

// EnvironmentOptions tunes SimulatedEnvironment.
type EnvironmentOptions struct {
	// TemperatureC is the daily mean; TemperatureSwing the amplitude around it.
	TemperatureC     float64
	TemperatureSwing float64
	// HumidityPct is the daily mean relative humidity; it falls as the temperature rises.
	HumidityPct   float64
	HumiditySwing float64
	// PressurePa is the starting station pressure; it walks by up to PressureStep per read.
	PressurePa   float64
	PressureStep float64
	// GasOhms is the starting gas resistance.
	GasOhms float64
	// PeakLight and PeakUV are the raw counts at noon.
	PeakLight uint32
	PeakUV    uint32
	// WarmUp is the time until the gas heater reports stable.
	WarmUp time.Duration
	// Noise is the amplitude of uniform read noise on temperature and humidity.
	Noise float64
	Seed  uint64
}

// DefaultEnvironmentOptions returns a mild indoor grow-house climate.
func DefaultEnvironmentOptions() EnvironmentOptions {
	return EnvironmentOptions{
		TemperatureC:     24,
		TemperatureSwing: 4,
		HumidityPct:      60,
		HumiditySwing:    10,
		PressurePa:       101325,
		PressureStep:     5,
		GasOhms:          50000,
		PeakLight:        2000,
		PeakUV:           9000,
		WarmUp:           30 * time.Second,
		Noise:            0.2,
		Seed:             1,
	}
}

// SimulatedEnvironment is a climate source following a day/night cycle.
type SimulatedEnvironment struct {
	l    *slog.Logger
	opts EnvironmentOptions
	now  func() time.Time

	mu       sync.Mutex
	rnd      *rand.Rand
	started  time.Time
	pressure float64
	gas      float64
}

// NewSimulatedEnvironment creates a simulated climate sensor.
func NewSimulatedEnvironment(l *slog.Logger, opts EnvironmentOptions) *SimulatedEnvironment {
	return &SimulatedEnvironment{
		l:        l.With(slog.String("component", "simulated-environment")),
		opts:     opts,
		now:      time.Now,
		rnd:      rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x6a09e667f3bcc909)),
		pressure: opts.PressurePa,
		gas:      opts.GasOhms,
	}
}

// ReadEnvironment returns the simulated climate at the current time of day.
func (e *SimulatedEnvironment) ReadEnvironment(ctx context.Context) (environment.Sample, error) {
	if err := ctx.Err(); err != nil {
		return environment.Sample{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if e.started.IsZero() {
		e.started = now
	}

	// day is 1 at noon and -1 at midnight.
	hour := float64(now.Hour()) + float64(now.Minute())/60
	day := -math.Cos(2 * math.Pi * hour / 24)
	daylight := max(day, 0)

	e.pressure += (e.rnd.Float64()*2 - 1) * e.opts.PressureStep
	e.gas = max(e.gas*(1+(e.rnd.Float64()*2-1)*0.01), 1000)

	sample := environment.Sample{
		TemperatureC: e.opts.TemperatureC + day*e.opts.TemperatureSwing + e.noise(),
		HumidityPct:  min(max(e.opts.HumidityPct-day*e.opts.HumiditySwing+e.noise(), 0), 100),
		PressurePa:   e.pressure,
		GasOhms:      e.gas,
		HeaterStable: now.Sub(e.started) >= e.opts.WarmUp,
		AmbientLight: uint32(daylight * float64(e.opts.PeakLight)),
		UV:           uint32(daylight * float64(e.opts.PeakUV)),
	}

	e.l.Debug("simulated environment sample", slog.Float64("temperature", sample.TemperatureC), slog.Bool("heaterStable", sample.HeaterStable))

	return sample, nil
}

func (e *SimulatedEnvironment) noise() float64 {
	return (e.rnd.Float64()*2 - 1) * e.opts.Noise
}
