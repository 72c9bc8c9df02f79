package hardware

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// SoilOptions tunes SimulatedSoil. Raw values follow a capacitive sensor: higher is drier.
type SoilOptions struct {
	// Start is the initial raw value.
	Start float64
	// Dry and Wet bound the simulated raw range.
	Dry float64
	Wet float64
	// DryPerSecond is the drift towards Dry while the pump is off.
	DryPerSecond float64
	// WetPerSecond is the drift towards Wet while the pump is on.
	WetPerSecond float64
	// Noise is the amplitude of uniform read noise.
	Noise float64
	// SpikeChance is the probability of a read returning a large ADC glitch.
	SpikeChance float64
	// Seed makes the simulation reproducible.
	Seed uint64
}

// DefaultSoilOptions returns a slowly drying soil spanning the given raw calibration range.
func DefaultSoilOptions(dryRaw, wetRaw int) SoilOptions {
	span := float64(dryRaw - wetRaw)
	width := math.Abs(span)

	return SoilOptions{
		Start:        float64(wetRaw) + span*3/5,
		Dry:          float64(dryRaw),
		Wet:          float64(wetRaw),
		DryPerSecond: width / 4000,
		WetPerSecond: width / 40,
		Noise:        width / 500,
		SpikeChance:  0.02,
		Seed:         1,
	}
}

// SimulatedSoil is a moisture source whose value drifts with the pump state.
type SimulatedSoil struct {
	l    *slog.Logger
	opts SoilOptions
	now  func() time.Time

	mu      sync.Mutex
	rnd     *rand.Rand
	value   float64
	pumping bool
	last    time.Time
}

// NewSimulatedSoil creates a simulated soil sensor.
func NewSimulatedSoil(l *slog.Logger, opts SoilOptions) *SimulatedSoil {
	return &SimulatedSoil{
		l:     l.With(slog.String("component", "simulated-soil")),
		opts:  opts,
		now:   time.Now,
		rnd:   rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		value: opts.Start,
	}
}

// ReadRaw returns the current raw value with noise and the occasional spike.
func (s *SimulatedSoil) ReadRaw(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.advanceLocked()

	if s.rnd.Float64() < s.opts.SpikeChance {
		spike := s.value * (5 + 5*s.rnd.Float64())
		s.l.Debug("injecting adc spike", slog.Float64("value", spike))
		return int(spike), nil
	}

	noise := (s.rnd.Float64()*2 - 1) * s.opts.Noise
	return int(s.value + noise), nil
}

// SetPumping is called by SimulatedPump when it switches.
func (s *SimulatedSoil) SetPumping(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advanceLocked()
	s.pumping = on
}

func (s *SimulatedSoil) advanceLocked() {
	now := s.now()
	if s.last.IsZero() {
		s.last = now
		return
	}

	dt := now.Sub(s.last).Seconds()
	s.last = now

	lo, hi := min(s.opts.Dry, s.opts.Wet), max(s.opts.Dry, s.opts.Wet)
	towardsDry := s.opts.Dry >= s.opts.Wet

	step := dt * s.opts.DryPerSecond
	if s.pumping {
		step = -dt * s.opts.WetPerSecond
	}
	if !towardsDry {
		step = -step
	}

	s.value = min(max(s.value+step, lo), hi)
}

// SimulatedPump logs switches and rewets the attached soil.
type SimulatedPump struct {
	l    *slog.Logger
	soil *SimulatedSoil

	mu       sync.Mutex
	on       bool
	switches int
}

// NewSimulatedPump creates a pump. soil may be nil.
func NewSimulatedPump(l *slog.Logger, soil *SimulatedSoil) *SimulatedPump {
	return &SimulatedPump{
		l:    l.With(slog.String("component", "simulated-pump")),
		soil: soil,
	}
}

func (p *SimulatedPump) On(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.set(true)
	return nil
}

// Off never fails, so the pump can be switched off on a cancelled context.
func (p *SimulatedPump) Off(context.Context) error {
	p.set(false)
	return nil
}

// IsOn reports the pump state.
func (p *SimulatedPump) IsOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.on
}

// Switches returns the number of state changes.
func (p *SimulatedPump) Switches() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.switches
}

func (p *SimulatedPump) set(on bool) {
	p.mu.Lock()
	changed := p.on != on
	p.on = on
	if changed {
		p.switches++
	}
	p.mu.Unlock()

	if !changed {
		return
	}

	p.l.Info("pump switched", slog.Bool("on", on))

	if p.soil != nil {
		p.soil.SetPumping(on)
	}
}
