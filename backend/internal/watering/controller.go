package watering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"growmat/backend/pkg/utils"
)

var (
	// ErrBlocked is returned while the cooldown after the previous session is running.
	ErrBlocked = errors.New("watering blocked")
	// ErrCyclePaused is returned while the pause after the maximum number of cycles is running.
	ErrCyclePaused = errors.New("watering cycle pause active")
	// ErrAlreadyWatering is returned when a session is already running.
	ErrAlreadyWatering = errors.New("watering already in progress")
	// ErrTankEmpty is returned when the water tank has no water left.
	ErrTankEmpty = errors.New("water tank empty")
)

// Decision is the outcome of one evaluation cycle.
type Decision string

const (
	DecisionReadFailed     Decision = "read_failed"
	DecisionMoistureOK     Decision = "moisture_ok"
	DecisionManualOnly     Decision = "manual_only"
	DecisionCyclePause     Decision = "cycle_pause"
	DecisionTankEmpty      Decision = "tank_empty"
	DecisionGuarded        Decision = "guarded"
	DecisionWatered        Decision = "watered"
	DecisionWateringFailed Decision = "watering_failed"
)

// Outcome describes how a watering session ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Reading is one conditioned moisture sample.
type Reading struct {
	Raw      int
	Filtered float64
	Percent  float64
	At       time.Time
}

// Session describes one pump activation.
type Session struct {
	ID          string
	Manual      bool
	Requested   time.Duration
	Elapsed     time.Duration
	WaterUsedML float64
	StartedAt   time.Time
	FinishedAt  time.Time
	Outcome     Outcome
}

// Result is returned by Evaluate.
type Result struct {
	Decision Decision
	Reading  Reading
	// Session is set when the cycle ran the pump.
	Session *Session
}

// Snapshot is an immutable copy of the externally relevant controller state.
type Snapshot struct {
	HasReading          bool
	MoisturePercent     float64
	RawValue            int
	FilteredValue       float64
	ReadAt              time.Time
	WaterUsedML         float64
	WaterLeftML         float64
	TankCapacityML      float64
	LastWatered         time.Time
	SinceLastWatered    time.Duration
	CyclesDone          int
	CyclesMax           int
	IsWatering          bool
	AutoWatering        bool
	CyclePauseRemaining time.Duration
	BlockRemaining      time.Duration
}

// Options configures a Controller.
type Options struct {
	Source   MoistureSource
	Pump     Pump
	Tank     *Tank
	Settings Settings
	// Supervisor is optional.
	Supervisor Supervisor
	// Clock defaults to SystemClock.
	Clock Clock
}

// Controller is the watering state machine.
//
// run serialises state transitions (Evaluate, Trigger). mu guards the fields below it and is
// released while the pump runs so that Snapshot never waits for a whole session.
type Controller struct {
	l      *slog.Logger
	source MoistureSource
	pump   Pump
	tank   *Tank
	sup    Supervisor
	clock  Clock
	filter *SpikeFilter

	run sync.Mutex

	mu              sync.Mutex
	settings        Settings
	reading         Reading
	hasReading      bool
	cyclesDone      int
	isWatering      bool
	cyclePauseUntil deadline
	blockUntil      deadline
	lastWatered     time.Time
	autoWatering    bool
	waterUsed       float64
}

// NewController creates a watering controller.
func NewController(l *slog.Logger, opts Options) (*Controller, error) {
	if opts.Source == nil {
		return nil, errors.New("moisture source is required")
	}

	if opts.Pump == nil {
		return nil, errors.New("pump is required")
	}

	if opts.Tank == nil {
		return nil, errors.New("tank is required")
	}

	if err := opts.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	sup := opts.Supervisor
	if sup == nil {
		sup = nopSupervisor{}
	}

	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}

	l = l.With(slog.String("component", "watering-controller"))

	if !opts.Settings.Calibration.Valid() {
		l.Warn("moisture calibration is undefined, every cycle will be skipped until it is corrected",
			slog.Int("dryRaw", opts.Settings.Calibration.DryRaw),
			slog.Int("wetRaw", opts.Settings.Calibration.WetRaw))
	}

	return &Controller{
		l:            l,
		source:       opts.Source,
		pump:         opts.Pump,
		tank:         opts.Tank,
		sup:          sup,
		clock:        clock,
		filter:       NewSpikeFilter(opts.Settings.FilterWindow, opts.Settings.FilterFloor),
		settings:     opts.Settings,
		autoWatering: opts.Settings.AutoWatering,
	}, nil
}

// Evaluate runs one read-decide-act-record cycle.
func (c *Controller) Evaluate(ctx context.Context) (Result, error) {
	c.run.Lock()
	defer c.run.Unlock()

	s := c.Settings()

	reading, err := c.read(ctx, s)
	if err != nil {
		c.sup.AddError(TagMoistureRead)
		c.l.Error("moisture read failed, skipping cycle", utils.ErrAttr(err))

		return Result{Decision: DecisionReadFailed}, err
	}

	c.mu.Lock()
	c.reading = reading
	c.hasReading = true
	decision := c.decideLocked(reading, s)
	c.mu.Unlock()

	res := Result{Decision: decision, Reading: reading}
	if decision != DecisionWatered {
		return res, nil
	}

	session, err := c.activate(ctx, s, false)
	if err != nil {
		if isGuardError(err) {
			res.Decision = DecisionGuarded
			return res, nil
		}

		res.Decision = DecisionWateringFailed
		res.Session = &session

		return res, err
	}

	res.Session = &session

	return res, nil
}

// decideLocked applies the watering rules to a fresh reading. It returns DecisionWatered when a
// session should start. c.mu must be held.
func (c *Controller) decideLocked(reading Reading, s Settings) Decision {
	now := c.clock.Ticks()

	c.l.Info("soil moisture level", slog.Float64("percent", reading.Percent), slog.Int("raw", reading.Raw))

	if c.cyclePauseUntil.expired(now) {
		c.cyclePauseUntil = deadline{}
		c.l.Info("watering cycle pause finished")
	}

	if reading.Percent >= s.MoistureThreshold {
		c.cyclesDone = 0
		c.l.Debug("soil moisture is okay", slog.Float64("threshold", s.MoistureThreshold))

		return DecisionMoistureOK
	}

	switch {
	case !c.autoWatering:
		c.l.Info("soil is dry but automatic watering is disabled")
		return DecisionManualOnly

	case c.cyclesDone >= s.MaxCycles:
		c.l.Info("max watering cycles reached, pausing watering",
			slog.Int("cycles", c.cyclesDone), slog.Int("maxCycles", s.MaxCycles))
		c.startCyclePauseLocked(now, s)

		return DecisionCyclePause

	case c.tank.Remaining() <= 0:
		c.l.Warn("water tank empty, automated watering paused until the tank is refilled")
		return DecisionTankEmpty

	case c.cyclePauseUntil.pending(now):
		c.l.Info("watering cycle pause active", slog.Duration("remaining", c.cyclePauseUntil.remaining(now)))
		return DecisionGuarded

	case c.blockUntil.pending(now):
		c.l.Info("watering blocked", slog.Duration("remaining", c.blockUntil.remaining(now)))
		return DecisionGuarded

	case c.isWatering:
		c.l.Info("watering already in progress")
		return DecisionGuarded
	}

	return DecisionWatered
}

func (c *Controller) startCyclePauseLocked(now Ticks, s Settings) {
	c.cyclePauseUntil = deadlineAfter(now, s.PauseDuration)
	c.cyclesDone = 0
}

// Trigger starts a manual watering session and blocks until it ends.
// It is refused while a session runs, during the cooldown or cycle pause, and when the tank is empty.
func (c *Controller) Trigger(ctx context.Context) (Session, error) {
	// Refuse early instead of queueing behind a running session.
	if err := c.CheckTrigger(); err != nil {
		c.l.Info("manual watering refused", utils.ErrAttr(err))
		return Session{}, err
	}

	c.run.Lock()
	defer c.run.Unlock()

	if err := c.CheckTrigger(); err != nil {
		c.l.Info("manual watering refused", utils.ErrAttr(err))
		return Session{}, err
	}

	return c.activate(ctx, c.Settings(), true)
}

// CheckTrigger reports whether a manual session would currently be refused.
func (c *Controller) CheckTrigger() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Ticks()

	switch {
	case c.isWatering:
		return ErrAlreadyWatering
	case c.blockUntil.pending(now):
		return fmt.Errorf("%w: %s remaining", ErrBlocked, c.blockUntil.remaining(now))
	case c.cyclePauseUntil.pending(now):
		return fmt.Errorf("%w: %s remaining", ErrCyclePaused, c.cyclePauseUntil.remaining(now))
	case c.tank.Remaining() <= 0:
		return ErrTankEmpty
	}

	return nil
}

// activate runs one pump session. c.run must be held.
func (c *Controller) activate(ctx context.Context, s Settings, manual bool) (Session, error) {
	session := Session{
		ID:        utils.NewUUID(),
		Manual:    manual,
		Requested: s.WateringDuration,
	}

	c.mu.Lock()

	now := c.clock.Ticks()
	if c.blockUntil.pending(now) {
		remaining := c.blockUntil.remaining(now)
		c.mu.Unlock()
		c.l.Info("watering refused, block timer active", slog.Duration("remaining", remaining))

		return session, fmt.Errorf("%w: %s remaining", ErrBlocked, remaining)
	}

	if c.isWatering {
		c.mu.Unlock()
		return session, ErrAlreadyWatering
	}

	c.isWatering = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.isWatering = false
		c.mu.Unlock()
		c.sup.StopProcessing(TagWatering)
	}()

	session.StartedAt = c.clock.Now()
	c.sup.StartProcessing(TagWatering)
	c.l.Info("start watering", slog.String("sessionID", session.ID), slog.Duration("duration", s.WateringDuration), slog.Bool("manual", manual))

	elapsed, runErr := c.runPump(ctx, s)

	session.Elapsed = elapsed
	session.FinishedAt = c.clock.Now()
	session.WaterUsedML = elapsed.Seconds() * s.FlowRate / 60

	switch {
	case runErr == nil:
		session.Outcome = OutcomeCompleted
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		session.Outcome = OutcomeCancelled
	default:
		session.Outcome = OutcomeFailed
	}

	c.mu.Lock()
	c.recordLocked(session, s)
	c.mu.Unlock()

	if runErr != nil {
		c.sup.AddError(TagWatering)
		c.l.Error("watering failed",
			slog.String("sessionID", session.ID),
			slog.Duration("elapsed", elapsed),
			slog.Float64("waterUsedML", session.WaterUsedML),
			utils.ErrAttr(runErr))

		return session, runErr
	}

	c.l.Info("finished watering", slog.String("sessionID", session.ID), slog.Float64("waterUsedML", session.WaterUsedML))

	return session, nil
}

// runPump keeps the pump on for s.WateringDuration in slices, feeding the watchdog after each one.
// The pump is forced off on every failure path.
func (c *Controller) runPump(ctx context.Context, s Settings) (elapsed time.Duration, err error) {
	offCtx := context.WithoutCancel(ctx)

	defer func() {
		if err == nil {
			return
		}

		if offErr := safely("pump off", func() error { return c.pump.Off(offCtx) }); offErr != nil {
			c.l.Error("failed to force pump off", utils.ErrAttr(offErr))
		}
	}()

	if err := safely("pump on", func() error { return c.pump.On(ctx) }); err != nil {
		return 0, fmt.Errorf("failed to turn pump on: %w", err)
	}

	for elapsed < s.WateringDuration {
		slice := min(s.SliceInterval, s.WateringDuration-elapsed)

		if err := c.clock.Sleep(ctx, slice); err != nil {
			return elapsed, fmt.Errorf("watering interrupted: %w", err)
		}

		elapsed += slice
		c.sup.FeedWatchdog()
	}

	if err := safely("pump off", func() error { return c.pump.Off(offCtx) }); err != nil {
		return elapsed, fmt.Errorf("failed to turn pump off: %w", err)
	}

	return elapsed, nil
}

// recordLocked books the effects of a finished session. Failed sessions are credited with the
// water of their completed slices but do not count as a cycle. c.mu must be held.
func (c *Controller) recordLocked(session Session, s Settings) {
	now := c.clock.Ticks()

	if session.WaterUsedML > 0 {
		c.tank.Reduce(session.WaterUsedML)
		c.waterUsed += session.WaterUsedML
	}

	if session.Outcome != OutcomeCompleted {
		if session.Elapsed > 0 {
			c.lastWatered = session.FinishedAt
			c.blockUntil = deadlineAfter(now, session.Elapsed)
		}

		return
	}

	c.lastWatered = session.FinishedAt
	c.blockUntil = deadlineAfter(now, session.Requested)
	c.cyclesDone++

	if c.cyclesDone >= s.MaxCycles {
		c.l.Info("max watering cycles reached, pausing watering",
			slog.Int("maxCycles", s.MaxCycles), slog.Duration("pause", s.PauseDuration))
		c.startCyclePauseLocked(now, s)
	}
}

func (c *Controller) read(ctx context.Context, s Settings) (Reading, error) {
	var raw int

	err := safely("moisture read", func() error {
		var err error
		raw, err = c.source.ReadRaw(ctx)

		return err
	})
	if err != nil {
		return Reading{}, fmt.Errorf("failed to read raw moisture: %w", err)
	}

	filtered := c.filter.Filter(s.SensorKey, float64(raw))

	percent, err := ToPercent(filtered, s.Calibration)
	if err != nil {
		return Reading{}, err
	}

	return Reading{Raw: raw, Filtered: filtered, Percent: percent, At: c.clock.Now()}, nil
}

// Snapshot returns a consistent copy of the controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Ticks()

	snap := Snapshot{
		HasReading:          c.hasReading,
		MoisturePercent:     c.reading.Percent,
		RawValue:            c.reading.Raw,
		FilteredValue:       c.reading.Filtered,
		ReadAt:              c.reading.At,
		WaterUsedML:         c.waterUsed,
		WaterLeftML:         c.tank.Remaining(),
		TankCapacityML:      c.tank.FullCapacity(),
		LastWatered:         c.lastWatered,
		CyclesDone:          c.cyclesDone,
		CyclesMax:           c.settings.MaxCycles,
		IsWatering:          c.isWatering,
		AutoWatering:        c.autoWatering,
		CyclePauseRemaining: c.cyclePauseUntil.remaining(now),
		BlockRemaining:      c.blockUntil.remaining(now),
	}

	if !c.lastWatered.IsZero() {
		snap.SinceLastWatered = c.clock.Now().Sub(c.lastWatered)
	}

	return snap
}

// Settings returns the current settings.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.settings
}

// UpdateSetting validates and applies a single setting. The change takes effect on the next cycle.
func (c *Controller) UpdateSetting(key, value string) (Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.settings.With(key, value)
	if err != nil {
		return c.settings, err
	}

	switch strings.ToLower(key) {
	case KeyAutoWatering:
		c.autoWatering = next.AutoWatering
	case KeyTankCapacity:
		c.tank.SetFullCapacity(next.TankCapacity)
	}

	c.settings = next
	c.l.Info("watering setting updated", slog.String("key", key), slog.String("value", value))

	return next, nil
}

// ToggleAutoWatering flips automatic watering and returns the new state.
func (c *Controller) ToggleAutoWatering() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.autoWatering = !c.autoWatering
	c.l.Info("automatic watering toggled", slog.Bool("enabled", c.autoWatering))

	return c.autoWatering
}

// SetAutoWatering sets automatic watering.
func (c *Controller) SetAutoWatering(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.autoWatering = enabled
}

// ResetWaterUsed clears the accumulated water usage.
func (c *Controller) ResetWaterUsed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.waterUsed = 0
}

// SetWaterUsed restores the accumulated water usage.
func (c *Controller) SetWaterUsed(ml float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.waterUsed = max(ml, 0)
}

// ResetTank refills the tank and clears the accumulated water usage.
func (c *Controller) ResetTank() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tank.Reset()
	c.waterUsed = 0
	c.l.Info("water tank capacity reset", slog.Float64("capacityML", c.tank.FullCapacity()))
}

// SetTankRemaining overrides the remaining tank capacity.
func (c *Controller) SetTankRemaining(ml float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tank.Set(ml)
	c.l.Info("water tank capacity set", slog.Float64("remainingML", c.tank.Remaining()))
}

// SetLastWatered restores the time of the last watering, e.g. from persistent storage.
func (c *Controller) SetLastWatered(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastWatered = t
}

// Tank returns the tank shared with the controller.
func (c *Controller) Tank() *Tank {
	return c.tank
}

// Watering reports whether a session is running.
func (c *Controller) Watering() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.isWatering
}

func isGuardError(err error) bool {
	return errors.Is(err, ErrBlocked) ||
		errors.Is(err, ErrAlreadyWatering) ||
		errors.Is(err, ErrCyclePaused) ||
		errors.Is(err, ErrTankEmpty)
}

// IsGuardError reports whether err is a refusal by one of the watering guards rather than a fault.
func IsGuardError(err error) bool {
	return isGuardError(err)
}
