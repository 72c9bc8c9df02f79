package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"growmat/backend/internal/store"
	"growmat/backend/internal/watering"
	"growmat/backend/pkg/utils"
)

// ErrShuttingDown is returned by TriggerAsync once the scheduler has stopped.
var ErrShuttingDown = errors.New("watering service is shutting down")

// persistTimeout bounds store writes that outlive the triggering context.
const persistTimeout = 5 * time.Second

// WateringService runs the watering scheduler and persists the controller state.
type WateringService struct {
	l        *slog.Logger
	deviceID string
	ctrl     *watering.Controller
	store    StateStore
	obs      Observer
	onChange func()

	mu     sync.Mutex
	closed bool
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewWateringService creates the watering service. onChange is called after every state change.
func NewWateringService(l *slog.Logger, opts Options, onChange func()) *WateringService {
	if onChange == nil {
		onChange = func() {}
	}

	return &WateringService{
		l:        l.With(slog.String("service", "watering")),
		deviceID: opts.DeviceID,
		ctrl:     opts.Controller,
		store:    opts.Store,
		obs:      opts.Observer,
		onChange: onChange,
		stop:     make(chan struct{}),
	}
}

// Restore applies persisted setting overrides and device state to the controller.
// Invalid overrides are skipped.
func (s *WateringService) Restore(ctx context.Context) error {
	overrides, err := s.store.LoadSettingOverrides(ctx, s.deviceID)
	if err != nil {
		return fmt.Errorf("failed to load setting overrides: %w", err)
	}

	for _, o := range overrides {
		if _, err := s.ctrl.UpdateSetting(o.Key, o.Value); err != nil {
			s.l.Warn("skipping stored setting override", slog.String("key", o.Key), utils.ErrAttr(err))
		}
	}

	state, ok, err := s.store.LoadState(ctx, s.deviceID)
	if err != nil {
		return fmt.Errorf("failed to load device state: %w", err)
	}

	if !ok {
		s.l.Info("no stored device state, starting with a full tank")
		return s.persist(ctx)
	}

	s.ctrl.SetTankRemaining(state.WaterLeftML)
	s.ctrl.SetWaterUsed(state.WaterUsedML)
	s.ctrl.SetLastWatered(state.LastWatered)
	s.ctrl.SetAutoWatering(state.AutoWatering)

	s.l.Info("device state restored",
		slog.Float64("waterLeftML", state.WaterLeftML),
		slog.Time("lastWatered", state.LastWatered),
		slog.Bool("autoWatering", state.AutoWatering),
		slog.Int("overrides", len(overrides)))

	return nil
}

// Run evaluates the soil every CheckInterval until ctx is done, then waits for manual sessions.
func (s *WateringService) Run(ctx context.Context) {
	defer s.shutdown()

	s.l.Info("watering scheduler started", slog.Duration("interval", s.ctrl.Settings().CheckInterval))

	for {
		s.evaluate(ctx)

		// Re-read so that interval updates apply to the next wait.
		timer := time.NewTimer(s.ctrl.Settings().CheckInterval)

		select {
		case <-ctx.Done():
			timer.Stop()
			s.l.Info("watering scheduler stopping")

			return
		case <-timer.C:
		}
	}
}

func (s *WateringService) evaluate(ctx context.Context) {
	res, err := s.ctrl.Evaluate(ctx)
	if err != nil && res.Session == nil {
		// Read failures are already logged and reported by the controller.
		s.l.Debug("evaluation skipped", slog.String("decision", string(res.Decision)))
	}

	if s.obs != nil {
		s.obs.ObserveResult(res)
	}

	if res.Session != nil {
		s.recordSession(ctx, *res.Session)
	}

	if err := s.persist(ctx); err != nil {
		s.l.Error("failed to persist device state", utils.ErrAttr(err))
	}

	s.changed()
}

// TriggerAsync starts a manual session in the background after checking the guards.
// The session is not bound to ctx; it is cancelled when the scheduler shuts down.
func (s *WateringService) TriggerAsync(ctx context.Context) error {
	if err := s.ctrl.CheckTrigger(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrShuttingDown
	}
	s.wg.Add(2)
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	go func() {
		defer s.wg.Done()

		select {
		case <-s.stop:
			cancel()
		case <-runCtx.Done():
		}
	}()

	go func() {
		defer s.wg.Done()
		defer cancel()

		session, err := s.ctrl.Trigger(runCtx)

		switch {
		case watering.IsGuardError(err):
			s.l.Info("manual watering refused", utils.ErrAttr(err))
			return
		case err != nil:
			s.l.Error("manual watering failed", utils.ErrAttr(err))
		}

		if s.obs != nil {
			s.obs.ObserveSession(session)
		}

		s.recordSession(runCtx, session)

		if err := s.persist(runCtx); err != nil {
			s.l.Error("failed to persist device state", utils.ErrAttr(err))
		}

		s.changed()
	}()

	s.changed()

	return nil
}

// ToggleAuto flips automatic watering and returns the new mode.
func (s *WateringService) ToggleAuto(ctx context.Context) (bool, error) {
	enabled := s.ctrl.ToggleAutoWatering()

	return enabled, s.persistAndNotify(ctx)
}

// ResetTank refills the tank.
func (s *WateringService) ResetTank(ctx context.Context) error {
	s.ctrl.ResetTank()

	return s.persistAndNotify(ctx)
}

// SetTankRemaining overrides the remaining tank capacity.
func (s *WateringService) SetTankRemaining(ctx context.Context, ml float64) error {
	if ml < 0 {
		return fmt.Errorf("%w: tank remaining must not be negative", watering.ErrInvalidSetting)
	}

	s.ctrl.SetTankRemaining(ml)

	return s.persistAndNotify(ctx)
}

// UpdateSetting applies and persists a single setting.
func (s *WateringService) UpdateSetting(ctx context.Context, key, value string) (watering.Settings, error) {
	settings, err := s.ctrl.UpdateSetting(key, value)
	if err != nil {
		return settings, err
	}

	if err := s.store.SaveSettingOverride(ctx, s.deviceID, key, value); err != nil {
		return settings, fmt.Errorf("failed to persist setting %s: %w", key, err)
	}

	return settings, s.persistAndNotify(ctx)
}

// Snapshot returns the controller state.
func (s *WateringService) Snapshot() watering.Snapshot {
	return s.ctrl.Snapshot()
}

// Settings returns the current watering settings.
func (s *WateringService) Settings() watering.Settings {
	return s.ctrl.Settings()
}

// Sessions returns the most recent sessions, newest first.
func (s *WateringService) Sessions(ctx context.Context, limit int) ([]store.SessionRecord, error) {
	return s.store.ListSessions(ctx, s.deviceID, limit)
}

func (s *WateringService) recordSession(ctx context.Context, session watering.Session) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.store.RecordSession(ctx, s.deviceID, session); err != nil {
		s.l.Error("failed to record watering session", slog.String("sessionID", session.ID), utils.ErrAttr(err))
	}
}

func (s *WateringService) persistAndNotify(ctx context.Context) error {
	defer s.changed()

	if err := s.persist(ctx); err != nil {
		return fmt.Errorf("failed to persist device state: %w", err)
	}

	return nil
}

func (s *WateringService) persist(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	snap := s.ctrl.Snapshot()

	return s.store.SaveState(ctx, store.DeviceState{
		DeviceID:       s.deviceID,
		AutoWatering:   snap.AutoWatering,
		WaterLeftML:    snap.WaterLeftML,
		TankCapacityML: snap.TankCapacityML,
		WaterUsedML:    snap.WaterUsedML,
		LastWatered:    snap.LastWatered,
		UpdatedAt:      time.Now(),
	})
}

func (s *WateringService) changed() {
	if s.obs != nil {
		s.obs.ObserveSnapshot(s.ctrl.Snapshot())
	}

	s.onChange()
}

// shutdown cancels running manual sessions and waits for them.
func (s *WateringService) shutdown() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.stop)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
