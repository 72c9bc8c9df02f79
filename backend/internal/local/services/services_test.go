package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"growmat/backend/internal/environment"
	mqtttypes "growmat/backend/internal/local/mqtt/types"
	"growmat/backend/internal/store"
	"growmat/backend/internal/supervisor"
	"growmat/backend/internal/watering"
)

type fakeStore struct {
	mu        sync.Mutex
	state     store.DeviceState
	hasState  bool
	saves     int
	sessions  []watering.Session
	overrides []store.SettingOverride
	pingErr   error
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }

func (s *fakeStore) LoadState(context.Context, string) (store.DeviceState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state, s.hasState, nil
}

func (s *fakeStore) SaveState(_ context.Context, state store.DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
	s.hasState = true
	s.saves++

	return nil
}

func (s *fakeStore) RecordSession(_ context.Context, _ string, session watering.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = append(s.sessions, session)

	return nil
}

func (s *fakeStore) ListSessions(_ context.Context, deviceID string, _ int) ([]store.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.SessionRecord, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, store.SessionRecord{DeviceID: deviceID, Session: session})
	}

	return out, nil
}

func (s *fakeStore) SaveSettingOverride(_ context.Context, _, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.overrides = append(s.overrides, store.SettingOverride{Key: key, Value: value})

	return nil
}

func (s *fakeStore) LoadSettingOverrides(context.Context, string) ([]store.SettingOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]store.SettingOverride(nil), s.overrides...), nil
}

func (s *fakeStore) snapshot() (store.DeviceState, []watering.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state, append([]watering.Session(nil), s.sessions...)
}

type published struct {
	operationID string
	topic       string
	payload     any
}

type fakePublisher struct {
	mu        sync.Mutex
	connected bool
	messages  []published
}

func (p *fakePublisher) Publish(operationID, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages = append(p.messages, published{operationID: operationID, topic: topic, payload: payload})

	return nil
}

func (p *fakePublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connected
}

type fakeSource struct {
	raw atomic.Int64
}

func (s *fakeSource) ReadRaw(context.Context) (int, error) {
	return int(s.raw.Load()), nil
}

type fakePump struct{}

func (fakePump) On(context.Context) error  { return nil }
func (fakePump) Off(context.Context) error { return nil }

type harness struct {
	svc    *Services
	ctrl   *watering.Controller
	store  *fakeStore
	pub    *fakePublisher
	source *fakeSource
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, duration time.Duration, modify ...func(*Options)) *harness {
	t.Helper()

	settings := watering.DefaultSettings()
	settings.Calibration = watering.Calibration{DryRaw: 1000, WetRaw: 200}
	settings.WateringDuration = duration
	settings.SliceInterval = 10 * time.Millisecond
	settings.FlowRate = 60000
	settings.TankCapacity = 1000
	settings.CheckInterval = time.Hour

	source := &fakeSource{}
	source.raw.Store(300)

	l := discardLogger()

	ctrl, err := watering.NewController(l, watering.Options{
		Source:   source,
		Pump:     fakePump{},
		Tank:     watering.NewTank(settings.TankCapacity),
		Settings: settings,
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	st := &fakeStore{}
	pub := &fakePublisher{connected: true}

	opts := Options{
		DeviceID:   "dev-1",
		Controller: ctrl,
		Store:      st,
		Publisher:  pub,
		Supervisor: supervisor.New(l, supervisor.Options{}),
		Version:    "v-test",
	}

	for _, m := range modify {
		m(&opts)
	}

	svc := NewServices(l, opts)

	return &harness{svc: svc, ctrl: ctrl, store: st, pub: pub, source: source}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}

		time.Sleep(5 * time.Millisecond)
	}
}

func TestRestore(t *testing.T) {
	t.Parallel()

	t.Run("applies state and overrides", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, 30*time.Millisecond)
		lastWatered := time.Date(2026, 4, 30, 8, 0, 0, 0, time.UTC)

		h.store.overrides = []store.SettingOverride{
			{Key: watering.KeyMoistureThreshold, Value: "40"},
			{Key: "bogus", Value: "1"},
		}
		h.store.state = store.DeviceState{WaterLeftML: 400, WaterUsedML: 600, LastWatered: lastWatered}
		h.store.hasState = true

		if err := h.svc.Watering.Restore(t.Context()); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}

		snap := h.svc.Watering.Snapshot()
		if snap.WaterLeftML != 400 || snap.WaterUsedML != 600 || snap.AutoWatering || !snap.LastWatered.Equal(lastWatered) {
			t.Errorf("snapshot = %+v", snap)
		}

		if got := h.svc.Watering.Settings().MoistureThreshold; got != 40 {
			t.Errorf("threshold = %v, want 40", got)
		}
	})

	t.Run("stores initial state", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, 30*time.Millisecond)

		if err := h.svc.Watering.Restore(t.Context()); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}

		state, _ := h.store.snapshot()
		if state.DeviceID != "dev-1" || state.WaterLeftML != 1000 || !state.AutoWatering {
			t.Errorf("stored state = %+v", state)
		}
	})
}

func TestTriggerAsync(t *testing.T) {
	t.Parallel()

	t.Run("completes and records", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, 30*time.Millisecond)

		if err := h.svc.Watering.TriggerAsync(t.Context()); err != nil {
			t.Fatalf("TriggerAsync() error = %v", err)
		}

		waitFor(t, func() bool {
			_, sessions := h.store.snapshot()
			return len(sessions) == 1
		})

		state, sessions := h.store.snapshot()
		if sessions[0].Outcome != watering.OutcomeCompleted || !sessions[0].Manual {
			t.Errorf("session = %+v", sessions[0])
		}

		waitFor(t, func() bool {
			state, _ = h.store.snapshot()
			return state.WaterLeftML < 1000
		})

		if math.Abs(state.WaterLeftML-970) > 1e-6 {
			t.Errorf("stored water left = %v, want 970", state.WaterLeftML)
		}
	})

	t.Run("refused when tank empty", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, 30*time.Millisecond)

		if err := h.svc.Watering.SetTankRemaining(t.Context(), 0); err != nil {
			t.Fatalf("SetTankRemaining() error = %v", err)
		}

		if err := h.svc.Watering.TriggerAsync(t.Context()); !errors.Is(err, watering.ErrTankEmpty) {
			t.Errorf("TriggerAsync() error = %v, want ErrTankEmpty", err)
		}
	})

	t.Run("refused after shutdown", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, 30*time.Millisecond)
		h.svc.Watering.shutdown()

		if err := h.svc.Watering.TriggerAsync(t.Context()); !errors.Is(err, ErrShuttingDown) {
			t.Errorf("TriggerAsync() error = %v, want ErrShuttingDown", err)
		}
	})

	t.Run("shutdown cancels the session", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, time.Hour)

		if err := h.svc.Watering.TriggerAsync(t.Context()); err != nil {
			t.Fatalf("TriggerAsync() error = %v", err)
		}

		waitFor(t, h.ctrl.Watering)
		h.svc.Watering.shutdown()

		_, sessions := h.store.snapshot()
		if len(sessions) != 1 || sessions[0].Outcome != watering.OutcomeCancelled {
			t.Fatalf("sessions = %+v, want one cancelled session", sessions)
		}
	})
}

func TestRunEvaluatesAndStops(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 30*time.Millisecond)

	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.svc.Run(ctx)
	}()

	waitFor(t, func() bool {
		h.store.mu.Lock()
		defer h.store.mu.Unlock()

		return h.store.saves > 0
	})

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if snap := h.ctrl.Snapshot(); !snap.HasReading || snap.MoisturePercent != 87.5 {
		t.Errorf("snapshot = %+v, want reading of 87.5%%", snap)
	}
}

func TestUpdateSetting(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 30*time.Millisecond)

	settings, err := h.svc.Watering.UpdateSetting(t.Context(), watering.KeyMaxCycles, "5")
	if err != nil {
		t.Fatalf("UpdateSetting() error = %v", err)
	}

	if settings.MaxCycles != 5 || len(h.store.overrides) != 1 {
		t.Errorf("MaxCycles = %d, overrides = %v", settings.MaxCycles, h.store.overrides)
	}

	if _, err := h.svc.Watering.UpdateSetting(t.Context(), watering.KeyMaxCycles, "0"); !errors.Is(err, watering.ErrInvalidSetting) {
		t.Errorf("UpdateSetting(0) error = %v, want ErrInvalidSetting", err)
	}

	if len(h.store.overrides) != 1 {
		t.Error("invalid setting was persisted")
	}
}

func TestToggleAndTank(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 30*time.Millisecond)
	ctx := t.Context()

	enabled, err := h.svc.Watering.ToggleAuto(ctx)
	if err != nil || enabled {
		t.Fatalf("ToggleAuto() = %v, %v", enabled, err)
	}

	if err := h.svc.Watering.SetTankRemaining(ctx, -1); !errors.Is(err, watering.ErrInvalidSetting) {
		t.Errorf("SetTankRemaining(-1) error = %v", err)
	}

	if err := h.svc.Watering.SetTankRemaining(ctx, 250); err != nil {
		t.Fatal(err)
	}

	if err := h.svc.Watering.ResetTank(ctx); err != nil {
		t.Fatal(err)
	}

	state, _ := h.store.snapshot()
	if state.WaterLeftML != 1000 || state.AutoWatering {
		t.Errorf("stored state = %+v", state)
	}
}

func TestTelemetryPublish(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 30*time.Millisecond)

	if err := h.svc.Telemetry.Publish(t.Context()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(h.pub.messages) != 2 {
		t.Fatalf("published %d messages, want 2", len(h.pub.messages))
	}

	want := []published{
		{operationID: mqtttypes.OpPublishWateringState, topic: "growmat/dev-1/watering"},
		{operationID: mqtttypes.OpPublishDeviceStatus, topic: "growmat/dev-1/status"},
	}

	for i, w := range want {
		if got := h.pub.messages[i]; got.operationID != w.operationID || got.topic != w.topic {
			t.Errorf("message %d = %s %s, want %s %s", i, got.operationID, got.topic, w.operationID, w.topic)
		}
	}

	h.pub.connected = false

	if err := h.svc.Telemetry.Publish(t.Context()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() offline error = %v, want ErrNotConnected", err)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 30*time.Millisecond)
	h.store.pingErr = errors.New("down")
	h.pub.connected = false

	if got := h.svc.Core.Health(t.Context()); got.Database || got.MQTT {
		t.Errorf("Health() = %+v, want both down", got)
	}

	if status := h.svc.Core.DeviceStatus(); status.DeviceID != "dev-1" || status.Version != "v-test" {
		t.Errorf("DeviceStatus() = %+v", status)
	}
}

type fakeMonitor struct {
	reading environment.Reading
	err     error
}

func (m *fakeMonitor) Read(context.Context) (environment.Reading, error) {
	return m.reading, m.err
}

func (m *fakeMonitor) Extremes() (environment.Extremes, bool) {
	return environment.Extremes{MinTemperatureC: 18, MaxTemperatureC: m.reading.TemperatureC}, true
}

type recordingObserver struct {
	mu           sync.Mutex
	environments []environment.Reading
}

func (o *recordingObserver) ObserveResult(watering.Result)     {}
func (o *recordingObserver) ObserveSession(watering.Session)   {}
func (o *recordingObserver) ObserveSnapshot(watering.Snapshot) {}

func (o *recordingObserver) ObserveEnvironment(r environment.Reading) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.environments = append(o.environments, r)
}

func TestEnvironmentTelemetry(t *testing.T) {
	t.Parallel()

	stable := environment.Reading{TemperatureC: 23.5, HumidityPct: 60, HeaterStable: true}

	tests := []struct {
		name    string
		monitor *fakeMonitor
		wantOps []string
	}{
		{
			name:    "stable heater",
			monitor: &fakeMonitor{reading: stable},
			wantOps: []string{mqtttypes.OpPublishWateringState, mqtttypes.OpPublishEnvironmentState, mqtttypes.OpPublishDeviceStatus},
		},
		{
			name:    "heater warming up",
			monitor: &fakeMonitor{reading: environment.Reading{TemperatureC: 23.5}},
			wantOps: []string{mqtttypes.OpPublishWateringState, mqtttypes.OpPublishDeviceStatus},
		},
		{
			name:    "sensor failure",
			monitor: &fakeMonitor{err: errors.New("i2c nack")},
			wantOps: []string{mqtttypes.OpPublishWateringState, mqtttypes.OpPublishDeviceStatus},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			obs := &recordingObserver{}
			h := newHarness(t, 30*time.Millisecond, func(o *Options) {
				o.Environment = tt.monitor
				o.Observer = obs
			})

			if err := h.svc.Telemetry.Publish(t.Context()); err != nil {
				t.Fatalf("Publish() error = %v", err)
			}

			if len(h.pub.messages) != len(tt.wantOps) {
				t.Fatalf("published %d messages, want %d", len(h.pub.messages), len(tt.wantOps))
			}

			for i, op := range tt.wantOps {
				if got := h.pub.messages[i].operationID; got != op {
					t.Errorf("message %d = %s, want %s", i, got, op)
				}
			}

			if tt.monitor.err == nil && len(obs.environments) != 1 {
				t.Errorf("observed %d environment readings, want 1", len(obs.environments))
			}
		})
	}
}

func TestEnvironmentState(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 30*time.Millisecond)

	if _, err := h.svc.Environment.State(t.Context()); !errors.Is(err, ErrNoEnvironmentSensor) {
		t.Errorf("State() without sensor error = %v, want %v", err, ErrNoEnvironmentSensor)
	}

	h = newHarness(t, 30*time.Millisecond, func(o *Options) {
		o.Environment = &fakeMonitor{reading: environment.Reading{TemperatureC: 23.456, Pressure: environment.PressureFair}}
	})

	state, err := h.svc.Environment.State(t.Context())
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}

	if state.DeviceID != "dev-1" || state.TemperatureC != 23.46 || state.PressureDescription != "fair" || state.MaxTemperatureC != 23.46 {
		t.Errorf("State() = %+v", state)
	}
}
