package services

import (
	"context"
	"log/slog"
	"time"

	"growmat/backend/internal/environment"
	"growmat/backend/internal/store"
	"growmat/backend/internal/supervisor"
	"growmat/backend/internal/watering"
)

// StateStore persists the restorable device state.
type StateStore interface {
	Ping(ctx context.Context) error
	LoadState(ctx context.Context, deviceID string) (store.DeviceState, bool, error)
	SaveState(ctx context.Context, state store.DeviceState) error
	RecordSession(ctx context.Context, deviceID string, session watering.Session) error
	ListSessions(ctx context.Context, deviceID string, limit int) ([]store.SessionRecord, error)
	SaveSettingOverride(ctx context.Context, deviceID, key, value string) error
	LoadSettingOverrides(ctx context.Context, deviceID string) ([]store.SettingOverride, error)
}

// Publisher sends MQTT publications registered on the builder.
type Publisher interface {
	Publish(operationID string, topic string, payload any) error
	IsConnected() bool
}

// Observer receives watering and climate events, typically for metrics.
type Observer interface {
	ObserveResult(res watering.Result)
	ObserveSession(s watering.Session)
	ObserveSnapshot(s watering.Snapshot)
	ObserveEnvironment(r environment.Reading)
}

// EnvironmentMonitor provides conditioned climate readings.
type EnvironmentMonitor interface {
	Read(ctx context.Context) (environment.Reading, error)
	Extremes() (environment.Extremes, bool)
}

// StatusSource provides the supervisor status.
type StatusSource interface {
	Status() supervisor.Status
}

// Options holds the dependencies of the local services. Observer and Environment are optional.
type Options struct {
	DeviceID          string
	Controller        *watering.Controller
	Store             StateStore
	Publisher         Publisher
	Supervisor        StatusSource
	Observer          Observer
	Environment       EnvironmentMonitor
	TelemetryInterval time.Duration
	Version           string
}

// Services holds all local service instances.
type Services struct {
	l           *slog.Logger
	Core        *CoreService
	Watering    *WateringService
	Environment *EnvironmentService
	Telemetry   *TelemetryService
}

// NewServices creates the local services.
func NewServices(l *slog.Logger, opts Options) *Services {
	env := NewEnvironmentService(l, opts)
	telemetry := NewTelemetryService(l, opts, env)
	wateringSvc := NewWateringService(l, opts, telemetry.Notify)

	return &Services{
		l:           l.With(slog.String("module", "local-services")),
		Core:        NewCoreService(l, opts),
		Watering:    wateringSvc,
		Environment: env,
		Telemetry:   telemetry,
	}
}

// Run starts the watering scheduler and the telemetry loop and blocks until ctx is done.
// Running manual sessions are drained before it returns.
func (s *Services) Run(ctx context.Context) {
	done := make(chan struct{})

	go func() {
		defer close(done)
		s.Telemetry.Run(ctx)
	}()

	s.Watering.Run(ctx)
	<-done

	s.l.Info("services stopped")
}
