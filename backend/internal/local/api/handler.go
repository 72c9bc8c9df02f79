package api

import (
	"context"
	"log/slog"
	"net/http"

	localservices "growmat/backend/internal/local/services"
	"growmat/backend/internal/shared/types"
	"growmat/backend/internal/store"
	"growmat/backend/internal/watering"
	"growmat/backend/pkg/mqtt"
	"growmat/backend/pkg/router"
)

const (
	CoreGroup        = "Core"
	WateringGroup    = "Watering"
	EnvironmentGroup = "Environment"
)

// CoreService reports device health and status.
type CoreService interface {
	Health(ctx context.Context) localservices.HealthStatus
	DeviceStatus() types.DeviceStatus
}

// WateringService is the watering API backend.
type WateringService interface {
	TriggerAsync(ctx context.Context) error
	ToggleAuto(ctx context.Context) (bool, error)
	ResetTank(ctx context.Context) error
	SetTankRemaining(ctx context.Context, ml float64) error
	UpdateSetting(ctx context.Context, key, value string) (watering.Settings, error)
	Snapshot() watering.Snapshot
	Settings() watering.Settings
	Sessions(ctx context.Context, limit int) ([]store.SessionRecord, error)
}

// EnvironmentService reads the climate sensors.
type EnvironmentService interface {
	State(ctx context.Context) (types.EnvironmentState, error)
}

// Options holds the handler dependencies.
type Options struct {
	DeviceID    string
	Core        CoreService
	Watering    WateringService
	Environment EnvironmentService
	// Operations lists the registered MQTT operations. Optional.
	Operations func() []mqtt.OperationInfo
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// Handler represents the local API handler.
type Handler struct {
	l    *slog.Logger
	opts Options
	rb   *router.RouteBuilder
}

// NewHandler creates a new local API handler.
func NewHandler(l *slog.Logger, opts Options) *Handler {
	return &Handler{
		l:    l.With(slog.String("component", "localapi")),
		opts: opts,
	}
}

// Register registers every route of the local API.
func (h *Handler) Register(rb *router.RouteBuilder) {
	h.rb = rb

	rb.Route("/api", func(rb *router.RouteBuilder) {
		h.RegisterPing("/ping", rb)
		h.RegisterHealth("/health", rb)
		h.RegisterSystem("/system", rb)

		rb.Route("/watering", func(rb *router.RouteBuilder) {
			h.RegisterWateringState("/", rb)
			h.RegisterTrigger("/trigger", rb)
			h.RegisterToggleAuto("/auto/toggle", rb)
			h.RegisterResetTank("/tank/reset", rb)
			h.RegisterSetTank("/tank", rb)
			h.RegisterGetSettings("/settings", rb)
			h.RegisterUpdateSetting("/settings", rb)
			h.RegisterSessions("/sessions", rb)
		})

		h.RegisterEnvironment("/environment", rb)
	})

	if h.opts.Metrics != nil {
		rb.Mount("/metrics", h.opts.Metrics)
	}
}
