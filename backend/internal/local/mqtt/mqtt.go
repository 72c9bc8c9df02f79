package mqtt

import (
	"context"
	"log/slog"

	"growmat/backend/internal/watering"
	"growmat/backend/pkg/mqtt"
)

// WateringControl is the part of the watering service driven by control messages.
type WateringControl interface {
	TriggerAsync(ctx context.Context) error
	ToggleAuto(ctx context.Context) (bool, error)
	ResetTank(ctx context.Context) error
	SetTankRemaining(ctx context.Context, ml float64) error
	UpdateSetting(ctx context.Context, key, value string) (watering.Settings, error)
}

// Handler handles MQTT message processing.
type Handler struct {
	l        *slog.Logger
	deviceID string
	svc      WateringControl
}

// NewMQTTHandler creates a new MQTT handler for the given device.
func NewMQTTHandler(l *slog.Logger, deviceID string, svc WateringControl) *Handler {
	return &Handler{
		l:        l.With(slog.String("component", "mqtt-handler")),
		deviceID: deviceID,
		svc:      svc,
	}
}

// Register registers every publication and subscription of the device.
func (h *Handler) Register(mb *mqtt.MQTTBuilder) {
	h.RegisterWateringStatePublish(mb)
	h.RegisterDeviceStatusPublish(mb)
	h.RegisterEnvironmentStatePublish(mb)
	h.RegisterWateringControlSubscribe(mb)
	h.RegisterConfigControlSubscribe(mb)
}
