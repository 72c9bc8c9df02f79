package services

import (
	"context"
	"log/slog"
	"time"

	"growmat/backend/internal/shared/types"
	"growmat/backend/pkg/utils"
)

// CoreService handles health and system information.
type CoreService struct {
	l        *slog.Logger
	deviceID string
	version  string
	store    StateStore
	mqtt     Publisher
	sup      StatusSource
}

// NewCoreService creates a new core service instance.
func NewCoreService(l *slog.Logger, opts Options) *CoreService {
	return &CoreService{
		l:        l.With(slog.String("service", "core")),
		deviceID: opts.DeviceID,
		version:  opts.Version,
		store:    opts.Store,
		mqtt:     opts.Publisher,
		sup:      opts.Supervisor,
	}
}

// HealthStatus represents the health status of local services.
type HealthStatus struct {
	Database bool
	MQTT     bool
}

// Health checks the health of the state store and the MQTT connection.
func (s *CoreService) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Database: true,
		MQTT:     true,
	}

	if err := s.store.Ping(ctx); err != nil {
		s.l.Error("database unreachable", utils.ErrAttr(err))

		status.Database = false
	}

	if !s.mqtt.IsConnected() {
		s.l.Error("mqtt broker unreachable")

		status.MQTT = false
	}

	return status
}

// DeviceStatus returns the supervisor status of the device.
func (s *CoreService) DeviceStatus() types.DeviceStatus {
	return types.NewDeviceStatus(s.deviceID, s.version, s.sup.Status(), time.Now())
}
