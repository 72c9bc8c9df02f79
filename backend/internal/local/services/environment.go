package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"growmat/backend/internal/shared/types"
)

// ErrNoEnvironmentSensor is returned when the device has no climate sensors.
var ErrNoEnvironmentSensor = errors.New("no environment sensor configured")

// EnvironmentService exposes the conditioned climate readings.
type EnvironmentService struct {
	l        *slog.Logger
	deviceID string
	mon      EnvironmentMonitor
	obs      Observer
}

// NewEnvironmentService creates the climate service. opts.Environment may be nil.
func NewEnvironmentService(l *slog.Logger, opts Options) *EnvironmentService {
	return &EnvironmentService{
		l:        l.With(slog.String("service", "environment")),
		deviceID: opts.DeviceID,
		mon:      opts.Environment,
		obs:      opts.Observer,
	}
}

// State reads the climate sensors and returns the published view of the reading.
func (s *EnvironmentService) State(ctx context.Context) (types.EnvironmentState, error) {
	if s.mon == nil {
		return types.EnvironmentState{}, ErrNoEnvironmentSensor
	}

	reading, err := s.mon.Read(ctx)
	if err != nil {
		return types.EnvironmentState{}, err
	}

	if s.obs != nil {
		s.obs.ObserveEnvironment(reading)
	}

	extremes, _ := s.mon.Extremes()

	return types.NewEnvironmentState(s.deviceID, reading, extremes, time.Now()), nil
}
