package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtttypes "growmat/backend/internal/local/mqtt/types"
	"growmat/backend/internal/shared/types"
	"growmat/backend/internal/watering"
	"growmat/backend/pkg/mqtt"
	"growmat/backend/pkg/utils"
)

// DefaultTelemetryInterval is used when no positive interval is configured.
const DefaultTelemetryInterval = 30 * time.Second

// ErrNotConnected is returned by Publish while the MQTT client is offline.
var ErrNotConnected = errors.New("mqtt client not connected")

// TelemetryService publishes the watering state, the climate and the device status.
type TelemetryService struct {
	l        *slog.Logger
	deviceID string
	version  string
	pub      Publisher
	sup      StatusSource
	ctrl     *watering.Controller
	env      *EnvironmentService
	interval time.Duration
	notify   chan struct{}
}

// NewTelemetryService creates the telemetry publisher.
func NewTelemetryService(l *slog.Logger, opts Options, env *EnvironmentService) *TelemetryService {
	interval := opts.TelemetryInterval
	if interval <= 0 {
		interval = DefaultTelemetryInterval
	}

	return &TelemetryService{
		l:        l.With(slog.String("service", "telemetry")),
		deviceID: opts.DeviceID,
		version:  opts.Version,
		pub:      opts.Publisher,
		sup:      opts.Supervisor,
		ctrl:     opts.Controller,
		env:      env,
		interval: interval,
		notify:   make(chan struct{}, 1),
	}
}

// Notify requests a publication outside the regular interval. It never blocks.
func (t *TelemetryService) Notify() {
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// Run publishes on every tick and notification until ctx is done.
func (t *TelemetryService) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-t.notify:
		}

		if err := t.Publish(ctx); err != nil {
			if errors.Is(err, ErrNotConnected) {
				t.l.Debug("skipping telemetry, mqtt offline")
				continue
			}

			t.l.Error("failed to publish telemetry", utils.ErrAttr(err))
		}
	}
}

// Publish sends the watering state, the climate and the device status once.
// The climate is left out while the sensors fail or the gas heater is still warming up.
func (t *TelemetryService) Publish(ctx context.Context) error {
	if !t.pub.IsConnected() {
		return ErrNotConnected
	}

	now := time.Now()
	params := map[string]string{"deviceID": t.deviceID}

	wateringTopic, err := mqtt.ExpandTopic(mqtttypes.TopicWateringState, params)
	if err != nil {
		return err
	}

	statusTopic, err := mqtt.ExpandTopic(mqtttypes.TopicDeviceStatus, params)
	if err != nil {
		return err
	}

	state := types.NewWateringState(t.deviceID, t.ctrl.Snapshot(), now)
	if err := t.pub.Publish(mqtttypes.OpPublishWateringState, wateringTopic, state); err != nil {
		return fmt.Errorf("failed to publish watering state: %w", err)
	}

	if err := t.publishEnvironment(ctx, params); err != nil {
		return err
	}

	status := types.NewDeviceStatus(t.deviceID, t.version, t.sup.Status(), now)
	if err := t.pub.Publish(mqtttypes.OpPublishDeviceStatus, statusTopic, status); err != nil {
		return fmt.Errorf("failed to publish device status: %w", err)
	}

	return nil
}

func (t *TelemetryService) publishEnvironment(ctx context.Context, params map[string]string) error {
	state, err := t.env.State(ctx)
	switch {
	case errors.Is(err, ErrNoEnvironmentSensor):
		return nil
	case err != nil:
		t.l.Warn("skipping environment telemetry", utils.ErrAttr(err))
		return nil
	case !state.HeaterStable:
		t.l.Debug("skipping environment telemetry, gas heater not stable")
		return nil
	}

	topic, err := mqtt.ExpandTopic(mqtttypes.TopicEnvironmentState, params)
	if err != nil {
		return err
	}

	if err := t.pub.Publish(mqtttypes.OpPublishEnvironmentState, topic, state); err != nil {
		return fmt.Errorf("failed to publish environment: %w", err)
	}

	return nil
}
