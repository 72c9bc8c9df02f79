package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"growmat/backend/internal/local/mqtt/types"
	"growmat/backend/internal/watering"
	"growmat/backend/pkg/mqtt"
	"growmat/backend/pkg/utils"
)

const handlerTimeout = 10 * time.Second

// RegisterWateringControlSubscribe registers the watering control subscription.
func (h *Handler) RegisterWateringControlSubscribe(mb *mqtt.MQTTBuilder) {
	mb.MustRegisterSubscribe(types.TopicWateringControl, mqtt.SubscriptionSpec{
		OperationID:     types.OpControlWatering,
		Summary:         "Trigger watering, toggle automatic mode or adjust the tank",
		Group:           "Control",
		TopicParameters: []mqtt.TopicParameter{deviceIDParameter},
		MessageType:     types.WateringCommand{},
		Handler:         h.handleWateringControl,
		QoS:             mqtt.QoSAtLeastOnce,
	})
}

// RegisterConfigControlSubscribe registers the configuration control subscription.
func (h *Handler) RegisterConfigControlSubscribe(mb *mqtt.MQTTBuilder) {
	mb.MustRegisterSubscribe(types.TopicConfigControl, mqtt.SubscriptionSpec{
		OperationID:     types.OpControlConfig,
		Summary:         "Update a watering setting",
		Group:           "Control",
		TopicParameters: []mqtt.TopicParameter{deviceIDParameter},
		MessageType:     types.ConfigCommand{},
		Handler:         h.handleConfigControl,
		QoS:             mqtt.QoSAtLeastOnce,
	})
}

// forThisDevice reports whether msg was sent to the configured device.
func (h *Handler) forThisDevice(pattern string, msg pahomqtt.Message) bool {
	id, ok := mqtt.TopicParam(pattern, msg.Topic(), "deviceID")

	return ok && id == h.deviceID
}

func (h *Handler) handleWateringControl(_ pahomqtt.Client, msg pahomqtt.Message) {
	if !h.forThisDevice(types.TopicWateringControl, msg) {
		return
	}

	cmd, err := utils.FromJSON[types.WateringCommand](msg.Payload())
	if err != nil {
		h.l.Error("failed to unmarshal watering command", slog.String("topic", msg.Topic()), utils.ErrAttr(err))
		return
	}

	l := h.l.With(slog.String("action", string(cmd.Action)))

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := h.applyWateringCommand(ctx, cmd); err != nil {
		if watering.IsGuardError(err) {
			l.Info("watering command refused", utils.ErrAttr(err))
			return
		}

		l.Error("watering command failed", utils.ErrAttr(err))

		return
	}

	l.Info("watering command applied")
}

func (h *Handler) applyWateringCommand(ctx context.Context, cmd types.WateringCommand) error {
	switch cmd.Action {
	case types.ActionTrigger:
		return h.svc.TriggerAsync(ctx)

	case types.ActionToggleAuto:
		_, err := h.svc.ToggleAuto(ctx)
		return err

	case types.ActionSetAuto:
		if cmd.Value == nil {
			return fmt.Errorf("action %s requires a value", cmd.Action)
		}

		_, err := h.svc.UpdateSetting(ctx, watering.KeyAutoWatering, strconv.FormatBool(*cmd.Value != 0))

		return err

	case types.ActionResetTank:
		return h.svc.ResetTank(ctx)

	case types.ActionSetTank:
		if cmd.Value == nil {
			return fmt.Errorf("action %s requires a value", cmd.Action)
		}

		return h.svc.SetTankRemaining(ctx, *cmd.Value)

	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
}

func (h *Handler) handleConfigControl(_ pahomqtt.Client, msg pahomqtt.Message) {
	if !h.forThisDevice(types.TopicConfigControl, msg) {
		return
	}

	cmd, err := utils.FromJSON[types.ConfigCommand](msg.Payload())
	if err != nil {
		h.l.Error("failed to unmarshal config command", slog.String("topic", msg.Topic()), utils.ErrAttr(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if _, err := h.svc.UpdateSetting(ctx, cmd.Key, cmd.Value); err != nil {
		h.l.Error("config command rejected", slog.String("key", cmd.Key), utils.ErrAttr(err))
		return
	}

	h.l.Info("config command applied", slog.String("key", cmd.Key), slog.String("value", cmd.Value))
}
