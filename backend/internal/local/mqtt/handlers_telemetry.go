package mqtt

import (
	"growmat/backend/internal/local/mqtt/types"
	sharedtypes "growmat/backend/internal/shared/types"
	"growmat/backend/pkg/mqtt"
)

var deviceIDParameter = mqtt.TopicParameter{
	Name:        "deviceID",
	Description: "Unique identifier of the device",
}

// RegisterWateringStatePublish registers the watering state publication.
func (h *Handler) RegisterWateringStatePublish(mb *mqtt.MQTTBuilder) {
	mb.MustRegisterPublish(types.TopicWateringState, mqtt.PublicationSpec{
		OperationID:     types.OpPublishWateringState,
		Summary:         "Publish watering state",
		Group:           "Telemetry",
		TopicParameters: []mqtt.TopicParameter{deviceIDParameter},
		MessageType:     sharedtypes.WateringState{},
		QoS:             mqtt.QoSAtLeastOnce,
		Retained:        true,
	})
}

// RegisterDeviceStatusPublish registers the device status publication.
// The broker publishes the offline status as last will.
func (h *Handler) RegisterDeviceStatusPublish(mb *mqtt.MQTTBuilder) {
	mb.MustRegisterPublish(types.TopicDeviceStatus, mqtt.PublicationSpec{
		OperationID:     types.OpPublishDeviceStatus,
		Summary:         "Publish device status",
		Group:           "Telemetry",
		TopicParameters: []mqtt.TopicParameter{deviceIDParameter},
		MessageType:     sharedtypes.DeviceStatus{},
		QoS:             mqtt.QoSAtLeastOnce,
		Retained:        true,
	})
}

// RegisterEnvironmentStatePublish registers the climate publication.
func (h *Handler) RegisterEnvironmentStatePublish(mb *mqtt.MQTTBuilder) {
	mb.MustRegisterPublish(types.TopicEnvironmentState, mqtt.PublicationSpec{
		OperationID:     types.OpPublishEnvironmentState,
		Summary:         "Publish grow-house climate once the gas heater is stable",
		Group:           "Telemetry",
		TopicParameters: []mqtt.TopicParameter{deviceIDParameter},
		MessageType:     sharedtypes.EnvironmentState{},
		QoS:             mqtt.QoSAtLeastOnce,
		Retained:        true,
	})
}
