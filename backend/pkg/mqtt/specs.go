package mqtt

import (
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// QoS represents MQTT quality of service levels.
type QoS byte

const (
	// QoSAtMostOnce means the message is delivered at most once, or it may not be delivered at all.
	QoSAtMostOnce QoS = 0
	// QoSAtLeastOnce means the message is always delivered at least once.
	QoSAtLeastOnce QoS = 1
	// QoSExactlyOnce means the message is always delivered exactly once.
	QoSExactlyOnce QoS = 2
)

// TopicParameter describes a parameter in an MQTT topic pattern.
type TopicParameter struct {
	Name        string // Name is the parameter name (e.g., "deviceID")
	Description string // Description explains what this parameter represents
}

// PublicationSpec describes an MQTT publication operation.
type PublicationSpec struct {
	OperationID     string           // OperationID is a unique identifier for this publication (e.g., "publishWateringState").
	Topic           string           // Topic is the parameterized pattern (e.g., growmat/{deviceID}/watering). Set on registration.
	TopicMQTT       string           // TopicMQTT is the MQTT wildcard format (e.g., growmat/+/watering). Set on registration.
	Summary         string           // Summary is a short description of the publication.
	Group           string           // Group is a logical grouping for the publication (e.g., "Telemetry").
	TopicParameters []TopicParameter // TopicParameters describes the parameters in the topic pattern.
	MessageType     any              // MessageType is the Go type of the published payload.
	QoS             QoS              // QoS is the quality of service level for this publication.
	Retained        bool             // Retained indicates whether the broker keeps the last message.
}

// SubscriptionSpec describes an MQTT subscription operation.
type SubscriptionSpec struct {
	OperationID     string                  // OperationID is a unique identifier for this subscription (e.g., "controlWatering").
	Topic           string                  // Topic is the parameterized pattern. Set on registration.
	TopicMQTT       string                  // TopicMQTT is the MQTT wildcard format. Set on registration.
	Summary         string                  // Summary is a short description of the subscription.
	Group           string                  // Group is a logical grouping for the subscription (e.g., "Control").
	TopicParameters []TopicParameter        // TopicParameters describes the parameters in the topic pattern.
	MessageType     any                     // MessageType is the Go type of messages received on this subscription.
	Handler         pahomqtt.MessageHandler // Handler is called for every received message.
	QoS             QoS                     // QoS is the quality of service level for this subscription.
}

// OperationInfo is the catalog entry of a registered operation.
type OperationInfo struct {
	OperationID string `json:"operationId"`
	Kind        string `json:"kind"`
	Topic       string `json:"topic"`
	Summary     string `json:"summary"`
	Group       string `json:"group"`
	QoS         QoS    `json:"qos"`
	Retained    bool   `json:"retained"`
}
