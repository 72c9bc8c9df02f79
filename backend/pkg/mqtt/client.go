package mqtt

import (
	"fmt"
	"time"

	"growmat/backend/pkg/utils"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

type MQTTClient struct {
	client  pahomqtt.Client
	builder *MQTTBuilder
}

// Publish sends payload as JSON to the topic using the publication spec identified by operationID.
// The topic must match the registered pattern.
func (c *MQTTClient) Publish(operationID string, actualTopic string, payload any) error {
	c.builder.mu.RLock()
	pub, ok := c.builder.publications[operationID]
	c.builder.mu.RUnlock()

	if !ok {
		return fmt.Errorf("publication not found for operationID %s", operationID)
	}

	if !topicMatches(pub.Topic, actualTopic) {
		return fmt.Errorf("topic %s does not match pattern %s of operationID %s", actualTopic, pub.Topic, operationID)
	}

	bytes, err := utils.ToJSON(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize payload: %w", err)
	}

	token := c.client.Publish(actualTopic, byte(pub.QoS), pub.Retained, bytes)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out publishing to topic %s", actualTopic)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", actualTopic, err)
	}

	return nil
}

// IsConnected reports whether the client currently has a broker connection.
func (c *MQTTClient) IsConnected() bool {
	return c.builder.connected.Load()
}

func topicMatches(pattern, topic string) bool {
	params := topicParams(pattern)
	if len(params) == 0 {
		return pattern == topic
	}

	_, ok := TopicParam(pattern, topic, params[0])

	return ok
}
