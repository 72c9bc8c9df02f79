package mqtt

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// validateTopicPattern validates an MQTT topic pattern with {param} placeholders.
// Valid patterns:
// - Parameters must be in {paramName} format (e.g., growmat/{deviceID}/watering)
// - Parameter names must start with a letter and contain only alphanumeric characters and underscores
// - Wildcards '+' and '#' are NOT supported for explicitness.
func validateTopicPattern(topic string) error {
	if topic == "" {
		return errors.New("topic cannot be empty")
	}

	if strings.HasPrefix(topic, "/") {
		return errors.New("leading slash is not allowed")
	}

	if strings.HasSuffix(topic, "/") {
		return errors.New("trailing slash is not allowed")
	}

	for segment := range strings.SplitSeq(topic, "/") {
		if segment == "" {
			return errors.New("empty segments are not allowed")
		}

		if strings.Contains(segment, "#") {
			return errors.New("multi-level wildcard '#' is not supported - use explicit parameters {param} instead")
		}

		if strings.Contains(segment, "+") {
			return errors.New("wildcard '+' is not supported - use parameter syntax {param} instead")
		}

		if name, ok := paramName(segment); ok {
			if !isValidParameterName(name) {
				return fmt.Errorf("invalid parameter name '%s' - must start with a letter and contain only alphanumeric characters and underscores", name)
			}
		} else if strings.ContainsAny(segment, "{}") {
			return errors.New("invalid parameter syntax - use {paramName} format")
		}
	}

	return nil
}

func paramName(segment string) (string, bool) {
	if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
		return segment[1 : len(segment)-1], true
	}

	return "", false
}

func isValidParameterName(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		isLetter := r < unicode.MaxASCII && unicode.IsLetter(r)
		if i == 0 && !isLetter {
			return false
		}

		if !isLetter && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

// topicParams returns the parameter names of a validated pattern, in order.
func topicParams(topic string) []string {
	var names []string

	for segment := range strings.SplitSeq(topic, "/") {
		if name, ok := paramName(segment); ok {
			names = append(names, name)
		}
	}

	return names
}

// convertTopicToMQTT converts a parameterized topic (growmat/{deviceID}/watering)
// to an MQTT wildcard pattern (growmat/+/watering).
func convertTopicToMQTT(topic string) string {
	segments := strings.Split(topic, "/")
	for i, segment := range segments {
		if _, ok := paramName(segment); ok {
			segments[i] = "+"
		}
	}

	return strings.Join(segments, "/")
}

// ExpandTopic fills the {param} placeholders of pattern. Every placeholder must be provided
// and values may not contain MQTT separators or wildcards.
func ExpandTopic(pattern string, params map[string]string) (string, error) {
	segments := strings.Split(pattern, "/")

	for i, segment := range segments {
		name, ok := paramName(segment)
		if !ok {
			continue
		}

		value, ok := params[name]
		if !ok || value == "" {
			return "", fmt.Errorf("missing value for topic parameter %s", name)
		}

		if strings.ContainsAny(value, "/+#") {
			return "", fmt.Errorf("invalid value %q for topic parameter %s", value, name)
		}

		segments[i] = value
	}

	return strings.Join(segments, "/"), nil
}

// TopicParam extracts the value of parameter name from a concrete topic matching pattern.
func TopicParam(pattern, topic, name string) (string, bool) {
	patternSegments := strings.Split(pattern, "/")
	topicSegments := strings.Split(topic, "/")

	if len(patternSegments) != len(topicSegments) {
		return "", false
	}

	value, found := "", false

	for i, segment := range patternSegments {
		if n, ok := paramName(segment); ok {
			if n == name {
				value, found = topicSegments[i], true
			}

			continue
		}

		if segment != topicSegments[i] {
			return "", false
		}
	}

	return value, found
}

// validateQoS validates a QoS level.
func validateQoS(qos QoS) error {
	if qos != QoSAtMostOnce && qos != QoSAtLeastOnce && qos != QoSExactlyOnce {
		return errors.New("qos must be 0, 1, or 2")
	}

	return nil
}

// validateTopicParameters checks that every topic parameter is documented and vice versa.
func validateTopicParameters(topic string, documented []TopicParameter) error {
	inTopic := map[string]struct{}{}
	for _, name := range topicParams(topic) {
		inTopic[name] = struct{}{}
	}

	seen := map[string]struct{}{}

	for _, p := range documented {
		if p.Name == "" {
			return fmt.Errorf("parameter name required for topic %s", topic)
		}

		if p.Description == "" {
			return fmt.Errorf("parameter description required for %s in topic %s", p.Name, topic)
		}

		if _, ok := inTopic[p.Name]; !ok {
			return fmt.Errorf("documented parameter %s not found in topic", p.Name)
		}

		seen[p.Name] = struct{}{}
	}

	for name := range inTopic {
		if _, ok := seen[name]; !ok {
			return fmt.Errorf("topic parameter %s not documented", name)
		}
	}

	return nil
}

func validatePublicationSpec(spec PublicationSpec) error {
	if spec.OperationID == "" {
		return errors.New("operationID is required")
	}

	if spec.Summary == "" {
		return errors.New("summary is required")
	}

	if spec.Group == "" {
		return errors.New("group is required")
	}

	if spec.MessageType == nil {
		return errors.New("messageType is required")
	}

	return validateQoS(spec.QoS)
}

func validateSubscriptionSpec(spec SubscriptionSpec) error {
	if spec.OperationID == "" {
		return errors.New("operationID is required")
	}

	if spec.Summary == "" {
		return errors.New("summary is required")
	}

	if spec.Group == "" {
		return errors.New("group is required")
	}

	if spec.MessageType == nil {
		return errors.New("messageType is required")
	}

	if spec.Handler == nil {
		return errors.New("handler is required")
	}

	return validateQoS(spec.QoS)
}
