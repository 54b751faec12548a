package services

import (
	"encoding/json"
	"fmt"

	mqtt_middleware "github.com/benmeehan/geo-attendance/internal/middlewares/mqtt"
)

// responseTopic returns "<prefix>/response/<requestID>".
func responseTopic(prefix, requestID string) string {
	return fmt.Sprintf("%s/response/%s", prefix, requestID)
}

// recoverRequestID extracts request_id from a payload whose other fields
// failed to decode. It returns "" when the payload is not a JSON object.
func recoverRequestID(payload []byte) string {
	var envelope struct {
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	return envelope.RequestID
}

// publishJSON serializes v and publishes it through the middleware chain.
func publishJSON(mw mqtt_middleware.MQTTMiddleware, topic string, qos int, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}
	if err := mw.Publish(topic, byte(qos), false, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}
