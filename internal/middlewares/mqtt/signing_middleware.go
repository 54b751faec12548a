package mqtt_middleware

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/benmeehan/geo-attendance/pkg/encryption"
	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// ErrNoNextMiddleware is returned when the signing middleware is used outside a chain.
var ErrNoNextMiddleware = errors.New("signing middleware has no next middleware")

// SigningMiddleware appends an HMAC signature to every outbound payload and
// verifies and strips signatures on inbound messages. Messages that fail
// verification are dropped before they reach the subscriber.
type SigningMiddleware struct {
	next   MQTTMiddleware
	signer encryption.SignerInterface
	logger zerolog.Logger
}

// NewSigningMiddleware creates a new signing middleware instance.
func NewSigningMiddleware(signer encryption.SignerInterface, logger zerolog.Logger) *SigningMiddleware {
	return &SigningMiddleware{
		signer: signer,
		logger: logger,
	}
}

// SetNext sets the next middleware in the chain.
func (m *SigningMiddleware) SetNext(next MQTTMiddleware) {
	m.next = next
}

// Init checks that a signer is configured.
func (m *SigningMiddleware) Init(_ interface{}) error {
	if m.signer == nil {
		return errors.New("signing middleware requires a signer")
	}
	return nil
}

// Publish signs the payload and forwards it.
func (m *SigningMiddleware) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	if m.next == nil {
		return ErrNoNextMiddleware
	}

	raw, err := payloadBytes(payload)
	if err != nil {
		return err
	}

	signed, err := m.signer.SignPayload(raw)
	if err != nil {
		m.logger.Error().Err(err).Str("topic", topic).Msg("Failed to sign payload")
		return fmt.Errorf("failed to sign payload: %w", err)
	}

	m.logger.Debug().Str("topic", topic).Msg("Publishing signed message")
	return m.next.Publish(topic, qos, retained, signed)
}

// Subscribe wraps callback so that it only sees verified payloads.
func (m *SigningMiddleware) Subscribe(topic string, qos byte, callback mqttLib.MessageHandler) error {
	if m.next == nil {
		return ErrNoNextMiddleware
	}

	verified := func(client mqttLib.Client, msg mqttLib.Message) {
		payload, ok := m.signer.VerifyPayloadSignature(msg.Payload())
		if !ok {
			m.logger.Warn().Str("topic", msg.Topic()).Msg("Dropping message with invalid signature")
			return
		}
		callback(client, &verifiedMessage{Message: msg, payload: payload})
	}
	return m.next.Subscribe(topic, qos, verified)
}

// Unsubscribe forwards to the next middleware.
func (m *SigningMiddleware) Unsubscribe(topics ...string) error {
	if m.next == nil {
		return ErrNoNextMiddleware
	}
	return m.next.Unsubscribe(topics...)
}

// verifiedMessage replaces the payload of an inbound message with its
// signature-stripped content.
type verifiedMessage struct {
	mqttLib.Message
	payload []byte
}

func (v *verifiedMessage) Payload() []byte {
	return v.payload
}

func payloadBytes(payload interface{}) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case string:
		return []byte(p), nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize payload: %w", err)
		}
		return data, nil
	}
}
