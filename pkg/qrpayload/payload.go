// Package qrpayload encodes session descriptors into the compact string that
// lecturers display as a QR code and students scan back.
package qrpayload

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benmeehan/geo-attendance/internal/models"
	"github.com/benmeehan/geo-attendance/pkg/encryption"
	"github.com/benmeehan/geo-attendance/pkg/location"
)

// ErrInvalidPayload is returned for payloads that cannot be decoded.
var ErrInvalidPayload = errors.New("invalid QR payload")

// Payload is the content of a session QR code.
type Payload struct {
	SessionID       string    `json:"sid"`
	Course          string    `json:"course,omitempty"`
	Latitude        float64   `json:"lat"`
	Longitude       float64   `json:"lng"`
	ToleranceMeters int       `json:"tol"`
	Hash            string    `json:"hash"`
	CreatedAt       time.Time `json:"ts"`
}

// FromSession builds the payload for a session.
func FromSession(session models.SessionDescriptor) Payload {
	return Payload{
		SessionID:       session.SessionID,
		Course:          session.Course,
		Latitude:        session.Anchor.Latitude,
		Longitude:       session.Anchor.Longitude,
		ToleranceMeters: session.ToleranceMeters,
		Hash:            session.IntegrityHash,
		CreatedAt:       session.CreatedAt,
	}
}

// Descriptor rebuilds the session descriptor carried by the payload. The
// anchor accuracy and capture time are not part of the code.
func (p Payload) Descriptor() models.SessionDescriptor {
	return models.SessionDescriptor{
		SessionID: p.SessionID,
		Course:    p.Course,
		Anchor: location.Reading{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
		},
		ToleranceMeters: p.ToleranceMeters,
		IntegrityHash:   p.Hash,
		CreatedAt:       p.CreatedAt,
	}
}

// Codec turns payloads into URL-safe strings. With a cipher configured the
// JSON body is sealed before encoding.
type Codec struct {
	cipher encryption.EncryptionManagerInterface
}

// NewCodec creates a Codec. cipher may be nil for plain encoding.
func NewCodec(cipher encryption.EncryptionManagerInterface) *Codec {
	return &Codec{cipher: cipher}
}

// Encode serializes p.
func (c *Codec) Encode(p Payload) (string, error) {
	if p.SessionID == "" {
		return "", fmt.Errorf("%w: missing session id", ErrInvalidPayload)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to serialize QR payload: %w", err)
	}

	if c.cipher != nil {
		data, err = c.cipher.Encrypt(data)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt QR payload: %w", err)
		}
	}

	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a string produced by Encode.
func (c *Codec) Decode(s string) (Payload, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Payload{}, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}

	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if c.cipher != nil {
		data, err = c.cipher.Decrypt(data)
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.SessionID == "" {
		return Payload{}, fmt.Errorf("%w: missing session id", ErrInvalidPayload)
	}
	return p, nil
}
