package location

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Reading is a point-in-time location measurement produced by a Provider.
type Reading struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy"` // radius of uncertainty reported by the source
	CapturedAt     time.Time `json:"-"`        // epoch milliseconds on the wire

	// Informational only, never used for validation.
	Altitude          *float64 `json:"altitude,omitempty"`
	HeadingDegrees    *float64 `json:"heading,omitempty"`
	SpeedMetersPerSec *float64 `json:"speed,omitempty"`

	IsFallback bool `json:"is_fallback,omitempty"`
}

// HasTimestamp reports whether the reading carries a capture time.
func (r Reading) HasTimestamp() bool {
	return !r.CapturedAt.IsZero()
}

// ValidCoordinates reports whether latitude and longitude are finite and within WGS-84 bounds.
func (r Reading) ValidCoordinates() bool {
	if math.IsNaN(r.Latitude) || math.IsNaN(r.Longitude) {
		return false
	}
	return r.Latitude >= -90 && r.Latitude <= 90 && r.Longitude >= -180 && r.Longitude <= 180
}

// Age returns how long before now the reading was captured.
func (r Reading) Age(now time.Time) time.Duration {
	return now.Sub(r.CapturedAt)
}

// readingJSON is the wire form of Reading.
type readingJSON struct {
	Latitude          float64         `json:"latitude"`
	Longitude         float64         `json:"longitude"`
	AccuracyMeters    float64         `json:"accuracy"`
	CapturedAt        json.RawMessage `json:"captured_at,omitempty"`
	Altitude          *float64        `json:"altitude,omitempty"`
	HeadingDegrees    *float64        `json:"heading,omitempty"`
	SpeedMetersPerSec *float64        `json:"speed,omitempty"`
	IsFallback        bool            `json:"is_fallback,omitempty"`
}

// MarshalJSON encodes CapturedAt as epoch milliseconds and omits it when unset.
func (r Reading) MarshalJSON() ([]byte, error) {
	out := readingJSON{
		Latitude:          r.Latitude,
		Longitude:         r.Longitude,
		AccuracyMeters:    r.AccuracyMeters,
		Altitude:          r.Altitude,
		HeadingDegrees:    r.HeadingDegrees,
		SpeedMetersPerSec: r.SpeedMetersPerSec,
		IsFallback:        r.IsFallback,
	}
	if r.HasTimestamp() {
		out.CapturedAt = json.RawMessage(fmt.Sprintf("%d", r.CapturedAt.UnixMilli()))
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts captured_at as epoch milliseconds or an RFC 3339 string.
// A missing, null or zero value leaves CapturedAt unset.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var in readingJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	var capturedAt time.Time
	raw := bytes.TrimSpace(in.CapturedAt)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &capturedAt); err != nil {
			return fmt.Errorf("invalid captured_at: %w", err)
		}
	default:
		var ms int64
		if err := json.Unmarshal(raw, &ms); err != nil {
			return fmt.Errorf("invalid captured_at: %w", err)
		}
		if ms != 0 {
			capturedAt = time.UnixMilli(ms).UTC()
		}
	}

	*r = Reading{
		Latitude:          in.Latitude,
		Longitude:         in.Longitude,
		AccuracyMeters:    in.AccuracyMeters,
		CapturedAt:        capturedAt,
		Altitude:          in.Altitude,
		HeadingDegrees:    in.HeadingDegrees,
		SpeedMetersPerSec: in.SpeedMetersPerSec,
		IsFallback:        in.IsFallback,
	}
	return nil
}
