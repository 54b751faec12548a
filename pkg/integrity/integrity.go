// Package integrity binds a session's anchor location and id to a digest that
// travels in the QR payload, so tampering with either can be detected.
package integrity

import (
	"math"
	"strconv"
	"strings"

	"github.com/benmeehan/geo-attendance/pkg/location"
)

// Supported hasher modes.
const (
	ModeLegacy = "legacy"
	ModeHMAC   = "hmac"
)

// DefaultLegacySecret is the shared secret used by legacy payloads when none is configured.
const DefaultLegacySecret = "attendance-secret"

// Hasher computes the integrity digest for a session anchor.
type Hasher interface {
	Hash(anchor location.Reading, sessionID string) string
	Mode() string
}

// canonicalFields renders "<lat>,<lng>,<sessionId>" with coordinates in their
// shortest decimal form.
func canonicalFields(anchor location.Reading, sessionID string) string {
	var b strings.Builder
	b.WriteString(formatCoordinate(anchor.Latitude))
	b.WriteByte(',')
	b.WriteString(formatCoordinate(anchor.Longitude))
	b.WriteByte(',')
	b.WriteString(sessionID)
	return b.String()
}

// formatCoordinate renders v the way a JavaScript Number converts to a
// string. Coordinates never reach 1e21, so only the small-magnitude
// exponent form needs handling.
func formatCoordinate(v float64) string {
	if v == 0 {
		// collapses -0
		return "0"
	}
	if math.Abs(v) >= 1e-6 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	// Go writes "1e-07"; JavaScript writes "1e-7".
	s := strconv.FormatFloat(v, 'e', -1, 64)
	mantissa, exponent, _ := strings.Cut(s, "e")
	sign := exponent[:1]
	digits := strings.TrimLeft(exponent[1:], "0")
	return mantissa + "e" + sign + digits
}
