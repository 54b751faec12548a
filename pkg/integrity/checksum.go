package integrity

import (
	"strconv"
	"unicode/utf16"

	"github.com/benmeehan/geo-attendance/pkg/location"
)

// ComputeIntegrityHash returns the legacy payload checksum: a 32-bit rolling
// hash (h = h*31 + c over UTF-16 code units) of "<lat>,<lng>,<sessionId>,<secret>",
// rendered as the lowercase hex of its absolute value.
//
// This is NOT a cryptographic digest. Anyone who knows the scheme and the
// secret can forge it, and collisions are trivial to find. It exists for
// compatibility with payloads issued by the legacy web client; new sessions
// should use KeyedMAC.
func ComputeIntegrityHash(anchor location.Reading, sessionID, secret string) string {
	data := canonicalFields(anchor, sessionID) + "," + secret

	var hash int32
	for _, unit := range utf16.Encode([]rune(data)) {
		hash = (hash << 5) - hash + int32(unit)
	}

	abs := int64(hash)
	if abs < 0 {
		abs = -abs
	}
	return strconv.FormatInt(abs, 16)
}

// LegacyChecksum is a Hasher backed by ComputeIntegrityHash.
type LegacyChecksum struct {
	secret string
}

// NewLegacyChecksum creates a LegacyChecksum. An empty secret selects DefaultLegacySecret.
func NewLegacyChecksum(secret string) *LegacyChecksum {
	if secret == "" {
		secret = DefaultLegacySecret
	}
	return &LegacyChecksum{secret: secret}
}

func (l *LegacyChecksum) Hash(anchor location.Reading, sessionID string) string {
	return ComputeIntegrityHash(anchor, sessionID, l.secret)
}

func (l *LegacyChecksum) Mode() string { return ModeLegacy }
