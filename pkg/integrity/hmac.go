package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/benmeehan/geo-attendance/pkg/location"
)

// keyedMACHexLen keeps QR payloads short: 128 bits of HMAC-SHA256.
const keyedMACHexLen = 32

// KeyedMAC is a Hasher computing HMAC-SHA256 over the canonical session fields.
type KeyedMAC struct {
	key []byte
}

// NewKeyedMAC creates a KeyedMAC from a non-empty key.
func NewKeyedMAC(key []byte) (*KeyedMAC, error) {
	if len(key) == 0 {
		return nil, errors.New("integrity key must not be empty")
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &KeyedMAC{key: k}, nil
}

func (k *KeyedMAC) Hash(anchor location.Reading, sessionID string) string {
	mac := hmac.New(sha256.New, k.key)
	mac.Write([]byte(canonicalFields(anchor, sessionID)))
	return hex.EncodeToString(mac.Sum(nil))[:keyedMACHexLen]
}

func (k *KeyedMAC) Mode() string { return ModeHMAC }

// New builds the Hasher for mode. legacySecret is used by ModeLegacy, key by ModeHMAC.
func New(mode, legacySecret string, key []byte) (Hasher, error) {
	switch mode {
	case ModeLegacy:
		return NewLegacyChecksum(legacySecret), nil
	case ModeHMAC, "":
		return NewKeyedMAC(key)
	default:
		return nil, errors.New("unknown integrity mode: " + mode)
	}
}

// Equal compares two digests in constant time.
func Equal(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
