package encryption

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF info labels, one per purpose.
const (
	infoIntegrity = "geo-attendance/integrity/v1"
	infoSigning   = "geo-attendance/mqtt-signing/v1"
	infoPayload   = "geo-attendance/qr-payload/v1"
)

// minMasterSecretLen is the shortest master secret accepted by DeriveKeys.
const minMasterSecretLen = 16

// Keys holds the purpose-specific keys derived from the node's master secret.
type Keys struct {
	Integrity []byte // HMAC key for session integrity hashes
	Signing   []byte // HMAC key for MQTT payload signatures
	Payload   []byte // AES-256 key for sealed QR payloads
}

// DeriveKeys expands a master secret into independent 32-byte keys using HKDF-SHA256.
func DeriveKeys(master []byte) (Keys, error) {
	if len(master) < minMasterSecretLen {
		return Keys{}, errors.New("master secret too short")
	}

	derive := func(info string) ([]byte, error) {
		key := make([]byte, keySize)
		if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), key); err != nil {
			return nil, fmt.Errorf("failed to derive %s key: %w", info, err)
		}
		return key, nil
	}

	var keys Keys
	var err error
	if keys.Integrity, err = derive(infoIntegrity); err != nil {
		return Keys{}, err
	}
	if keys.Signing, err = derive(infoSigning); err != nil {
		return Keys{}, err
	}
	if keys.Payload, err = derive(infoPayload); err != nil {
		return Keys{}, err
	}
	return keys, nil
}
