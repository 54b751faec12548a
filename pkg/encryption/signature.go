package encryption

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
)

const signatureSize = sha256.Size

// SignerInterface signs payloads and verifies signed payloads.
type SignerInterface interface {
	SignPayload(payload []byte) ([]byte, error)
	VerifyPayloadSignature(signedPayload []byte) ([]byte, bool)
}

// Signer appends and checks HMAC-SHA256 signatures.
type Signer struct {
	signingKey []byte
}

// NewSigner creates a Signer with the given key.
func NewSigner(signingKey []byte) (*Signer, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("signing key must not be empty")
	}
	return &Signer{signingKey: signingKey}, nil
}

// SignPayload generates an HMAC-SHA256 signature for the given payload using the signing key.
// The signature is appended to a copy of the payload.
func (s *Signer) SignPayload(payload []byte) ([]byte, error) {
	h := hmac.New(sha256.New, s.signingKey)
	h.Write(payload)

	signed := make([]byte, 0, len(payload)+signatureSize)
	signed = append(signed, payload...)
	return h.Sum(signed), nil
}

// VerifyPayloadSignature checks the trailing signature and returns the
// original payload when it is valid.
func (s *Signer) VerifyPayloadSignature(signedPayload []byte) ([]byte, bool) {
	if len(signedPayload) < signatureSize {
		return nil, false
	}

	payload := signedPayload[:len(signedPayload)-signatureSize]
	signature := signedPayload[len(signedPayload)-signatureSize:]

	h := hmac.New(sha256.New, s.signingKey)
	h.Write(payload)

	if !hmac.Equal(signature, h.Sum(nil)) {
		return nil, false
	}
	return payload, true
}
