package encryption

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeys(t *testing.T) Keys {
	t.Helper()
	keys, err := DeriveKeys([]byte("0123456789abcdef-master"))
	require.NoError(t, err)
	return keys
}

func TestDeriveKeys(t *testing.T) {
	keys := testKeys(t)

	assert.Len(t, keys.Integrity, 32)
	assert.Len(t, keys.Signing, 32)
	assert.Len(t, keys.Payload, 32)
	assert.False(t, bytes.Equal(keys.Integrity, keys.Signing))
	assert.False(t, bytes.Equal(keys.Signing, keys.Payload))

	again := testKeys(t)
	assert.Equal(t, keys, again)

	_, err := DeriveKeys([]byte("short"))
	assert.Error(t, err)
}

func TestEncryptionManager_RoundTrip(t *testing.T) {
	em, err := NewEncryptionManager(testKeys(t).Payload)
	require.NoError(t, err)

	ciphertext, err := em.Encrypt([]byte("session payload"))
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "session payload")

	plaintext, err := em.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "session payload", string(plaintext))
}

func TestEncryptionManager_Tampered(t *testing.T) {
	em, err := NewEncryptionManager(testKeys(t).Payload)
	require.NoError(t, err)

	ciphertext, err := em.Encrypt([]byte("session payload"))
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0xff

	_, err = em.Decrypt(ciphertext)
	assert.Error(t, err)

	_, err = em.Decrypt([]byte("short"))
	assert.Error(t, err)
}

func TestNewEncryptionManager_BadKey(t *testing.T) {
	_, err := NewEncryptionManager([]byte("too short"))
	assert.EqualError(t, err, "invalid AES key size: got 9 bytes, want 32 bytes")
}

func TestSigner(t *testing.T) {
	signer, err := NewSigner(testKeys(t).Signing)
	require.NoError(t, err)

	signed, err := signer.SignPayload([]byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Len(t, signed, len(`{"a":1}`)+32)

	payload, ok := signer.VerifyPayloadSignature(signed)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(payload))

	signed[0] = '['
	_, ok = signer.VerifyPayloadSignature(signed)
	assert.False(t, ok)

	_, ok = signer.VerifyPayloadSignature([]byte("tiny"))
	assert.False(t, ok)

	_, err = NewSigner(nil)
	assert.Error(t, err)
}
