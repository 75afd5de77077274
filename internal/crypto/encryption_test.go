package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	tests := [][]byte{
		[]byte("hello"),
		{},
		[]byte("longer payload spanning multiple AES blocks to exercise the stream"),
	}

	for _, plaintext := range tests {
		sealed, err := Seal(key, plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, sealed)

		opened, err := Open(key, sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	sealed, err := Seal(key, []byte("payload"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xFF
	_, err = Open(key, sealed)
	assert.Error(t, err)
}

func TestOpenRejectsShortCiphertext(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	_, err = Open(key, []byte("short"))
	assert.Error(t, err)
}

func TestSealRejectsBadKey(t *testing.T) {
	_, err := Seal([]byte("too-short"), []byte("payload"))
	assert.Error(t, err)
}

func TestGenerateKey(t *testing.T) {
	first, err := GenerateKey()
	require.NoError(t, err)
	second, err := GenerateKey()
	require.NoError(t, err)

	assert.Len(t, first, KeySize)
	assert.NotEqual(t, first, second)
	assert.NoError(t, ValidateKey(first))
}

func TestValidateKey(t *testing.T) {
	assert.Error(t, ValidateKey(nil))
	assert.Error(t, ValidateKey(make([]byte, 16)))
	assert.Error(t, ValidateKey(make([]byte, KeySize)), "all-zero key is rejected")
}
