package veil_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/veil"
)

func TestAESGCMCipherRoundTrip(t *testing.T) {
	ctx := context.Background()
	key, err := veil.GenerateKey()
	require.NoError(t, err)
	cipher, err := veil.NewAESGCMCipher(key)
	require.NoError(t, err)

	tests := []string{
		"hello",
		"",
		"special chars: héllo wörld ✓",
		"a longer value that spans more than one AES block to make sure nothing truncates",
	}

	for _, plaintext := range tests {
		ciphertext, err := cipher.Encrypt(ctx, plaintext)
		require.NoError(t, err)
		if plaintext != "" {
			assert.NotEqual(t, plaintext, ciphertext)
		}

		decrypted, err := cipher.Decrypt(ctx, ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestAESGCMCipherNondeterministic(t *testing.T) {
	ctx := context.Background()
	key, err := veil.GenerateKey()
	require.NoError(t, err)
	cipher, err := veil.NewAESGCMCipher(key)
	require.NoError(t, err)

	first, err := cipher.Encrypt(ctx, "same input")
	require.NoError(t, err)
	second, err := cipher.Encrypt(ctx, "same input")
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "fresh nonce per encryption")
}

func TestAESGCMCipherRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  []byte
	}{
		{name: "nil", key: nil},
		{name: "short", key: make([]byte, 16)},
		{name: "all zeros", key: make([]byte, 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := veil.NewAESGCMCipher(tt.key)
			assert.ErrorIs(t, err, veil.ErrInvalidKey)
		})
	}
}

func TestAESGCMCipherWrongKey(t *testing.T) {
	ctx := context.Background()
	keyA, err := veil.GenerateKey()
	require.NoError(t, err)
	keyB, err := veil.GenerateKey()
	require.NoError(t, err)

	cipherA, err := veil.NewAESGCMCipher(keyA)
	require.NoError(t, err)
	cipherB, err := veil.NewAESGCMCipher(keyB)
	require.NoError(t, err)

	ciphertext, err := cipherA.Encrypt(ctx, "secret")
	require.NoError(t, err)

	_, err = cipherB.Decrypt(ctx, ciphertext)
	assert.ErrorIs(t, err, veil.ErrDecryptionFailed)
}

func TestAESGCMCipherRejectsCorruptCiphertext(t *testing.T) {
	ctx := context.Background()
	key, err := veil.GenerateKey()
	require.NoError(t, err)
	cipher, err := veil.NewAESGCMCipher(key)
	require.NoError(t, err)

	_, err = cipher.Decrypt(ctx, "not base64!!!")
	assert.ErrorIs(t, err, veil.ErrDecryptionFailed)

	_, err = cipher.Decrypt(ctx, "dG9vc2hvcnQ=")
	assert.ErrorIs(t, err, veil.ErrDecryptionFailed)
}

func TestPassphraseCipherDerivesStableKey(t *testing.T) {
	ctx := context.Background()
	salt := []byte("0123456789abcdef")

	first, err := veil.NewPassphraseCipher("correct horse battery staple", salt, nil)
	require.NoError(t, err)
	second, err := veil.NewPassphraseCipher("correct horse battery staple", salt, nil)
	require.NoError(t, err)

	ciphertext, err := first.Encrypt(ctx, "hello")
	require.NoError(t, err)
	decrypted, err := second.Decrypt(ctx, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "hello", decrypted, "same passphrase and salt must derive the same key")
}

func TestPassphraseCipherRejectsEmptyPassphrase(t *testing.T) {
	_, err := veil.NewPassphraseCipher("", []byte("0123456789abcdef"), nil)
	assert.ErrorIs(t, err, veil.ErrInvalidKey)
}

func TestStaticCipherRoundTrip(t *testing.T) {
	ctx := context.Background()
	cipher := veil.NewStaticCipher()

	ciphertext, err := cipher.Encrypt(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "ENC(hello)", ciphertext)

	plaintext, err := cipher.Decrypt(ctx, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "hello", plaintext)

	_, err = cipher.Decrypt(ctx, "plain value")
	assert.ErrorIs(t, err, veil.ErrDecryptionFailed)
}
