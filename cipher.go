package veil

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/hengadev/veil/internal/crypto"
)

// AESGCMCipher encrypts field values with AES-256-GCM under a fixed data
// encryption key, encoding the sealed bytes as standard base64 so the stored
// representation is a plain string.
type AESGCMCipher struct {
	key []byte
}

// NewAESGCMCipher creates a cipher around a 32-byte key.
//
// Example usage:
//
//	key, err := veil.GenerateKey()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cipher, err := veil.NewAESGCMCipher(key)
func NewAESGCMCipher(key []byte) (*AESGCMCipher, error) {
	if err := crypto.ValidateKey(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	owned := make([]byte, len(key))
	copy(owned, key)
	return &AESGCMCipher{key: owned}, nil
}

// NewPassphraseCipher creates an AES-GCM cipher whose key is derived from a
// passphrase and salt with Argon2id. Intended for development and single-node
// deployments where no KMS is available; the salt must be stored alongside
// the data and reused, or nothing decrypts.
func NewPassphraseCipher(passphrase string, salt []byte, params *crypto.Argon2Params) (*AESGCMCipher, error) {
	key, err := crypto.DeriveKey(passphrase, salt, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &AESGCMCipher{key: key}, nil
}

func (c *AESGCMCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	sealed, err := crypto.Seal(c.key, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *AESGCMCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext is not valid base64: %v", ErrDecryptionFailed, err)
	}
	plaintext, err := crypto.Open(c.key, sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

// GenerateKey generates a new random 32-byte data encryption key suitable for
// NewAESGCMCipher.
func GenerateKey() ([]byte, error) {
	return crypto.GenerateKey()
}
