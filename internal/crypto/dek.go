package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// KeySize is the AES-256 key size used for all data encryption keys.
const KeySize = 32

// GenerateKey generates a new random data encryption key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// ValidateKey checks that key is usable for AES-256.
func ValidateKey(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("invalid key length: expected %d bytes, got %d", KeySize, len(key))
	}
	allZero := true
	for _, b := range key {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return fmt.Errorf("key appears to be uninitialized (all zeros)")
	}
	return nil
}
