package crypto

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2Params defines the parameters for Argon2id key derivation
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params returns recommended parameters for Argon2id
func DefaultArgon2Params() *Argon2Params {
	return &Argon2Params{
		Memory:      64 * 1024, // 64MB
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   KeySize,
	}
}

// Validate checks the parameters for values that would weaken or break
// derivation.
func (p *Argon2Params) Validate() error {
	if p.Memory < 8*1024 {
		return fmt.Errorf("argon2 memory must be at least 8MB, got %dKB", p.Memory)
	}
	if p.Iterations == 0 {
		return fmt.Errorf("argon2 iterations must be at least 1")
	}
	if p.Parallelism == 0 {
		return fmt.Errorf("argon2 parallelism must be at least 1")
	}
	if p.SaltLength < 8 {
		return fmt.Errorf("argon2 salt length must be at least 8 bytes, got %d", p.SaltLength)
	}
	if p.KeyLength != KeySize {
		return fmt.Errorf("argon2 key length must be %d bytes for AES-256, got %d", KeySize, p.KeyLength)
	}
	return nil
}

// DeriveKey derives an AES-256 key from a passphrase and salt with Argon2id.
// The same passphrase, salt, and parameters always yield the same key.
func DeriveKey(passphrase string, salt []byte, params *Argon2Params) ([]byte, error) {
	if params == nil {
		params = DefaultArgon2Params()
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid argon2 parameters: %w", err)
	}
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase must not be empty")
	}
	if uint32(len(salt)) < params.SaltLength {
		return nil, fmt.Errorf("salt too short: expected at least %d bytes, got %d", params.SaltLength, len(salt))
	}
	return argon2.IDKey([]byte(passphrase), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength), nil
}
