package veil

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/hengadev/veil/providers/awskms"
	"github.com/hengadev/veil/providers/hashicorpvault"
)

// NewCipherFromConfig builds the Cipher selected by the configuration.
//
// The configuration must already be validated; loaders do this on your
// behalf. Provider credentials are resolved here: the AES passphrase and the
// Vault token are read from the environment variables the configuration
// names, and AWS credentials come from the standard SDK chain.
func NewCipherFromConfig(ctx context.Context, cfg *Config) (Cipher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderAES:
		passphrase := os.Getenv(cfg.AES.PassphraseEnv)
		if passphrase == "" {
			return nil, fmt.Errorf("%w: environment variable %s is empty", ErrInvalidConfiguration, cfg.AES.PassphraseEnv)
		}
		salt, err := hex.DecodeString(cfg.AES.Salt)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid salt: %v", ErrInvalidConfiguration, err)
		}
		return NewPassphraseCipher(passphrase, salt, nil)

	case ProviderVault:
		return hashicorpvault.NewTransitCipher(hashicorpvault.Config{
			Address:    cfg.Vault.Address,
			Token:      os.Getenv(cfg.Vault.TokenEnv),
			TransitKey: cfg.Vault.TransitKey,
			MountPath:  cfg.Vault.MountPath,
		})

	case ProviderAWSKMS:
		return awskms.NewKMSCipher(ctx, awskms.Config{
			Region:   cfg.AWSKMS.Region,
			KeyAlias: cfg.AWSKMS.KeyAlias,
		})

	default:
		return nil, fmt.Errorf("%w: unknown provider '%s'", ErrInvalidConfiguration, cfg.Provider)
	}
}
