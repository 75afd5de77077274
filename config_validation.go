package veil

import (
	"encoding/hex"
	"fmt"

	"github.com/hengadev/errsx"
)

// Validate checks the configuration for completeness, collecting every
// problem rather than stopping at the first one.
func (c *Config) Validate() error {
	var errs errsx.Map

	switch c.Provider {
	case ProviderAES:
		c.validateAES(&errs)
	case ProviderVault:
		c.validateVault(&errs)
	case ProviderAWSKMS:
		c.validateAWSKMS(&errs)
	case "":
		errs.Set("provider", fmt.Errorf("%w: provider is required (one of: %s, %s, %s)",
			ErrInvalidConfiguration, ProviderAES, ProviderVault, ProviderAWSKMS))
	default:
		errs.Set("provider", fmt.Errorf("%w: unknown provider '%s' (one of: %s, %s, %s)",
			ErrInvalidConfiguration, c.Provider, ProviderAES, ProviderVault, ProviderAWSKMS))
	}

	return errs.AsError()
}

func (c *Config) validateAES(errs *errsx.Map) {
	if c.AES.PassphraseEnv == "" {
		errs.Set("aes.passphrase_env", fmt.Errorf("%w: passphrase_env is required for the aes provider", ErrInvalidConfiguration))
	}
	if c.AES.Salt == "" {
		errs.Set("aes.salt", fmt.Errorf("%w: salt is required for the aes provider", ErrInvalidConfiguration))
		return
	}
	salt, err := hex.DecodeString(c.AES.Salt)
	if err != nil {
		errs.Set("aes.salt", fmt.Errorf("%w: salt must be hex-encoded: %v", ErrInvalidConfiguration, err))
		return
	}
	if len(salt) < 16 {
		errs.Set("aes.salt", fmt.Errorf("%w: salt must decode to at least 16 bytes, got %d", ErrInvalidConfiguration, len(salt)))
	}
}

func (c *Config) validateVault(errs *errsx.Map) {
	if c.Vault.TransitKey == "" {
		errs.Set("vault.transit_key", fmt.Errorf("%w: transit_key is required for the vault provider", ErrInvalidConfiguration))
	}
}

func (c *Config) validateAWSKMS(errs *errsx.Map) {
	if c.AWSKMS.Region == "" {
		errs.Set("awskms.region", fmt.Errorf("%w: region is required for the awskms provider", ErrInvalidConfiguration))
	}
	if c.AWSKMS.KeyAlias == "" {
		errs.Set("awskms.key_alias", fmt.Errorf("%w: key_alias is required for the awskms provider", ErrInvalidConfiguration))
	}
}
