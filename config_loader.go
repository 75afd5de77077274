package veil

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfigFromFile loads and validates configuration from a YAML file.
//
// A .env file in the working directory is loaded first, if present, so that
// the environment variables the configuration refers to (passphrases, Vault
// tokens) are available without exporting them by hand during development.
//
// Example configuration:
//
//	provider: vault
//	vault:
//	  address: https://vault.internal:8200
//	  transit_key: user-service
//
// Returns an error if the file cannot be read, is not valid YAML, or fails
// validation.
func LoadConfigFromFile(path string) (*Config, error) {
	// Best effort; a missing .env file is not an error.
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config file '%s': %v", ErrInvalidConfiguration, path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigFromEnvironment loads configuration from VEIL_* environment
// variables, following the 12-factor methodology.
//
// Recognized variables:
//   - VEIL_PROVIDER: "aes", "vault", or "awskms" (required)
//   - VEIL_AES_PASSPHRASE_ENV, VEIL_AES_SALT
//   - VEIL_VAULT_ADDRESS, VEIL_VAULT_TOKEN_ENV, VEIL_VAULT_TRANSIT_KEY, VEIL_VAULT_MOUNT_PATH
//   - VEIL_AWSKMS_REGION, VEIL_AWSKMS_KEY_ALIAS
//
// A .env file in the working directory is loaded first, if present.
func LoadConfigFromEnvironment() (*Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Provider: os.Getenv("VEIL_PROVIDER"),
		AES: AESConfig{
			PassphraseEnv: os.Getenv("VEIL_AES_PASSPHRASE_ENV"),
			Salt:          os.Getenv("VEIL_AES_SALT"),
		},
		Vault: VaultConfig{
			Address:    os.Getenv("VEIL_VAULT_ADDRESS"),
			TokenEnv:   os.Getenv("VEIL_VAULT_TOKEN_ENV"),
			TransitKey: os.Getenv("VEIL_VAULT_TRANSIT_KEY"),
			MountPath:  os.Getenv("VEIL_VAULT_MOUNT_PATH"),
		},
		AWSKMS: AWSKMSConfig{
			Region:   os.Getenv("VEIL_AWSKMS_REGION"),
			KeyAlias: os.Getenv("VEIL_AWSKMS_KEY_ALIAS"),
		},
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
