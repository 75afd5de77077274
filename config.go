package veil

// Config holds the configuration for building a Cipher.
//
// This struct contains only data, no behavior. Configuration can be loaded
// from a YAML file (LoadConfigFromFile), from environment variables
// (LoadConfigFromEnvironment), or constructed in code, then passed to
// NewCipherFromConfig.
//
// Exactly one provider section is consulted, selected by Provider:
//   - "aes":    local AES-256-GCM with a passphrase-derived key
//   - "vault":  HashiCorp Vault Transit Engine
//   - "awskms": AWS KMS direct encryption
//
// Example usage:
//
//	cfg, err := veil.LoadConfigFromFile("veil.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cipher, err := veil.NewCipherFromConfig(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	coordinator, err := veil.New(cipher)
type Config struct {
	// Provider selects the cipher implementation: "aes", "vault", or "awskms".
	Provider string `yaml:"provider"`

	// AES configures the local AES-GCM provider.
	AES AESConfig `yaml:"aes"`

	// Vault configures the HashiCorp Vault Transit provider.
	Vault VaultConfig `yaml:"vault"`

	// AWSKMS configures the AWS KMS provider.
	AWSKMS AWSKMSConfig `yaml:"awskms"`
}

// AESConfig configures the passphrase-derived AES-GCM cipher.
type AESConfig struct {
	// PassphraseEnv names the environment variable holding the passphrase.
	// The passphrase itself never appears in configuration files.
	PassphraseEnv string `yaml:"passphrase_env"`

	// Salt is the hex-encoded derivation salt (at least 16 bytes decoded).
	// It must stay stable for the lifetime of the encrypted data.
	Salt string `yaml:"salt"`
}

// VaultConfig configures the Vault Transit cipher.
type VaultConfig struct {
	// Address is the Vault server address, e.g. "https://vault:8200".
	// Falls back to the VAULT_ADDR environment variable when empty.
	Address string `yaml:"address"`

	// TokenEnv names the environment variable holding the Vault token.
	// Default: VAULT_TOKEN.
	TokenEnv string `yaml:"token_env"`

	// TransitKey is the name of the Transit Engine key to encrypt with.
	TransitKey string `yaml:"transit_key"`

	// MountPath is the Transit Engine mount path. Default: transit.
	MountPath string `yaml:"mount_path"`
}

// AWSKMSConfig configures the AWS KMS cipher.
type AWSKMSConfig struct {
	// Region is the AWS region hosting the key, e.g. "us-east-1".
	Region string `yaml:"region"`

	// KeyAlias is the KMS key identifier: "alias/my-key" or a full ARN.
	KeyAlias string `yaml:"key_alias"`
}

const (
	ProviderAES    = "aes"
	ProviderVault  = "vault"
	ProviderAWSKMS = "awskms"

	defaultVaultTokenEnv  = "VAULT_TOKEN"
	defaultVaultMountPath = "transit"
)

// applyDefaults fills optional fields with their documented defaults.
func (c *Config) applyDefaults() {
	if c.Vault.TokenEnv == "" {
		c.Vault.TokenEnv = defaultVaultTokenEnv
	}
	if c.Vault.MountPath == "" {
		c.Vault.MountPath = defaultVaultMountPath
	}
}
