// Package hashicorpvault provides HashiCorp Vault Transit Engine integration
// for veil.
//
// TransitCipher implements the veil.Cipher contract over the Transit
// Engine's encrypt/decrypt endpoints. Vault ciphertexts are already plain
// strings ("vault:v1:..."), so they are stored verbatim. Key material never
// leaves Vault.
package hashicorpvault

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/hashicorp/vault/api"
)

// ErrVaultUnavailable reports a failed call to the Vault API.
var ErrVaultUnavailable = errors.New("Vault service unavailable")

// TransitCipher implements veil.Cipher using Vault's Transit Engine.
type TransitCipher struct {
	client    *api.Client
	keyName   string
	mountPath string
}

// Config holds configuration for the Vault Transit cipher.
type Config struct {
	// Address is the Vault server address, e.g. "https://vault:8200".
	// Falls back to the VAULT_ADDR environment variable when empty.
	Address string

	// Token authenticates the client. Falls back to VAULT_TOKEN, and to
	// AppRole login when VAULT_ROLE_ID/VAULT_SECRET_ID are set.
	Token string

	// TransitKey is the name of the Transit Engine key to encrypt with.
	TransitKey string

	// MountPath is the Transit Engine mount path. Default: "transit".
	MountPath string
}

// NewTransitCipher creates a new Vault Transit cipher instance.
//
// Usage:
//
//	cipher, err := hashicorpvault.NewTransitCipher(hashicorpvault.Config{
//	    Address:    "https://vault.internal:8200",
//	    TransitKey: "user-service",
//	})
func NewTransitCipher(cfg Config) (*TransitCipher, error) {
	if cfg.TransitKey == "" {
		return nil, fmt.Errorf("transit key name cannot be empty")
	}
	if cfg.MountPath == "" {
		cfg.MountPath = "transit"
	}

	apiConfig := api.DefaultConfig()
	if cfg.Address != "" {
		apiConfig.Address = cfg.Address
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}
	apiConfig.HttpClient.Transport = transport

	client, err := api.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	// Set namespace if using HCP Vault
	if namespace := os.Getenv("VAULT_NAMESPACE"); namespace != "" {
		client.SetNamespace(namespace)
	}

	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	} else if err := loginAppRole(client); err != nil {
		return nil, err
	}

	return &TransitCipher{
		client:    client,
		keyName:   cfg.TransitKey,
		mountPath: cfg.MountPath,
	}, nil
}

// loginAppRole authenticates with AppRole credentials from the environment,
// when present. Without credentials the client falls back to whatever token
// the api package resolved (VAULT_TOKEN, token helper).
func loginAppRole(client *api.Client) error {
	roleID := os.Getenv("VAULT_ROLE_ID")
	secretID := os.Getenv("VAULT_SECRET_ID")
	if roleID == "" || secretID == "" {
		return nil
	}

	data := map[string]interface{}{
		"role_id":   roleID,
		"secret_id": secretID,
	}
	resp, err := client.Logical().Write("auth/approle/login", data)
	if err != nil {
		return fmt.Errorf("failed to login with AppRole: %w", err)
	}
	if resp.Auth == nil {
		return fmt.Errorf("no auth info returned from AppRole login")
	}
	client.SetToken(resp.Auth.ClientToken)
	return nil
}

// EnsureKey creates the transit key if it does not exist yet. Safe to call
// repeatedly; Vault treats key creation as idempotent.
func (t *TransitCipher) EnsureKey(ctx context.Context) error {
	_, err := t.client.Logical().WriteWithContext(ctx,
		fmt.Sprintf("%s/keys/%s", t.mountPath, t.keyName),
		map[string]interface{}{"type": "aes256-gcm96"},
	)
	if err != nil {
		return fmt.Errorf("%w: failed to create transit key '%s': %w", ErrVaultUnavailable, t.keyName, err)
	}
	return nil
}

// Encrypt sends the plaintext to the Transit Engine and returns the
// "vault:vN:..." ciphertext string.
func (t *TransitCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	secret, err := t.client.Logical().WriteWithContext(ctx,
		fmt.Sprintf("%s/encrypt/%s", t.mountPath, t.keyName),
		map[string]interface{}{
			"plaintext": base64.StdEncoding.EncodeToString([]byte(plaintext)),
		},
	)
	if err != nil {
		return "", fmt.Errorf("%w: failed to encrypt with transit key '%s': %w", ErrVaultUnavailable, t.keyName, err)
	}
	ciphertext, ok := secret.Data["ciphertext"].(string)
	if !ok {
		return "", fmt.Errorf("%w: no ciphertext returned from transit encrypt", ErrVaultUnavailable)
	}
	return ciphertext, nil
}

// Decrypt reverses Encrypt via the Transit Engine.
func (t *TransitCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	secret, err := t.client.Logical().WriteWithContext(ctx,
		fmt.Sprintf("%s/decrypt/%s", t.mountPath, t.keyName),
		map[string]interface{}{"ciphertext": ciphertext},
	)
	if err != nil {
		return "", fmt.Errorf("%w: failed to decrypt with transit key '%s': %w", ErrVaultUnavailable, t.keyName, err)
	}
	encoded, ok := secret.Data["plaintext"].(string)
	if !ok {
		return "", fmt.Errorf("%w: no plaintext returned from transit decrypt", ErrVaultUnavailable)
	}
	plaintext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid plaintext encoding from transit decrypt: %w", err)
	}
	return string(plaintext), nil
}

// RotateKey rotates the transit key. Existing ciphertexts remain decryptable;
// new encryptions use the new key version.
func (t *TransitCipher) RotateKey(ctx context.Context) error {
	_, err := t.client.Logical().WriteWithContext(ctx,
		fmt.Sprintf("%s/keys/%s/rotate", t.mountPath, t.keyName), nil)
	if err != nil {
		return fmt.Errorf("%w: failed to rotate key '%s': %w", ErrVaultUnavailable, t.keyName, err)
	}
	return nil
}
