// Package awskms provides AWS Key Management Service (KMS) integration for
// veil.
//
// KMSCipher implements the veil.Cipher contract by sending each field value
// to KMS for encryption and decryption. KMS caps payloads at 4096 bytes, so
// this provider suits low-volume, short fields; for bulk data, generate a
// wrapped DEK with GenerateWrappedDEK and use veil.NewAESGCMCipher instead.
package awskms

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
)

// ErrKMSUnavailable reports a failed call to the AWS KMS API.
var ErrKMSUnavailable = errors.New("KMS service unavailable")

// kmsClient interface for AWS KMS operations (allows mocking)
type kmsClient interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
}

// KMSCipher implements veil.Cipher using AWS KMS direct encryption.
type KMSCipher struct {
	client   kmsClient
	keyAlias string
}

// Config holds configuration for the AWS KMS cipher.
type Config struct {
	// Region is the AWS region (e.g., "us-east-1").
	// If empty, uses AWS_REGION environment variable or AWS config file.
	Region string

	// KeyAlias is the KMS key identifier: "alias/my-key" or a full ARN.
	KeyAlias string

	// AWSConfig is an optional pre-configured AWS config.
	// If provided, Region is ignored.
	AWSConfig *aws.Config
}

// NewKMSCipher creates a new AWS KMS cipher instance.
//
// Usage:
//
//	// Using default AWS configuration
//	cipher, err := awskms.NewKMSCipher(ctx, awskms.Config{KeyAlias: "alias/veil"})
//
//	// With specific region
//	cipher, err := awskms.NewKMSCipher(ctx, awskms.Config{Region: "us-east-1", KeyAlias: "alias/veil"})
func NewKMSCipher(ctx context.Context, cfg Config) (*KMSCipher, error) {
	if cfg.KeyAlias == "" {
		return nil, fmt.Errorf("key alias cannot be empty")
	}

	var awsConfig aws.Config
	var err error

	if cfg.AWSConfig != nil {
		awsConfig = *cfg.AWSConfig
	} else {
		opts := []func(*awsconfig.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load AWS config: %w", ErrKMSUnavailable, err)
		}
	}

	return &KMSCipher{
		client:   kms.NewFromConfig(awsConfig),
		keyAlias: normalizeAlias(cfg.KeyAlias),
	}, nil
}

// normalizeAlias adds the "alias/" prefix when the identifier is neither an
// ARN nor already prefixed.
func normalizeAlias(alias string) string {
	if len(alias) >= 4 && alias[:4] == "arn:" {
		return alias
	}
	if len(alias) >= 6 && alias[:6] == "alias/" {
		return alias
	}
	return "alias/" + alias
}

// Encrypt sends the plaintext to KMS and returns the base64-encoded
// ciphertext blob.
func (k *KMSCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	result, err := k.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(k.keyAlias),
		Plaintext: []byte(plaintext),
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to encrypt with key %s: %w", ErrKMSUnavailable, k.keyAlias, err)
	}
	return base64.StdEncoding.EncodeToString(result.CiphertextBlob), nil
}

// Decrypt reverses Encrypt. The KMS ciphertext blob embeds the key
// identifier, so no key alias is passed.
func (k *KMSCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("ciphertext is not valid base64: %w", err)
	}
	result, err := k.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: blob,
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to decrypt: %w", ErrKMSUnavailable, err)
	}
	return string(result.Plaintext), nil
}

// GenerateWrappedDEK asks KMS for a fresh 256-bit data encryption key,
// returning both the plaintext key (for veil.NewAESGCMCipher) and the
// KMS-wrapped form (for storage, e.g. in the S3 key store).
func (k *KMSCipher) GenerateWrappedDEK(ctx context.Context) (plaintext, wrapped []byte, err error) {
	result, err := k.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(k.keyAlias),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to generate data key with %s: %w", ErrKMSUnavailable, k.keyAlias, err)
	}
	return result.Plaintext, result.CiphertextBlob, nil
}

// UnwrapDEK decrypts a KMS-wrapped data encryption key.
func (k *KMSCipher) UnwrapDEK(ctx context.Context, wrapped []byte) ([]byte, error) {
	result, err := k.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: wrapped,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unwrap data key: %w", ErrKMSUnavailable, err)
	}
	return result.Plaintext, nil
}
