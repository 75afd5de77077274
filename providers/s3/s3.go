// Package s3 provides S3-backed storage for wrapped data encryption keys.
//
// The key store holds the KMS-wrapped DEK blob produced by
// awskms.GenerateWrappedDEK, so that every instance of a service can fetch
// and unwrap the same key at startup:
//
//	store, err := s3.NewKeyStore(ctx, s3.Config{Bucket: "veil-keys"})
//	wrapped, err := store.Fetch(ctx, "user-service")
//	dek, err := kmsCipher.UnwrapDEK(ctx, wrapped)
//	cipher, err := veil.NewAESGCMCipher(dek)
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrStoreUnavailable reports a failed call to the S3 API.
var ErrStoreUnavailable = errors.New("S3 key store unavailable")

// ErrKeyNotFound reports that no wrapped key is stored under an alias.
var ErrKeyNotFound = errors.New("wrapped key not found")

// s3Client interface for the S3 operations the store needs (allows mocking)
type s3Client interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
}

// KeyStore stores wrapped DEK blobs in an S3 bucket, one object per alias.
type KeyStore struct {
	client s3Client
	bucket string
}

// Config holds configuration for the S3 key store.
type Config struct {
	// Bucket is the S3 bucket holding the wrapped keys.
	Bucket string

	// Region is the AWS region. If empty, uses AWS_REGION or the config file.
	Region string

	// AWSConfig is an optional pre-configured AWS config.
	AWSConfig *aws.Config
}

// NewKeyStore creates a key store over an S3 bucket.
func NewKeyStore(ctx context.Context, cfg Config) (*KeyStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket cannot be empty")
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
			return nil, fmt.Errorf("%w: failed to load AWS config: %w", ErrStoreUnavailable, err)
		}
	}

	return &KeyStore{
		client: awss3.NewFromConfig(awsConfig),
		bucket: cfg.Bucket,
	}, nil
}

// objectKey is the bucket path for an alias's wrapped key.
func objectKey(alias string) string {
	return fmt.Sprintf("veil/%s/wrapped-dek", alias)
}

// Store uploads the wrapped key blob for an alias, overwriting any previous
// blob.
func (s *KeyStore) Store(ctx context.Context, alias string, wrapped []byte) error {
	if len(wrapped) == 0 {
		return fmt.Errorf("wrapped key cannot be empty")
	}
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(alias)),
		Body:   bytes.NewReader(wrapped),
	})
	if err != nil {
		return fmt.Errorf("%w: failed to store wrapped key for alias '%s': %w", ErrStoreUnavailable, alias, err)
	}
	return nil
}

// Fetch downloads the wrapped key blob for an alias.
func (s *KeyStore) Fetch(ctx context.Context, alias string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(alias)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: alias '%s': %w", ErrKeyNotFound, alias, err)
	}
	defer result.Body.Close()

	wrapped, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read wrapped key for alias '%s': %w", ErrStoreUnavailable, alias, err)
	}
	return wrapped, nil
}

// Exists checks whether a wrapped key is stored for an alias.
func (s *KeyStore) Exists(ctx context.Context, alias string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(alias)),
	})
	if err != nil {
		// HeadObject gives no typed not-found error worth depending on
		// across SDK versions; callers that need to distinguish outage
		// from absence should Fetch and inspect.
		return false, nil
	}
	return true, nil
}
