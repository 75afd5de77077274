package veil

import (
	"errors"
	"fmt"
)

var (
	// Metadata errors
	ErrMetadata         = errors.New("field metadata resolution failed")
	ErrInvalidFieldType = errors.New("invalid field type")
	ErrUnexportedField  = errors.New("unexported field cannot be accessed")

	// Crypto errors
	ErrEncryptionFailed  = errors.New("encryption failed")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrCipherUnavailable = errors.New("cipher unavailable")
	ErrInvalidKey        = errors.New("invalid key")

	// Host/usage errors
	ErrInvalidObject        = errors.New("object must be a non-nil pointer to a struct")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

func NewMetadataError(typeName, fieldName string, cause error) error {
	return fmt.Errorf("%w: field '%s' of type %s: %v", ErrMetadata, fieldName, typeName, cause)
}

func NewInvalidFieldTypeError(typeName, fieldName, actualType string) error {
	return fmt.Errorf("%w: field '%s' of type %s must be string or *string to be encrypted, got %s",
		ErrInvalidFieldType, fieldName, typeName, actualType)
}

func NewUnexportedFieldError(typeName, fieldName string) error {
	return fmt.Errorf("%w: field '%s' of type %s is marked for encryption but is unexported",
		ErrUnexportedField, fieldName, typeName)
}

func NewEncryptionError(typeName, fieldName string, cause error) error {
	return fmt.Errorf("%w: field '%s' of type %s: %v", ErrEncryptionFailed, fieldName, typeName, cause)
}

func NewDecryptionError(typeName, fieldName string, cause error) error {
	return fmt.Errorf("%w: field '%s' of type %s: %v", ErrDecryptionFailed, fieldName, typeName, cause)
}

// IsMetadataError returns true if the error represents a problem resolving
// which fields are marked for encryption.
func IsMetadataError(err error) bool {
	return errors.Is(err, ErrMetadata) ||
		errors.Is(err, ErrInvalidFieldType) ||
		errors.Is(err, ErrUnexportedField)
}

// IsCryptoError returns true if the error represents a failure of the
// cryptographic primitive during encryption or decryption.
func IsCryptoError(err error) bool {
	return errors.Is(err, ErrEncryptionFailed) ||
		errors.Is(err, ErrDecryptionFailed) ||
		errors.Is(err, ErrCipherUnavailable) ||
		errors.Is(err, ErrInvalidKey)
}

// IsConfigurationError returns true if the error represents a configuration
// problem rather than a runtime failure.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrInvalidObject)
}
