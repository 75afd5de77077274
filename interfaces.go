package veil

import (
	"context"
	"reflect"
)

// Cipher defines the contract for the cryptographic primitive used to
// transform field values.
//
// This interface is the sole seam for swapping encryption algorithms and key
// sources. Implementations must round-trip: Decrypt(Encrypt(v)) == v for any
// plaintext v. The coordinator stores whatever string Encrypt produces
// verbatim in place of the plaintext, so the output must be representable in
// the backing column (implementations typically base64-encode binary
// ciphertext).
//
// Implementations:
//   - AES-GCM with a local or provisioned key: veil.AESGCMCipher
//   - HashiCorp Vault Transit Engine: github.com/hengadev/veil/providers/hashicorpvault.TransitCipher
//   - AWS KMS direct encryption: github.com/hengadev/veil/providers/awskms.KMSCipher
//   - Deterministic test cipher: veil.StaticCipher
//
// Example usage:
//
//	cipher, err := veil.NewAESGCMCipher(key)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	coordinator, err := veil.New(cipher)
type Cipher interface {
	// Encrypt transforms a plaintext field value into its stored form.
	//
	// Parameters:
	//   - ctx: Context for the operation
	//   - plaintext: The field value as read from the object
	//
	// Returns:
	//   - The ciphertext string to persist in place of the plaintext
	//   - Error if encryption fails
	Encrypt(ctx context.Context, plaintext string) (string, error)

	// Decrypt reverses Encrypt, recovering the original plaintext from the
	// stored form.
	//
	// Parameters:
	//   - ctx: Context for the operation
	//   - ciphertext: The stored field value
	//
	// Returns:
	//   - The original plaintext
	//   - Error if the ciphertext is corrupt or the key does not match
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// MetadataSource defines the contract for discovering which fields of a type
// are marked for encryption.
//
// The coordinator's field cache consults the source at most once per distinct
// type for the process lifetime; the answer for a (type, field) pair must be
// stable. The default source is TagSource, which reads the `veil` struct tag,
// but hosts with external metadata (configuration files, schema registries)
// can supply their own.
type MetadataSource interface {
	// IsFieldEncrypted reports whether the named field of structType is
	// marked for encryption at rest.
	//
	// Returns an error only for malformed markings (e.g. an unknown tag
	// value); such errors are fatal to the operation that triggered the
	// lookup and are not retried.
	IsFieldEncrypted(structType reflect.Type, fieldName string) (bool, error)
}

// UnitOfWork is the handle the host persistence engine passes into each
// lifecycle hook, exposing the two pieces of engine bookkeeping the
// coordinator needs to manipulate.
//
// SetBaseline is deliberately a baseline override, not a "mark clean" flag:
// after a flush the engine's change detection must compare future field
// values against the restored plaintext, even though the backing store holds
// ciphertext. A host that only offers dirty-flag clearing cannot support
// this protocol; the object would show up as modified on the next comparison
// pass.
type UnitOfWork interface {
	// RecomputeChangeSet tells the engine to re-derive the object's pending
	// change set from its current in-memory field values. Called after the
	// coordinator replaces plaintext with ciphertext so the engine persists
	// the ciphertext.
	RecomputeChangeSet(object any)

	// SetBaseline overrides the engine's record of the value it believes is
	// currently persisted for one field of one object. Change detection
	// compares against this value.
	SetBaseline(object any, field string, value string)
}
