package veil

// This file provides test doubles used by the package's own tests and
// exported for host applications integrating the coordinator into their own
// persistence engines.

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// StaticCipher is a deterministic, reversible cipher for tests and examples.
// It wraps the plaintext in an ENC(...) marker instead of performing real
// cryptography, which makes test assertions on stored values readable.
// Never use it outside tests.
type StaticCipher struct{}

// NewStaticCipher creates a StaticCipher.
func NewStaticCipher() *StaticCipher {
	return &StaticCipher{}
}

func (s *StaticCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	return "ENC(" + plaintext + ")", nil
}

func (s *StaticCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, "ENC(") || !strings.HasSuffix(ciphertext, ")") {
		return "", fmt.Errorf("%w: value %q does not look like a StaticCipher ciphertext", ErrDecryptionFailed, ciphertext)
	}
	return strings.TrimSuffix(strings.TrimPrefix(ciphertext, "ENC("), ")"), nil
}

// FlakyCipher wraps another cipher and fails after a configurable number of
// successful operations, for exercising mid-batch failure paths.
type FlakyCipher struct {
	Inner Cipher

	// FailAfter is the number of Encrypt/Decrypt calls (combined) that
	// succeed before every further call fails.
	FailAfter int

	calls int
}

func (f *FlakyCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if err := f.tick(); err != nil {
		return "", err
	}
	return f.Inner.Encrypt(ctx, plaintext)
}

func (f *FlakyCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	if err := f.tick(); err != nil {
		return "", err
	}
	return f.Inner.Decrypt(ctx, ciphertext)
}

func (f *FlakyCipher) tick() error {
	f.calls++
	if f.calls > f.FailAfter {
		return fmt.Errorf("%w: injected failure on call %d", ErrCipherUnavailable, f.calls)
	}
	return nil
}

// BaselineCall records one SetBaseline invocation observed by a
// RecordingUnitOfWork.
type BaselineCall struct {
	Object any
	Field  string
	Value  string
}

// RecordingUnitOfWork is a UnitOfWork test double that records every call it
// receives, in order.
type RecordingUnitOfWork struct {
	Recomputed []any
	Baselines  []BaselineCall
}

func (r *RecordingUnitOfWork) RecomputeChangeSet(object any) {
	r.Recomputed = append(r.Recomputed, object)
}

func (r *RecordingUnitOfWork) SetBaseline(object any, field string, value string) {
	r.Baselines = append(r.Baselines, BaselineCall{Object: object, Field: field, Value: value})
}

// BaselineFor returns the most recent baseline recorded for a field of an
// object, and whether one was recorded at all.
func (r *RecordingUnitOfWork) BaselineFor(object any, field string) (string, bool) {
	for i := len(r.Baselines) - 1; i >= 0; i-- {
		call := r.Baselines[i]
		if call.Object == object && call.Field == field {
			return call.Value, true
		}
	}
	return "", false
}

// CountingSource wraps a MetadataSource and counts how many field lookups it
// has received per type, to verify the once-per-type cache contract.
type CountingSource struct {
	Inner MetadataSource

	mu    sync.Mutex
	types map[reflect.Type]int
}

// NewCountingSource creates a CountingSource over inner; a nil inner uses
// TagSource.
func NewCountingSource(inner MetadataSource) *CountingSource {
	if inner == nil {
		inner = TagSource{}
	}
	return &CountingSource{Inner: inner, types: make(map[reflect.Type]int)}
}

func (c *CountingSource) IsFieldEncrypted(structType reflect.Type, fieldName string) (bool, error) {
	c.mu.Lock()
	c.types[structType]++
	c.mu.Unlock()
	return c.Inner.IsFieldEncrypted(structType, fieldName)
}

// Lookups returns the number of field lookups recorded for a type.
func (c *CountingSource) Lookups(structType reflect.Type) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.types[structType]
}
