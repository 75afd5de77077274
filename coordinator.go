package veil

import (
	"context"
	"fmt"
	"reflect"
	"time"
)

// Coordinator intercepts a persistence engine's flush and load lifecycle to
// keep marked fields encrypted at rest while the in-memory objects always
// hold plaintext.
//
// The protocol, per flush cycle:
//
//  1. PreFlush: marked fields are encrypted in place and the engine is asked
//     to recompute each object's change set, so the ciphertext is what gets
//     written. The original plaintext is queued aside.
//  2. The engine performs the batch write.
//  3. PostFlush: the queued plaintext is written back onto the objects and
//     the engine's change-detection baseline is overridden to the plaintext.
//     The backing store now holds ciphertext while the engine believes the
//     plaintext is persisted; that divergence is what keeps the object clean
//     on the next change-detection pass.
//
// On load, PostLoad decrypts marked fields in place exactly once per object
// instance, tracked by the decode tracker.
//
// A coordinator is intended to be driven synchronously from within the
// engine's own flush/load sequence. Its caches are internally synchronized,
// but the pending-restore queue is scoped to one flush cycle at a time, so
// concurrent flushes must not share a coordinator.
type Coordinator struct {
	cipher  Cipher
	fields  *FieldCache
	decoded *DecodeTracker
	pending []*pendingRestore
	hook    ObservabilityHook
}

// pendingRestore remembers one object's pre-encryption plaintext for the
// duration of a single flush cycle.
type pendingRestore struct {
	object any
	value  reflect.Value
	fields []restoredField
}

type restoredField struct {
	descriptor FieldDescriptor
	plaintext  string
}

// New creates a coordinator around the given cipher.
//
// Example usage:
//
//	cipher, err := veil.NewAESGCMCipher(key)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	coordinator, err := veil.New(cipher)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	uow.Subscribe("veil", coordinator)
func New(cipher Cipher, opts ...Option) (*Coordinator, error) {
	if cipher == nil {
		return nil, fmt.Errorf("%w: cipher is required", ErrCipherUnavailable)
	}
	c := &Coordinator{
		cipher:  cipher,
		decoded: NewDecodeTracker(),
		hook:    &NoOpObservabilityHook{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.fields == nil {
		c.fields = NewFieldCache(nil)
	}
	return c, nil
}

// PreFlush encrypts the marked fields of every object scheduled for insertion
// or update, in the order the engine presents them, queueing the original
// plaintext for restoration after the write.
//
// The queue is reset at the start of every invocation; no entries survive
// across flush cycles. Processing is fail-fast and not transactional: if
// object N of the batch fails, objects 1..N-1 already hold ciphertext in
// memory with recomputed change sets, and the queue holds entries only for
// the objects processed so far. The caller decides whether to retry the
// whole operation.
func (c *Coordinator) PreFlush(ctx context.Context, uow UnitOfWork, inserts, updates []any) error {
	start := time.Now()
	metadata := map[string]any{
		"operation_type": "pre_flush",
		"batch_size":     fmt.Sprintf("%d", len(inserts)+len(updates)),
	}
	c.hook.OnProcessStart(ctx, "PreFlush", metadata)

	c.pending = c.pending[:0]

	err := c.encryptBatch(ctx, uow, inserts)
	if err == nil {
		err = c.encryptBatch(ctx, uow, updates)
	}
	if err != nil {
		c.hook.OnError(ctx, "PreFlush", err, metadata)
	}
	c.hook.OnProcessComplete(ctx, "PreFlush", time.Since(start), err, metadata)
	return err
}

func (c *Coordinator) encryptBatch(ctx context.Context, uow UnitOfWork, objects []any) error {
	for _, object := range objects {
		if err := c.encryptObject(ctx, uow, object); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) encryptObject(ctx context.Context, uow UnitOfWork, object any) error {
	v, err := structValue(object)
	if err != nil {
		return err
	}
	descriptors, err := c.fields.FieldsFor(v.Type())
	if err != nil {
		return err
	}
	if len(descriptors) == 0 {
		return nil
	}

	// The entry joins the queue before any field is transformed, so a
	// mid-object failure still leaves the already-encrypted fields
	// restorable by the next PostFlush.
	entry := &pendingRestore{object: object, value: v}
	c.pending = append(c.pending, entry)

	for _, descriptor := range descriptors {
		plaintext := descriptor.read(v)
		entry.fields = append(entry.fields, restoredField{descriptor: descriptor, plaintext: plaintext})

		ciphertext, err := c.cipher.Encrypt(ctx, plaintext)
		if err != nil {
			return NewEncryptionError(v.Type().String(), descriptor.Name, err)
		}
		descriptor.write(v, ciphertext)
	}

	uow.RecomputeChangeSet(object)
	return nil
}

// PostFlush restores the plaintext queued by the preceding PreFlush onto each
// object, overrides the engine's baseline for each restored field so the
// object is not seen as modified again, and marks the object decoded. The
// queue is cleared afterwards.
//
// Invoked without a preceding PreFlush the queue is empty and this is a safe
// no-op.
func (c *Coordinator) PostFlush(ctx context.Context, uow UnitOfWork) error {
	start := time.Now()
	metadata := map[string]any{
		"operation_type": "post_flush",
		"queued_objects": fmt.Sprintf("%d", len(c.pending)),
	}
	c.hook.OnProcessStart(ctx, "PostFlush", metadata)

	for _, entry := range c.pending {
		for _, field := range entry.fields {
			field.descriptor.write(entry.value, field.plaintext)
			uow.SetBaseline(entry.object, field.descriptor.Name, field.plaintext)
		}
		c.decoded.MarkDecoded(entry.object)
	}
	c.pending = c.pending[:0]

	c.hook.OnProcessComplete(ctx, "PostFlush", time.Since(start), nil, metadata)
	return nil
}

// PostLoad decrypts the marked fields of a freshly loaded object in place and
// overrides the engine's baseline for each field to the decrypted value, so
// the object is not immediately considered modified. An object already known
// to hold plaintext is left untouched, which makes repeated load
// notifications for the same instance safe.
//
// Objects whose type has no marked fields pass through without being marked
// decoded.
func (c *Coordinator) PostLoad(ctx context.Context, uow UnitOfWork, object any) error {
	start := time.Now()
	metadata := map[string]any{"operation_type": "post_load"}
	c.hook.OnProcessStart(ctx, "PostLoad", metadata)

	err := c.decryptObject(ctx, uow, object)
	if err != nil {
		c.hook.OnError(ctx, "PostLoad", err, metadata)
	}
	c.hook.OnProcessComplete(ctx, "PostLoad", time.Since(start), err, metadata)
	return err
}

func (c *Coordinator) decryptObject(ctx context.Context, uow UnitOfWork, object any) error {
	if c.decoded.IsDecoded(object) {
		return nil
	}
	v, err := structValue(object)
	if err != nil {
		return err
	}
	descriptors, err := c.fields.FieldsFor(v.Type())
	if err != nil {
		return err
	}

	processed := false
	for _, descriptor := range descriptors {
		stored := descriptor.read(v)
		plaintext, err := c.cipher.Decrypt(ctx, stored)
		if err != nil {
			return NewDecryptionError(v.Type().String(), descriptor.Name, err)
		}
		descriptor.write(v, plaintext)
		uow.SetBaseline(object, descriptor.Name, plaintext)
		processed = true
	}
	if processed {
		c.decoded.MarkDecoded(object)
	}
	return nil
}

// structValue validates that object is a non-nil pointer to a struct and
// returns the addressable struct value.
func structValue(object any) (reflect.Value, error) {
	if object == nil {
		return reflect.Value{}, ErrInvalidObject
	}
	v := reflect.ValueOf(object)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w, got %T", ErrInvalidObject, object)
	}
	return v.Elem(), nil
}
