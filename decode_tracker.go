package veil

import (
	"reflect"
	"sync"
)

// DecodeTracker records which object instances currently hold plaintext in
// memory, preventing redundant decryption when the host delivers repeated
// load notifications for the same instance.
//
// Membership is keyed by the object's pointer identity, not a business key:
// each freshly loaded instance starts undecoded even if it represents the
// same persisted record as an earlier one. The tracker holds only the
// identity key, never a reference to the object, so it does not extend the
// lifetime of tracked objects. Entries are never removed; the set grows
// monotonically for the coordinator's lifetime.
type DecodeTracker struct {
	mu      sync.RWMutex
	decoded map[uintptr]struct{}
}

// NewDecodeTracker creates an empty tracker.
func NewDecodeTracker() *DecodeTracker {
	return &DecodeTracker{decoded: make(map[uintptr]struct{})}
}

// IsDecoded reports whether the object instance is known to hold plaintext.
func (t *DecodeTracker) IsDecoded(object any) bool {
	id, ok := identityOf(object)
	if !ok {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, decoded := t.decoded[id]
	return decoded
}

// MarkDecoded records the object instance as holding plaintext. Idempotent.
func (t *DecodeTracker) MarkDecoded(object any) {
	id, ok := identityOf(object)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.decoded[id] = struct{}{}
}

// identityOf derives the tracking key from an object's runtime identity.
// Only pointer-shaped objects have a usable identity.
func identityOf(object any) (uintptr, bool) {
	if object == nil {
		return 0, false
	}
	v := reflect.ValueOf(object)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return 0, false
	}
	return v.Pointer(), true
}
