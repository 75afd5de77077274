package veil

import "fmt"

// Option configures a Coordinator at construction time.
type Option func(c *Coordinator) error

// WithMetadataSource replaces the default tag-based metadata source. Has no
// effect when WithFieldCache is also supplied.
func WithMetadataSource(source MetadataSource) Option {
	return func(c *Coordinator) error {
		if source == nil {
			return fmt.Errorf("%w: metadata source is nil", ErrInvalidConfiguration)
		}
		if c.fields == nil {
			c.fields = NewFieldCache(source)
		}
		return nil
	}
}

// WithFieldCache shares a prebuilt field cache between coordinators, for
// hosts that run several independent coordinators over the same types.
func WithFieldCache(cache *FieldCache) Option {
	return func(c *Coordinator) error {
		if cache == nil {
			return fmt.Errorf("%w: field cache is nil", ErrInvalidConfiguration)
		}
		c.fields = cache
		return nil
	}
}

// WithDecodeTracker replaces the coordinator's decode tracker.
func WithDecodeTracker(tracker *DecodeTracker) Option {
	return func(c *Coordinator) error {
		if tracker == nil {
			return fmt.Errorf("%w: decode tracker is nil", ErrInvalidConfiguration)
		}
		c.decoded = tracker
		return nil
	}
}

// WithObservabilityHook installs a hook notified around each lifecycle
// operation.
func WithObservabilityHook(hook ObservabilityHook) Option {
	return func(c *Coordinator) error {
		if hook == nil {
			return fmt.Errorf("%w: observability hook is nil", ErrInvalidConfiguration)
		}
		c.hook = hook
		return nil
	}
}
