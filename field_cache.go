package veil

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// StructTag is the struct tag key read by the default metadata source.
const StructTag = "veil"

// TagEncrypt marks a field for encryption at rest:
//
//	type Document struct {
//	    Title      string
//	    SecretData string `veil:"encrypt"`
//	}
const TagEncrypt = "encrypt"

// FieldCache resolves and memoizes the encrypted-field descriptors of struct
// types. The first request for a type enumerates its fields and consults the
// metadata source for each; the result is cached for the process lifetime
// with no invalidation path. Safe for concurrent use.
type FieldCache struct {
	mu     sync.RWMutex
	byType map[reflect.Type][]FieldDescriptor
	source MetadataSource
}

// NewFieldCache creates a cache backed by the given metadata source. A nil
// source falls back to TagSource.
func NewFieldCache(source MetadataSource) *FieldCache {
	if source == nil {
		source = TagSource{}
	}
	return &FieldCache{
		byType: make(map[reflect.Type][]FieldDescriptor),
		source: source,
	}
}

// FieldsFor returns the ordered descriptors of structType's encrypted fields.
// Types with no marked fields yield an empty (nil) slice, not an error. The
// returned slice must not be modified by the caller.
func (c *FieldCache) FieldsFor(structType reflect.Type) ([]FieldDescriptor, error) {
	c.mu.RLock()
	descriptors, ok := c.byType[structType]
	c.mu.RUnlock()
	if ok {
		return descriptors, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have populated the entry while we waited.
	if descriptors, ok := c.byType[structType]; ok {
		return descriptors, nil
	}

	descriptors, err := c.resolve(structType, structType, nil)
	if err != nil {
		return nil, err
	}
	c.byType[structType] = descriptors
	return descriptors, nil
}

// resolve walks the fields of t, recursing into embedded structs, and builds
// a descriptor for every field the metadata source reports as marked. The
// index prefix locates t within the root type's field tree.
func (c *FieldCache) resolve(rootType, t reflect.Type, prefix []int) ([]FieldDescriptor, error) {
	var descriptors []FieldDescriptor
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		index := append(append([]int(nil), prefix...), i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			embedded, err := c.resolve(rootType, field.Type, index)
			if err != nil {
				return nil, fmt.Errorf("embedded struct '%s' in type %s: %w", field.Name, rootType, err)
			}
			descriptors = append(descriptors, embedded...)
			continue
		}

		marked, err := c.source.IsFieldEncrypted(t, field.Name)
		if err != nil {
			return nil, NewMetadataError(rootType.String(), field.Name, err)
		}
		if !marked {
			continue
		}

		descriptor, err := descriptorFor(rootType, field, index)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, descriptor)
	}
	return descriptors, nil
}

// TagSource is the default MetadataSource: a field is marked for encryption
// when its `veil` struct tag contains the "encrypt" operation.
type TagSource struct{}

func (TagSource) IsFieldEncrypted(structType reflect.Type, fieldName string) (bool, error) {
	field, ok := structType.FieldByName(fieldName)
	if !ok {
		return false, fmt.Errorf("type %s has no field '%s'", structType, fieldName)
	}
	tag, ok := field.Tag.Lookup(StructTag)
	if !ok || tag == "" || tag == "-" {
		return false, nil
	}
	for _, op := range strings.Split(tag, ",") {
		switch strings.TrimSpace(op) {
		case TagEncrypt:
			return true, nil
		default:
			return false, fmt.Errorf("unsupported %s tag '%s' on field '%s' of type %s. Supported tags: %s",
				StructTag, op, fieldName, structType, TagEncrypt)
		}
	}
	return false, nil
}
