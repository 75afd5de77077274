package veil

import "reflect"

// FieldDescriptor identifies one encrypted field on a struct type: its name
// plus an accessor able to read and write that field's value on any instance
// of the type. Descriptors are computed once per type by the field cache and
// are immutable afterwards.
type FieldDescriptor struct {
	// Name is the Go field name as the metadata source saw it.
	Name string

	index   []int
	pointer bool // field is *string rather than string
}

// read returns the field's current value on structValue. A nil *string field
// reads as the empty string, matching the absent-value rule of the pre-flush
// protocol.
func (d FieldDescriptor) read(structValue reflect.Value) string {
	fv := structValue.FieldByIndex(d.index)
	if d.pointer {
		if fv.IsNil() {
			return ""
		}
		return fv.Elem().String()
	}
	return fv.String()
}

// write replaces the field's value on structValue. For *string fields a new
// pointer is allocated so the caller's original string is never aliased.
func (d FieldDescriptor) write(structValue reflect.Value, value string) {
	fv := structValue.FieldByIndex(d.index)
	if d.pointer {
		fv.Set(reflect.ValueOf(&value))
		return
	}
	fv.SetString(value)
}

var stringType = reflect.TypeOf("")

// descriptorFor builds a descriptor for one struct field, or reports why the
// field cannot carry an encrypted value.
func descriptorFor(structType reflect.Type, field reflect.StructField, index []int) (FieldDescriptor, error) {
	if field.PkgPath != "" {
		return FieldDescriptor{}, NewUnexportedFieldError(structType.String(), field.Name)
	}
	switch {
	case field.Type == stringType:
		return FieldDescriptor{Name: field.Name, index: index}, nil
	case field.Type.Kind() == reflect.Ptr && field.Type.Elem() == stringType:
		return FieldDescriptor{Name: field.Name, index: index, pointer: true}, nil
	default:
		return FieldDescriptor{}, NewInvalidFieldTypeError(structType.String(), field.Name, field.Type.String())
	}
}
