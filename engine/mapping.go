package engine

import (
	"fmt"
	"reflect"
	"strings"
)

// column maps one struct field to one table column.
type column struct {
	name    string // column name
	field   string // Go field name
	index   int
	sqlType string
	pointer bool // *string
}

// mapping describes how a struct type persists to a table. The id column is
// always first.
type mapping struct {
	table   string
	typ     reflect.Type
	columns []column
}

func newMapping(t reflect.Type, table string) (*mapping, error) {
	if table == "" {
		return nil, fmt.Errorf("table name cannot be empty for type %s", t)
	}
	m := &mapping{table: table, typ: t}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, ok := field.Tag.Lookup("db")
		if !ok || tag == "" || tag == "-" {
			continue
		}
		if field.PkgPath != "" {
			return nil, fmt.Errorf("field '%s' of type %s is tagged db but unexported", field.Name, t)
		}

		col := column{name: tag, field: field.Name, index: i}
		switch {
		case field.Type.Kind() == reflect.String:
			col.sqlType = "TEXT"
		case field.Type.Kind() == reflect.Ptr && field.Type.Elem().Kind() == reflect.String:
			col.sqlType = "TEXT"
			col.pointer = true
		case field.Type.Kind() == reflect.Int || field.Type.Kind() == reflect.Int64:
			col.sqlType = "INTEGER"
		case field.Type.Kind() == reflect.Bool:
			col.sqlType = "INTEGER"
		default:
			return nil, fmt.Errorf("field '%s' of type %s has unsupported column type %s", field.Name, t, field.Type)
		}
		m.columns = append(m.columns, col)
	}

	id, ok := m.idColumn()
	if !ok {
		return nil, fmt.Errorf("type %s needs a string field tagged db:\"id\"", t)
	}
	if m.typ.Field(id.index).Type.Kind() != reflect.String {
		return nil, fmt.Errorf("id field of type %s must be a string", t)
	}
	return m, nil
}

func (m *mapping) idColumn() (column, bool) {
	for _, col := range m.columns {
		if col.name == "id" {
			return col, true
		}
	}
	return column{}, false
}

func (m *mapping) createTableSQL() string {
	var defs []string
	for _, col := range m.columns {
		def := col.name + " " + col.sqlType
		if col.name == "id" {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", m.table, strings.Join(defs, ", "))
}

// snapshot captures the current value of every mapped column of a struct
// value, keyed by Go field name.
func (m *mapping) snapshot(v reflect.Value) map[string]any {
	values := make(map[string]any, len(m.columns))
	for _, col := range m.columns {
		fv := v.Field(col.index)
		if col.pointer {
			if fv.IsNil() {
				values[col.field] = nil
			} else {
				values[col.field] = fv.Elem().String()
			}
			continue
		}
		values[col.field] = fv.Interface()
	}
	return values
}

// apply writes a row's column values back onto a struct value. Keys are Go
// field names; missing keys leave the field untouched.
func (m *mapping) apply(v reflect.Value, values map[string]any) error {
	for _, col := range m.columns {
		raw, ok := values[col.field]
		if !ok {
			continue
		}
		fv := v.Field(col.index)
		if raw == nil {
			if col.pointer {
				fv.Set(reflect.Zero(fv.Type()))
			}
			continue
		}
		switch {
		case col.pointer:
			s, ok := raw.(string)
			if !ok {
				return fmt.Errorf("column '%s': expected string, got %T", col.name, raw)
			}
			fv.Set(reflect.ValueOf(&s))
		case fv.Kind() == reflect.String:
			s, ok := raw.(string)
			if !ok {
				return fmt.Errorf("column '%s': expected string, got %T", col.name, raw)
			}
			fv.SetString(s)
		case fv.Kind() == reflect.Int || fv.Kind() == reflect.Int64:
			n, ok := raw.(int64)
			if !ok {
				return fmt.Errorf("column '%s': expected integer, got %T", col.name, raw)
			}
			fv.SetInt(n)
		case fv.Kind() == reflect.Bool:
			n, ok := raw.(int64)
			if !ok {
				return fmt.Errorf("column '%s': expected integer, got %T", col.name, raw)
			}
			fv.SetBool(n != 0)
		}
	}
	return nil
}

// equalValues compares two snapshots for change detection.
func equalValues(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || av != bv {
			return false
		}
	}
	return true
}
