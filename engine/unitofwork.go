package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/hengadev/errsx"
)

// ErrNotFound reports that no row exists for a requested id.
var ErrNotFound = errors.New("record not found")

// managedObject is the unit of work's bookkeeping for one tracked instance.
type managedObject struct {
	object    any
	value     reflect.Value
	mapping   *mapping
	persisted bool

	// baseline holds the column values the engine believes are currently
	// stored, keyed by Go field name. Change detection compares against it.
	baseline map[string]any

	// pending holds the snapshot taken when the object was scheduled for
	// the current flush; RecomputeChangeSet refreshes it.
	pending map[string]any
}

// UnitOfWork tracks managed objects, detects changes against per-object
// baselines, and coordinates batch writes with lifecycle notifications.
//
// It implements veil.UnitOfWork: lifecycle subscribers receive it as their
// handle for change-set recomputation and baseline overrides.
//
// A unit of work is single-threaded; create one per logical transaction.
type UnitOfWork struct {
	engine  *Engine
	managed map[uintptr]*managedObject
	order   []*managedObject // registration order, for deterministic flushes
}

// NewUnitOfWork creates an empty unit of work.
func (e *Engine) NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{
		engine:  e,
		managed: make(map[uintptr]*managedObject),
	}
}

func (u *UnitOfWork) track(object any, m *mapping, persisted bool) (*managedObject, error) {
	v := reflect.ValueOf(object)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return nil, fmt.Errorf("object must be a non-nil pointer, got %T", object)
	}
	id := v.Pointer()
	if mo, ok := u.managed[id]; ok {
		return mo, nil
	}
	mo := &managedObject{
		object:    object,
		value:     v.Elem(),
		mapping:   m,
		persisted: persisted,
	}
	u.managed[id] = mo
	u.order = append(u.order, mo)
	return mo, nil
}

func (u *UnitOfWork) managedFor(object any) *managedObject {
	v := reflect.ValueOf(object)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return nil
	}
	return u.managed[v.Pointer()]
}

// Persist schedules a new object for insertion on the next flush. Objects
// without an id are assigned a UUID. Persisting an already-managed object is
// a no-op.
func (u *UnitOfWork) Persist(object any) error {
	t := reflect.TypeOf(object)
	if t == nil || t.Kind() != reflect.Ptr {
		return fmt.Errorf("object must be a pointer to a registered struct, got %T", object)
	}
	m, err := u.engine.mappingFor(t.Elem())
	if err != nil {
		return err
	}
	mo, err := u.track(object, m, false)
	if err != nil {
		return err
	}

	idCol, _ := mo.mapping.idColumn()
	idField := mo.value.Field(idCol.index)
	if idField.String() == "" {
		idField.SetString(uuid.NewString())
	}
	return nil
}

// Load reads the row with the given id into object, registers it as managed
// and clean, and fires post-load notifications. The object must be a pointer
// to a registered struct.
func (u *UnitOfWork) Load(ctx context.Context, object any, id string) error {
	t := reflect.TypeOf(object)
	if t == nil || t.Kind() != reflect.Ptr {
		return fmt.Errorf("object must be a pointer to a registered struct, got %T", object)
	}
	m, err := u.engine.mappingFor(t.Elem())
	if err != nil {
		return err
	}

	row, err := u.selectRow(ctx, m, id)
	if err != nil {
		return err
	}

	mo, err := u.track(object, m, true)
	if err != nil {
		return err
	}
	if err := m.apply(mo.value, row); err != nil {
		return fmt.Errorf("failed to populate %s from row '%s': %w", t.Elem(), id, err)
	}
	// The stored values are the baseline until a subscriber overrides it.
	mo.baseline = m.snapshot(mo.value)

	return u.engine.eachSubscriber(func(entry subscriberEntry) error {
		sub, ok := entry.subscriber.(PostLoadSubscriber)
		if !ok {
			return nil
		}
		if err := sub.PostLoad(ctx, u, object); err != nil {
			return fmt.Errorf("post-load subscriber '%s': %w", entry.name, err)
		}
		return nil
	})
}

func (u *UnitOfWork) selectRow(ctx context.Context, m *mapping, id string) (map[string]any, error) {
	names := make([]string, len(m.columns))
	scans := make([]any, len(m.columns))
	for i, col := range m.columns {
		names[i] = col.name
		if col.sqlType == "INTEGER" {
			scans[i] = new(sql.NullInt64)
		} else {
			scans[i] = new(sql.NullString)
		}
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", strings.Join(names, ", "), m.table)
	err := u.engine.db.QueryRowContext(ctx, query, id).Scan(scans...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s '%s'", ErrNotFound, m.table, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s '%s': %w", m.table, id, err)
	}

	row := make(map[string]any, len(m.columns))
	for i, col := range m.columns {
		switch s := scans[i].(type) {
		case *sql.NullString:
			if s.Valid {
				row[col.field] = s.String
			} else {
				row[col.field] = nil
			}
		case *sql.NullInt64:
			if s.Valid {
				row[col.field] = s.Int64
			} else {
				row[col.field] = nil
			}
		}
	}
	return row, nil
}

// IsDirty reports whether a managed object's current values diverge from its
// baseline. New objects are always dirty until flushed.
func (u *UnitOfWork) IsDirty(object any) bool {
	mo := u.managedFor(object)
	if mo == nil {
		return false
	}
	if !mo.persisted {
		return true
	}
	return !equalValues(mo.mapping.snapshot(mo.value), mo.baseline)
}

// RecomputeChangeSet re-derives the object's pending write values from its
// current in-memory state. Part of the veil.UnitOfWork contract; lifecycle
// subscribers call it after mutating fields during pre-flush.
func (u *UnitOfWork) RecomputeChangeSet(object any) {
	if mo := u.managedFor(object); mo != nil {
		mo.pending = mo.mapping.snapshot(mo.value)
	}
}

// SetBaseline overrides the engine's record of the stored value for one
// field of one object. Part of the veil.UnitOfWork contract.
func (u *UnitOfWork) SetBaseline(object any, field string, value string) {
	mo := u.managedFor(object)
	if mo == nil {
		return
	}
	if mo.baseline == nil {
		mo.baseline = make(map[string]any)
	}
	mo.baseline[field] = value
}

// Flush writes every scheduled insertion and every dirty update in one
// batch, bounded by pre-flush and post-flush notifications.
func (u *UnitOfWork) Flush(ctx context.Context) error {
	var inserts, updates []any
	var batch []*managedObject
	for _, mo := range u.order {
		switch {
		case !mo.persisted:
			mo.pending = mo.mapping.snapshot(mo.value)
			inserts = append(inserts, mo.object)
			batch = append(batch, mo)
		case !equalValues(mo.mapping.snapshot(mo.value), mo.baseline):
			mo.pending = mo.mapping.snapshot(mo.value)
			updates = append(updates, mo.object)
			batch = append(batch, mo)
		}
	}
	if len(batch) == 0 {
		return nil
	}

	err := u.engine.eachSubscriber(func(entry subscriberEntry) error {
		sub, ok := entry.subscriber.(PreFlushSubscriber)
		if !ok {
			return nil
		}
		if err := sub.PreFlush(ctx, u, inserts, updates); err != nil {
			return fmt.Errorf("pre-flush subscriber '%s': %w", entry.name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var writeErrs errsx.Map
	for _, mo := range batch {
		if mo.persisted {
			err = u.update(ctx, mo)
		} else {
			err = u.insert(ctx, mo)
		}
		if err != nil {
			writeErrs.Set(fmt.Sprintf("writing %s", mo.mapping.table), err)
			continue
		}
		// What was just written becomes the baseline; post-flush
		// subscribers may override it.
		mo.baseline = mo.pending
		mo.pending = nil
		mo.persisted = true
	}
	if !writeErrs.IsEmpty() {
		return writeErrs.AsError()
	}

	return u.engine.eachSubscriber(func(entry subscriberEntry) error {
		sub, ok := entry.subscriber.(PostFlushSubscriber)
		if !ok {
			return nil
		}
		if err := sub.PostFlush(ctx, u); err != nil {
			return fmt.Errorf("post-flush subscriber '%s': %w", entry.name, err)
		}
		return nil
	})
}

func (u *UnitOfWork) insert(ctx context.Context, mo *managedObject) error {
	m := mo.mapping
	names := make([]string, len(m.columns))
	marks := make([]string, len(m.columns))
	args := make([]any, len(m.columns))
	for i, col := range m.columns {
		names[i] = col.name
		marks[i] = "?"
		args[i] = mo.pending[col.field]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		m.table, strings.Join(names, ", "), strings.Join(marks, ", "))
	if _, err := u.engine.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into '%s' failed: %w", m.table, err)
	}
	return nil
}

func (u *UnitOfWork) update(ctx context.Context, mo *managedObject) error {
	m := mo.mapping
	var sets []string
	var args []any
	for _, col := range m.columns {
		if col.name == "id" {
			continue
		}
		sets = append(sets, col.name+" = ?")
		args = append(args, mo.pending[col.field])
	}
	idCol, _ := m.idColumn()
	args = append(args, mo.pending[idCol.field])

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", m.table, strings.Join(sets, ", "))
	if _, err := u.engine.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update of '%s' failed: %w", m.table, err)
	}
	return nil
}

// StoredValue reads one column of one row straight from the database,
// bypassing the unit of work. Intended for tests verifying what is actually
// at rest.
func (e *Engine) StoredValue(ctx context.Context, table, columnName, id string) (string, error) {
	var value sql.NullString
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", columnName, table)
	err := e.db.QueryRowContext(ctx, query, id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s '%s'", ErrNotFound, table, id)
	}
	if err != nil {
		return "", err
	}
	return value.String, nil
}
