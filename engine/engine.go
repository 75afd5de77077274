// Package engine is a small unit-of-work object mapper over SQLite, used as
// the reference host for veil's lifecycle interception.
//
// It is deliberately minimal: flat structs map to tables via `db` tags,
// change tracking is snapshot-based, and lifecycle subscribers are notified
// around every flush and load. It exists so the coordinator can be exercised
// against a real write path end to end; it is not a general-purpose ORM.
// Registered types need an `ID string` field tagged `db:"id"`.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hengadev/veil"
)

// PreFlushSubscriber is notified before a unit of work writes its batch,
// with the objects scheduled for insertion and for update.
type PreFlushSubscriber interface {
	PreFlush(ctx context.Context, uow veil.UnitOfWork, inserts, updates []any) error
}

// PostFlushSubscriber is notified once after the batch write completes.
type PostFlushSubscriber interface {
	PostFlush(ctx context.Context, uow veil.UnitOfWork) error
}

// PostLoadSubscriber is notified for each freshly loaded object.
type PostLoadSubscriber interface {
	PostLoad(ctx context.Context, uow veil.UnitOfWork, object any) error
}

type subscriberEntry struct {
	name       string
	subscriber any
}

// Engine owns the database handle, the registered type mappings, and the
// lifecycle subscriber registry. Units of work are created per logical
// transaction via NewUnitOfWork.
type Engine struct {
	db *sql.DB

	mu          sync.RWMutex
	mappings    map[reflect.Type]*mapping
	subscribers []subscriberEntry
}

// Open opens (or creates) the SQLite database at dsn.
func Open(dsn string) (*Engine, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database '%s': %w", dsn, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to reach database '%s': %w", dsn, err)
	}
	return &Engine{
		db:       db,
		mappings: make(map[reflect.Type]*mapping),
	}, nil
}

// Close closes the underlying database.
func (e *Engine) Close() error {
	return e.db.Close()
}

// RegisterType maps a struct type to a table, creating the table if it does
// not exist. The prototype must be a pointer to the struct.
//
//	type Doc struct {
//	    ID         string `db:"id"`
//	    Title      string `db:"title"`
//	    SecretData string `db:"secret_data" veil:"encrypt"`
//	}
//	err := eng.RegisterType(&Doc{}, "docs")
func (e *Engine) RegisterType(prototype any, table string) error {
	t := reflect.TypeOf(prototype)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("prototype must be a pointer to a struct, got %T", prototype)
	}
	m, err := newMapping(t.Elem(), table)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.mappings[t.Elem()] = m
	e.mu.Unlock()

	if _, err := e.db.Exec(m.createTableSQL()); err != nil {
		return fmt.Errorf("failed to create table '%s': %w", table, err)
	}
	return nil
}

// Subscribe registers a named lifecycle subscriber. The subscriber may
// implement any combination of PreFlushSubscriber, PostFlushSubscriber, and
// PostLoadSubscriber; it is registered for whichever it implements.
// Subscribers are notified in registration order.
func (e *Engine) Subscribe(name string, subscriber any) error {
	_, pre := subscriber.(PreFlushSubscriber)
	_, post := subscriber.(PostFlushSubscriber)
	_, load := subscriber.(PostLoadSubscriber)
	if !pre && !post && !load {
		return fmt.Errorf("subscriber '%s' implements no lifecycle interface", name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, entry := range e.subscribers {
		if entry.name == name {
			return fmt.Errorf("subscriber '%s' already registered", name)
		}
	}
	e.subscribers = append(e.subscribers, subscriberEntry{name: name, subscriber: subscriber})
	return nil
}

func (e *Engine) mappingFor(t reflect.Type) (*mapping, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.mappings[t]
	if !ok {
		return nil, fmt.Errorf("type %s is not registered", t)
	}
	return m, nil
}

func (e *Engine) eachSubscriber(fn func(entry subscriberEntry) error) error {
	e.mu.RLock()
	entries := append([]subscriberEntry(nil), e.subscribers...)
	e.mu.RUnlock()
	for _, entry := range entries {
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}
