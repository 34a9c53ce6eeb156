package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrUnavailable signals a transient backend failure. Operations are safe
	// to repeat; callers decide whether to retry.
	ErrUnavailable = errors.New("store unavailable")
)

// Document is a raw record as the backend holds it: an id plus a loosely
// typed field bag. The store is schemaless, so consumers must tolerate any
// field shape.
type Document struct {
	ID     string
	Fields map[string]any
}

// Snapshot is the complete result set of a query at a point in time. It is
// delivered once on subscribe and again on every matching change.
type Snapshot []Document

// Where is a single field predicate.
type Where struct {
	Field string
	Value any
}

// Query addresses either a whole collection (optionally filtered and
// ordered) or, when DocID is set, a single document within Path.
type Query struct {
	Path          string // collection path, e.g. "chat-rooms" or "chat-rooms/<id>/messages"
	DocID         string
	WhereContains *Where // field array-contains value
	WhereEqual    *Where
	OrderBy       string
	Desc          bool
}

// SnapshotFunc receives query snapshots.
type SnapshotFunc func(Snapshot)

// ErrorFunc receives the terminal error of a subscription. It fires at most
// once; after it fires no further snapshots are delivered.
type ErrorFunc func(error)

// CancelFunc tears down a subscription. Safe to call more than once.
type CancelFunc func()

// OpKind enumerates write operations usable inside an atomic commit.
type OpKind int

const (
	OpSetMerge OpKind = iota
	OpUpdate
	OpDelete
)

// WriteOp is one operation of an atomic commit.
type WriteOp struct {
	Kind   OpKind
	Path   string
	ID     string
	Fields map[string]any
}

// Store is the document-store surface the sync layer consumes. Adapters back
// it with Firestore, Postgres, or process memory; all of them share these
// semantics:
//
//   - Subscribe delivers the initial snapshot and then one snapshot per
//     matching change until cancelled or a terminal error.
//   - SetMerge upserts only the given fields and creates the document when
//     missing; Update fails with ErrNotFound on a missing document.
//   - Commit applies all operations or none.
//   - Array sentinels (ArrayUnion/ArrayRemove) and ServerTimestamp are
//     resolved by the adapter, never by the caller's clock.
type Store interface {
	Subscribe(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (CancelFunc, error)
	Get(ctx context.Context, path, id string) (Document, error)
	GetAll(ctx context.Context, q Query) ([]Document, error)
	Add(ctx context.Context, path string, fields map[string]any) (string, error)
	SetMerge(ctx context.Context, path, id string, fields map[string]any) error
	Update(ctx context.Context, path, id string, fields map[string]any) error
	Commit(ctx context.Context, ops []WriteOp) error
}

type serverTimestamp struct{}

type arrayUnion struct{ Elems []string }

type arrayRemove struct{ Elems []string }

// ServerTimestamp returns the write-time marker resolved to an authoritative
// time by the store.
func ServerTimestamp() any { return serverTimestamp{} }

// ArrayUnion returns a sentinel that adds values to an array field with set
// semantics: already-present values are left alone.
func ArrayUnion(values ...string) any { return arrayUnion{Elems: values} }

// ArrayRemove returns a sentinel that removes values from an array field.
// Absent values are a no-op.
func ArrayRemove(values ...string) any { return arrayRemove{Elems: values} }

// newDocID generates a store-assigned document id for self-hosted adapters.
func newDocID() string { return uuid.NewString() }
