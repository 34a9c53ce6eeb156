package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PGStore is a self-hosted Store backed by Postgres: one JSONB row per
// document, transactions for atomic commits, and poll-based live queries.
// It exists for deployments that cannot use the managed backend.
type PGStore struct {
	db           *sqlx.DB
	pollInterval time.Duration
	now          func() time.Time

	mu     sync.Mutex
	closed bool
}

// ConnectPG opens the database, applies migrations, and returns a ready
// PGStore.
func ConnectPG(dsn string, pollInterval time.Duration) (*PGStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &PGStore{
		db:           db,
		pollInterval: pollInterval,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
            collection TEXT NOT NULL,
            id TEXT NOT NULL,
            fields JSONB NOT NULL DEFAULT '{}'::jsonb,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (collection, id)
        );`,
		`CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection);`,
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}

// Close stops polling subscriptions and closes the pool.
func (s *PGStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.db.Close()
}

type docRow struct {
	ID     string `db:"id"`
	Fields []byte `db:"fields"`
}

func (s *PGStore) loadCollection(ctx context.Context, path string) ([]Document, error) {
	var rows []docRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, fields FROM documents WHERE collection=$1 ORDER BY id`, path)
	if err != nil {
		return nil, mapPGErr(err)
	}
	out := make([]Document, 0, len(rows))
	for _, row := range rows {
		fields, err := decodeJSONFields(row.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, Document{ID: row.ID, Fields: fields})
	}
	return out, nil
}

func (s *PGStore) Get(ctx context.Context, path, id string) (Document, error) {
	var row docRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, fields FROM documents WHERE collection=$1 AND id=$2`, path, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, mapPGErr(err)
	}
	fields, err := decodeJSONFields(row.Fields)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Fields: fields}, nil
}

func (s *PGStore) GetAll(ctx context.Context, q Query) ([]Document, error) {
	docs, err := s.loadCollection(ctx, q.Path)
	if err != nil {
		return nil, err
	}
	return filterAndSort(docs, q), nil
}

func (s *PGStore) Add(ctx context.Context, path string, fields map[string]any) (string, error) {
	id := newDocID()
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		return s.upsertInTx(ctx, tx, path, id, fields, true)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *PGStore) SetMerge(ctx context.Context, path, id string, fields map[string]any) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return s.upsertInTx(ctx, tx, path, id, fields, true)
	})
}

func (s *PGStore) Update(ctx context.Context, path, id string, fields map[string]any) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return s.upsertInTx(ctx, tx, path, id, fields, false)
	})
}

func (s *PGStore) Commit(ctx context.Context, ops []WriteOp) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, op := range ops {
			switch op.Kind {
			case OpDelete:
				res, err := tx.ExecContext(ctx,
					`DELETE FROM documents WHERE collection=$1 AND id=$2`, op.Path, op.ID)
				if err != nil {
					return mapPGErr(err)
				}
				if n, _ := res.RowsAffected(); n == 0 {
					return ErrNotFound
				}
			case OpUpdate:
				if err := s.upsertInTx(ctx, tx, op.Path, op.ID, op.Fields, false); err != nil {
					return err
				}
			default:
				if err := s.upsertInTx(ctx, tx, op.Path, op.ID, op.Fields, true); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *PGStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapPGErr(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapPGErr(err)
	}
	return nil
}

// upsertInTx merges fields into the stored JSONB, resolving array and
// timestamp sentinels against the current row under a row lock.
func (s *PGStore) upsertInTx(ctx context.Context, tx *sqlx.Tx, path, id string, fields map[string]any, createIfMissing bool) error {
	var raw []byte
	err := tx.GetContext(ctx, &raw,
		`SELECT fields FROM documents WHERE collection=$1 AND id=$2 FOR UPDATE`, path, id)
	missing := errors.Is(err, sql.ErrNoRows)
	if err != nil && !missing {
		return mapPGErr(err)
	}
	if missing && !createIfMissing {
		return ErrNotFound
	}

	existing := map[string]any{}
	if !missing {
		if existing, err = decodeJSONFields(raw); err != nil {
			return err
		}
	}
	for k, v := range fields {
		switch sv := v.(type) {
		case serverTimestamp:
			existing[k] = s.now()
		case arrayUnion:
			existing[k] = UnionStrings(toStringList(existing[k]), sv.Elems...)
		case arrayRemove:
			existing[k] = RemoveStrings(toStringList(existing[k]), sv.Elems...)
		default:
			existing[k] = v
		}
	}

	encoded, err := json.Marshal(existing)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields, updated_at) VALUES ($1, $2, $3, NOW())
         ON CONFLICT (collection, id) DO UPDATE SET fields = EXCLUDED.fields, updated_at = NOW()`,
		path, id, encoded)
	return mapPGErr(err)
}

// Subscribe polls the query and delivers a snapshot whenever the result set
// changes. The initial snapshot is delivered from the first poll.
func (s *PGStore) Subscribe(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		var lastPrint []byte
		first := true
		for {
			if !first {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
			first = false

			snap, err := s.GetAll(ctx, q)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				onError(err)
				return
			}
			print, err := json.Marshal(snap)
			if err != nil {
				onError(err)
				return
			}
			if string(print) == string(lastPrint) {
				continue
			}
			lastPrint = print
			if ctx.Err() != nil {
				return
			}
			onSnapshot(snap)
		}
	}()
	return CancelFunc(cancel), nil
}

func filterAndSort(docs []Document, q Query) []Document {
	if q.DocID != "" {
		for _, d := range docs {
			if d.ID == q.DocID {
				return []Document{d}
			}
		}
		return []Document{}
	}
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.WhereContains != nil && !containsString(toStringList(d.Fields[q.WhereContains.Field]), q.WhereContains.Value) {
			continue
		}
		if q.WhereEqual != nil && !equalJSONValue(d.Fields[q.WhereEqual.Field], q.WhereEqual.Value) {
			continue
		}
		out = append(out, d)
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			ti := jsonTime(out[i].Fields[q.OrderBy])
			tj := jsonTime(out[j].Fields[q.OrderBy])
			if !ti.Equal(tj) {
				if q.Desc {
					return ti.After(tj)
				}
				return ti.Before(tj)
			}
			return out[i].ID < out[j].ID
		})
	}
	return out
}

// timestampFields are the document fields that hold timestamps. Only these
// get restored to time.Time after a JSON round trip; user-supplied strings
// that merely look like timestamps must stay strings.
var timestampFields = map[string]bool{
	"createdAt":     true,
	"lastMessageAt": true,
}

func decodeJSONFields(raw []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	// JSON round-trips timestamps as RFC 3339 strings; restore them so
	// consumers see the same shapes the other adapters produce.
	for k, v := range fields {
		if !timestampFields[k] {
			continue
		}
		if str, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, str); err == nil {
				fields[k] = t
			}
		}
	}
	return fields, nil
}

func equalJSONValue(have any, want any) bool {
	if have == want {
		return true
	}
	hs, hOK := have.(string)
	ws, wOK := want.(string)
	return hOK && wOK && hs == ws
}

func jsonTime(v any) time.Time {
	switch tv := v.(type) {
	case time.Time:
		return tv
	case string:
		if t, err := time.Parse(time.RFC3339Nano, tv); err == nil {
			return t
		}
	}
	return time.Time{}
}

func mapPGErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return ErrUnavailable
	}
	return err
}
