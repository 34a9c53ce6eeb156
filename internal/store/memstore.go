package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-process Store. It backs tests and serves as the
// zero-configuration fallback backend when no Firestore project or Postgres
// DSN is configured. Snapshots are delivered synchronously on the mutating
// goroutine, which makes test sequences deterministic.
type MemStore struct {
	mu       sync.Mutex
	docs     map[string]map[string]map[string]any // path -> id -> fields
	subs     map[int]*memSub
	nextSub  int
	now      func() time.Time
	failNext map[string]error
}

type memSub struct {
	query  Query
	onSnap SnapshotFunc
	onErr  ErrorFunc
	done   bool
}

// NewMemStore builds an empty MemStore using the wall clock for server
// timestamps.
func NewMemStore() *MemStore {
	return &MemStore{
		docs:     make(map[string]map[string]map[string]any),
		subs:     make(map[int]*memSub),
		now:      func() time.Time { return time.Now().UTC() },
		failNext: make(map[string]error),
	}
}

// SetClock replaces the server-timestamp clock.
func (s *MemStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailNext makes the next call of the named operation ("add", "setmerge",
// "update", "commit", "get", "getall") fail with err, leaving state
// untouched.
func (s *MemStore) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = err
}

func (s *MemStore) takeFailure(op string) error {
	if err, ok := s.failNext[op]; ok {
		delete(s.failNext, op)
		return err
	}
	return nil
}

// Subscribe registers the query and synchronously delivers the initial
// snapshot before returning.
func (s *MemStore) Subscribe(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (CancelFunc, error) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	sub := &memSub{query: q, onSnap: onSnapshot, onErr: onError}
	s.subs[id] = sub
	initial := s.runQueryLocked(q)
	s.mu.Unlock()

	onSnapshot(initial)

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.subs[id]; ok {
			cur.done = true
			delete(s.subs, id)
		}
	}
	return cancel, nil
}

// FailSubscriptions delivers err to every live subscriber of path and
// terminates those subscriptions, mirroring a backend listen failure.
func (s *MemStore) FailSubscriptions(path string, err error) {
	s.mu.Lock()
	var failed []*memSub
	for id, sub := range s.subs {
		if sub.query.Path == path {
			sub.done = true
			delete(s.subs, id)
			failed = append(failed, sub)
		}
	}
	s.mu.Unlock()
	for _, sub := range failed {
		if sub.onErr != nil {
			sub.onErr(err)
		}
	}
}

func (s *MemStore) Get(ctx context.Context, path, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("get"); err != nil {
		return Document{}, err
	}
	col, ok := s.docs[path]
	if !ok {
		return Document{}, ErrNotFound
	}
	fields, ok := col[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Fields: copyFields(fields)}, nil
}

func (s *MemStore) GetAll(ctx context.Context, q Query) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("getall"); err != nil {
		return nil, err
	}
	return s.runQueryLocked(q), nil
}

func (s *MemStore) Add(ctx context.Context, path string, fields map[string]any) (string, error) {
	s.mu.Lock()
	if err := s.takeFailure("add"); err != nil {
		s.mu.Unlock()
		return "", err
	}
	id := newDocID()
	s.applySetLocked(path, id, fields, false)
	notify := s.pendingNotifyLocked(path)
	s.mu.Unlock()

	deliver(notify)
	return id, nil
}

func (s *MemStore) SetMerge(ctx context.Context, path, id string, fields map[string]any) error {
	s.mu.Lock()
	if err := s.takeFailure("setmerge"); err != nil {
		s.mu.Unlock()
		return err
	}
	s.applySetLocked(path, id, fields, true)
	notify := s.pendingNotifyLocked(path)
	s.mu.Unlock()

	deliver(notify)
	return nil
}

func (s *MemStore) Update(ctx context.Context, path, id string, fields map[string]any) error {
	s.mu.Lock()
	if err := s.takeFailure("update"); err != nil {
		s.mu.Unlock()
		return err
	}
	col, ok := s.docs[path]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if _, ok := col[id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.applySetLocked(path, id, fields, true)
	notify := s.pendingNotifyLocked(path)
	s.mu.Unlock()

	deliver(notify)
	return nil
}

// Commit applies every operation or none. Validation runs before any state
// changes so a failing op cannot leave partial writes behind.
func (s *MemStore) Commit(ctx context.Context, ops []WriteOp) error {
	s.mu.Lock()
	if err := s.takeFailure("commit"); err != nil {
		s.mu.Unlock()
		return err
	}
	for _, op := range ops {
		if op.Kind == OpUpdate || op.Kind == OpDelete {
			col, ok := s.docs[op.Path]
			if !ok {
				s.mu.Unlock()
				return ErrNotFound
			}
			if _, ok := col[op.ID]; !ok {
				s.mu.Unlock()
				return ErrNotFound
			}
		}
	}
	paths := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case OpDelete:
			delete(s.docs[op.Path], op.ID)
		default:
			s.applySetLocked(op.Path, op.ID, op.Fields, true)
		}
		paths[op.Path] = struct{}{}
	}
	var notify []func()
	for path := range paths {
		notify = append(notify, s.pendingNotifyLocked(path)...)
	}
	s.mu.Unlock()

	deliver(notify)
	return nil
}

// DocCount reports the number of documents under path.
func (s *MemStore) DocCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs[path])
}

func (s *MemStore) applySetLocked(path, id string, fields map[string]any, merge bool) {
	col, ok := s.docs[path]
	if !ok {
		col = make(map[string]map[string]any)
		s.docs[path] = col
	}
	existing := col[id]
	if existing == nil || !merge {
		existing = make(map[string]any)
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
	col[id] = existing
}

// pendingNotifyLocked snapshots the subscribers of path; the returned
// closures run outside the lock so a callback may call back into the store.
func (s *MemStore) pendingNotifyLocked(path string) []func() {
	var out []func()
	for _, sub := range s.subs {
		if sub.query.Path != path || sub.done {
			continue
		}
		snap := s.runQueryLocked(sub.query)
		cb := sub.onSnap
		out = append(out, func() { cb(snap) })
	}
	return out
}

func deliver(notify []func()) {
	for _, fn := range notify {
		fn()
	}
}

func (s *MemStore) runQueryLocked(q Query) Snapshot {
	col := s.docs[q.Path]
	if q.DocID != "" {
		fields, ok := col[q.DocID]
		if !ok {
			return Snapshot{}
		}
		return Snapshot{{ID: q.DocID, Fields: copyFields(fields)}}
	}

	snap := make(Snapshot, 0, len(col))
	for id, fields := range col {
		if q.WhereContains != nil && !containsString(toStringList(fields[q.WhereContains.Field]), q.WhereContains.Value) {
			continue
		}
		if q.WhereEqual != nil && fields[q.WhereEqual.Field] != q.WhereEqual.Value {
			continue
		}
		snap = append(snap, Document{ID: id, Fields: copyFields(fields)})
	}

	sort.Slice(snap, func(i, j int) bool {
		if q.OrderBy != "" {
			ti, iOK := snap[i].Fields[q.OrderBy].(time.Time)
			tj, jOK := snap[j].Fields[q.OrderBy].(time.Time)
			if iOK || jOK {
				if !ti.Equal(tj) {
					if q.Desc {
						return ti.After(tj)
					}
					return ti.Before(tj)
				}
			}
		}
		return snap[i].ID < snap[j].ID
	})
	return snap
}

func containsString(list []string, v any) bool {
	want, ok := v.(string)
	if !ok {
		return false
	}
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func toStringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if list, ok := v.([]string); ok {
			out[k] = append([]string(nil), list...)
			continue
		}
		out[k] = v
	}
	return out
}

var _ Store = (*MemStore)(nil)
