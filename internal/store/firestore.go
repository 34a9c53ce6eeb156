package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gfs "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore adapts a Firestore client to the Store interface. This is
// the production backend; the remote service assigns timestamps and document
// ids and fans out snapshot listeners.
type FirestoreStore struct {
	client *gfs.Client
}

// NewFirestoreStore wraps an existing client.
func NewFirestoreStore(client *gfs.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) col(path string) *gfs.CollectionRef {
	return s.client.Collection(path)
}

func (s *FirestoreStore) doc(path, id string) *gfs.DocumentRef {
	return s.client.Collection(path).Doc(id)
}

func (s *FirestoreStore) Subscribe(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)

	if q.DocID != "" {
		go s.watchDoc(ctx, s.doc(q.Path, q.DocID), onSnapshot, onError)
		return CancelFunc(cancel), nil
	}

	query := s.buildQuery(q)
	go s.watchQuery(ctx, query, onSnapshot, onError)
	return CancelFunc(cancel), nil
}

func (s *FirestoreStore) watchQuery(ctx context.Context, query gfs.Query, onSnapshot SnapshotFunc, onError ErrorFunc) {
	it := query.Snapshots(ctx)
	defer it.Stop()
	for {
		qs, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return
			}
			onError(mapFirestoreErr(err))
			return
		}
		snap, err := collectDocs(qs.Documents)
		if err != nil {
			onError(mapFirestoreErr(err))
			return
		}
		onSnapshot(snap)
	}
}

func (s *FirestoreStore) watchDoc(ctx context.Context, ref *gfs.DocumentRef, onSnapshot SnapshotFunc, onError ErrorFunc) {
	it := ref.Snapshots(ctx)
	defer it.Stop()
	for {
		ds, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return
			}
			onError(mapFirestoreErr(err))
			return
		}
		if !ds.Exists() {
			onSnapshot(Snapshot{})
			continue
		}
		onSnapshot(Snapshot{{ID: ds.Ref.ID, Fields: ds.Data()}})
	}
}

func (s *FirestoreStore) buildQuery(q Query) gfs.Query {
	query := s.col(q.Path).Query
	if q.WhereContains != nil {
		query = query.Where(q.WhereContains.Field, "array-contains", q.WhereContains.Value)
	}
	if q.WhereEqual != nil {
		query = query.Where(q.WhereEqual.Field, "==", q.WhereEqual.Value)
	}
	if q.OrderBy != "" {
		dir := gfs.Asc
		if q.Desc {
			dir = gfs.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	return query
}

func (s *FirestoreStore) Get(ctx context.Context, path, id string) (Document, error) {
	ds, err := s.doc(path, id).Get(ctx)
	if err != nil {
		return Document{}, mapFirestoreErr(err)
	}
	return Document{ID: ds.Ref.ID, Fields: ds.Data()}, nil
}

func (s *FirestoreStore) GetAll(ctx context.Context, q Query) ([]Document, error) {
	snap, err := collectDocs(s.buildQuery(q).Documents(ctx))
	if err != nil {
		return nil, mapFirestoreErr(err)
	}
	return snap, nil
}

func (s *FirestoreStore) Add(ctx context.Context, path string, fields map[string]any) (string, error) {
	ref, _, err := s.col(path).Add(ctx, translateFields(fields))
	if err != nil {
		return "", mapFirestoreErr(err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) SetMerge(ctx context.Context, path, id string, fields map[string]any) error {
	_, err := s.doc(path, id).Set(ctx, translateFields(fields), gfs.MergeAll)
	return mapFirestoreErr(err)
}

func (s *FirestoreStore) Update(ctx context.Context, path, id string, fields map[string]any) error {
	updates := make([]gfs.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, gfs.Update{Path: k, Value: translateValue(v)})
	}
	_, err := s.doc(path, id).Update(ctx, updates)
	return mapFirestoreErr(err)
}

// maxBatchWrites is the backend's per-batch write limit. Commits above it
// are refused rather than split: splitting would make a mid-sequence
// failure observable as a partial write.
const maxBatchWrites = 500

func (s *FirestoreStore) Commit(ctx context.Context, ops []WriteOp) error {
	if len(ops) > maxBatchWrites {
		return fmt.Errorf("firestore: commit of %d writes exceeds the %d batch limit", len(ops), maxBatchWrites)
	}

	batch := s.client.Batch()
	for _, op := range ops {
		ref := s.doc(op.Path, op.ID)
		switch op.Kind {
		case OpDelete:
			batch.Delete(ref)
		case OpUpdate:
			updates := make([]gfs.Update, 0, len(op.Fields))
			for k, v := range op.Fields {
				updates = append(updates, gfs.Update{Path: k, Value: translateValue(v)})
			}
			batch.Update(ref, updates)
		default:
			batch.Set(ref, translateFields(op.Fields), gfs.MergeAll)
		}
	}
	_, err := batch.Commit(ctx)
	return mapFirestoreErr(err)
}

func collectDocs(it *gfs.DocumentIterator) (Snapshot, error) {
	defer it.Stop()
	var snap Snapshot
	for {
		ds, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return snap, nil
		}
		if err != nil {
			return nil, err
		}
		snap = append(snap, Document{ID: ds.Ref.ID, Fields: ds.Data()})
	}
}

func translateFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = translateValue(v)
	}
	return out
}

func translateValue(v any) any {
	switch sv := v.(type) {
	case serverTimestamp:
		return gfs.ServerTimestamp
	case arrayUnion:
		return gfs.ArrayUnion(toAnySlice(sv.Elems)...)
	case arrayRemove:
		return gfs.ArrayRemove(toAnySlice(sv.Elems)...)
	default:
		return v
	}
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func mapFirestoreErr(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return ErrNotFound
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	}
	if strings.Contains(err.Error(), "connection refused") {
		return ErrUnavailable
	}
	return err
}

var _ Store = (*FirestoreStore)(nil)
