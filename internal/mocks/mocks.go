package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/cache"
	"chat-sync/internal/store"
)

type StoreMock struct {
	mock.Mock
}

var _ store.Store = (*StoreMock)(nil)

func (m *StoreMock) Subscribe(ctx context.Context, q store.Query, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) (store.CancelFunc, error) {
	args := m.Called(ctx, q, onSnapshot, onError)
	var cancel store.CancelFunc
	if val := args.Get(0); val != nil {
		cancel = val.(store.CancelFunc)
	}
	return cancel, args.Error(1)
}

func (m *StoreMock) Get(ctx context.Context, path, id string) (store.Document, error) {
	args := m.Called(ctx, path, id)
	var doc store.Document
	if val := args.Get(0); val != nil {
		doc = val.(store.Document)
	}
	return doc, args.Error(1)
}

func (m *StoreMock) GetAll(ctx context.Context, q store.Query) ([]store.Document, error) {
	args := m.Called(ctx, q)
	var docs []store.Document
	if val := args.Get(0); val != nil {
		docs = val.([]store.Document)
	}
	return docs, args.Error(1)
}

func (m *StoreMock) Add(ctx context.Context, path string, fields map[string]any) (string, error) {
	args := m.Called(ctx, path, fields)
	return args.String(0), args.Error(1)
}

func (m *StoreMock) SetMerge(ctx context.Context, path, id string, fields map[string]any) error {
	args := m.Called(ctx, path, id, fields)
	return args.Error(0)
}

func (m *StoreMock) Update(ctx context.Context, path, id string, fields map[string]any) error {
	args := m.Called(ctx, path, id, fields)
	return args.Error(0)
}

func (m *StoreMock) Commit(ctx context.Context, ops []store.WriteOp) error {
	args := m.Called(ctx, ops)
	return args.Error(0)
}

type CacheMock struct {
	mock.Mock
}

var _ cache.Cache = (*CacheMock)(nil)

func (m *CacheMock) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *CacheMock) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *CacheMock) Del(ctx context.Context, keys ...string) error {
	callArgs := make([]any, 0, len(keys)+1)
	callArgs = append(callArgs, ctx)
	for _, key := range keys {
		callArgs = append(callArgs, key)
	}
	args := m.Called(callArgs...)
	return args.Error(0)
}

func (m *CacheMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
