package sync

import (
	"context"
	"sync"

	"chat-sync/internal/store"
)

// Subscriptions owns live query lifecycles for one consumer. It guarantees
// at most one active subscription per scope: starting a new one for a scope
// tears down the old one first. Teardown is tagged with a generation counter
// checked at delivery time, so a snapshot already in flight when Stop
// returns is dropped instead of reaching the consumer.
type Subscriptions struct {
	store store.Store

	mu     sync.Mutex
	active map[string]*subscription
	gen    uint64
}

type subscription struct {
	gen    uint64
	cancel store.CancelFunc
}

// NewSubscriptions builds an empty manager over the given store.
func NewSubscriptions(st store.Store) *Subscriptions {
	return &Subscriptions{store: st, active: make(map[string]*subscription)}
}

// Replace starts a subscription for scope, tearing down any previous one
// for the same scope. onError fires at most once; the subscription is
// considered terminated afterwards and is not retried.
func (s *Subscriptions) Replace(ctx context.Context, scope string, q store.Query, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) error {
	s.mu.Lock()
	if old, ok := s.active[scope]; ok {
		delete(s.active, scope)
		if old.cancel != nil {
			old.cancel()
		}
	}
	s.gen++
	gen := s.gen
	sub := &subscription{gen: gen}
	s.active[scope] = sub
	s.mu.Unlock()

	wrappedSnap := func(snap store.Snapshot) {
		if !s.alive(scope, gen) {
			return
		}
		onSnapshot(snap)
	}
	wrappedErr := func(err error) {
		if !s.drop(scope, gen) {
			return
		}
		onError(err)
	}

	cancel, err := s.store.Subscribe(ctx, q, wrappedSnap, wrappedErr)
	if err != nil {
		s.drop(scope, gen)
		return err
	}

	s.mu.Lock()
	cur, ok := s.active[scope]
	if !ok || cur.gen != gen {
		// superseded or stopped while subscribing
		s.mu.Unlock()
		cancel()
		return nil
	}
	cur.cancel = cancel
	s.mu.Unlock()
	return nil
}

// Stop tears down the scope's subscription if one is active. Idempotent.
func (s *Subscriptions) Stop(scope string) {
	s.mu.Lock()
	sub, ok := s.active[scope]
	if ok {
		delete(s.active, scope)
	}
	s.mu.Unlock()
	if ok && sub.cancel != nil {
		sub.cancel()
	}
}

// StopAll tears down every active subscription.
func (s *Subscriptions) StopAll() {
	s.mu.Lock()
	subs := s.active
	s.active = make(map[string]*subscription)
	s.mu.Unlock()
	for _, sub := range subs {
		if sub.cancel != nil {
			sub.cancel()
		}
	}
}

func (s *Subscriptions) alive(scope string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.active[scope]
	return ok && sub.gen == gen
}

// drop removes the scope entry if it still belongs to gen, reporting
// whether this call removed it. Used to make error delivery one-shot.
func (s *Subscriptions) drop(scope string, gen uint64) bool {
	s.mu.Lock()
	sub, ok := s.active[scope]
	if !ok || sub.gen != gen {
		s.mu.Unlock()
		return false
	}
	delete(s.active, scope)
	s.mu.Unlock()
	if sub.cancel != nil {
		sub.cancel()
	}
	return true
}
