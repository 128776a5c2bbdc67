package session

import (
	"context"
	"sync"
	"time"
)

const shardCount = 32

type shard struct {
	mu     sync.RWMutex
	states map[int64]*State
}

// MemoryStore partitions sessions across fixed shards so users that hash to
// different shards never contend on the same mutex.
type MemoryStore struct {
	shards   [shardCount]*shard
	idleTTL  time.Duration
	hookMu   sync.RWMutex
	onExpire func(*State)
	now      func() time.Time
}

// NewMemoryStore creates a store. idleTTL <= 0 disables idle reclaim.
func NewMemoryStore(idleTTL time.Duration) *MemoryStore {
	m := &MemoryStore{idleTTL: idleTTL, now: func() time.Time { return time.Now().UTC() }}
	for i := range m.shards {
		m.shards[i] = &shard{states: make(map[int64]*State)}
	}
	return m
}

func (m *MemoryStore) SetExpireHook(hook func(*State)) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.onExpire = hook
}

func (m *MemoryStore) shardFor(userID int64) *shard {
	// Knuth multiplicative hash spreads sequential ids across shards.
	h := uint64(userID) * 2654435761
	return m.shards[h%shardCount]
}

func (m *MemoryStore) Get(_ context.Context, userID int64) (*State, error) {
	sh := m.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.states[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, s *State) error {
	c := s.Clone()
	sh := m.shardFor(c.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.states[c.UserID] = c
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, userID int64) (bool, error) {
	sh := m.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.states[userID]; !ok {
		return false, nil
	}
	delete(sh.states, userID)
	return true, nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	n := 0
	for _, sh := range m.shards {
		sh.mu.RLock()
		n += len(sh.states)
		sh.mu.RUnlock()
	}
	return n, nil
}

// StartJanitor periodically drops sessions idle for longer than the store's TTL.
func (m *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if m.idleTTL <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireIdle()
			}
		}
	}()
}

func (m *MemoryStore) expireIdle() {
	now := m.now()
	var expired []*State

	for _, sh := range m.shards {
		sh.mu.Lock()
		for id, s := range sh.states {
			if now.Sub(s.UpdatedAt) < m.idleTTL {
				continue
			}
			delete(sh.states, id)
			c := s.Clone()
			c.Status = StatusCancelled
			expired = append(expired, c)
		}
		sh.mu.Unlock()
	}

	m.hookMu.RLock()
	hook := m.onExpire
	m.hookMu.RUnlock()
	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}
