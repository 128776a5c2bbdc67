package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryStorePutGetRemove(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(time.Minute)

	if _, err := m.Get(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}

	now := time.Now().UTC()
	if err := m.Put(ctx, &State{UserID: 42, Values: map[string]any{}, Status: StatusInProgress, StartedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := m.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != 42 || got.Status != StatusInProgress {
		t.Fatalf("unexpected session state: %+v", got)
	}

	removed, err := m.Remove(ctx, 42)
	if err != nil || !removed {
		t.Fatalf("Remove() = %v, %v, want true, nil", removed, err)
	}
	removed, err = m.Remove(ctx, 42)
	if err != nil || removed {
		t.Fatalf("second Remove() = %v, %v, want false, nil", removed, err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(0)
	_ = m.Put(ctx, &State{UserID: 1, Values: map[string]any{"age": int64(30)}})

	got, _ := m.Get(ctx, 1)
	got.Values["age"] = int64(99)
	got.Cursor = 5

	again, _ := m.Get(ctx, 1)
	if again.Values["age"] != int64(30) {
		t.Fatalf("stored value mutated through returned copy: %v", again.Values["age"])
	}
	if again.Cursor != 0 {
		t.Fatalf("Cursor = %d, want 0", again.Cursor)
	}
}

func TestMemoryStoreConcurrentDistinctUsers(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(0)

	const users = 200
	var wg sync.WaitGroup
	for i := int64(0); i < users; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for step := 0; step < 20; step++ {
				s, err := m.Get(ctx, id)
				if errors.Is(err, ErrNotFound) {
					s = &State{UserID: id, Values: map[string]any{}}
				}
				s.Cursor++
				_ = m.Put(ctx, s)
			}
		}(i)
	}
	wg.Wait()

	n, _ := m.Count(ctx)
	if n != users {
		t.Fatalf("Count() = %d, want %d", n, users)
	}
	for i := int64(0); i < users; i++ {
		s, err := m.Get(ctx, i)
		if err != nil {
			t.Fatalf("Get(%d) error = %v", i, err)
		}
		if s.Cursor != 20 {
			t.Fatalf("user %d Cursor = %d, want 20 (lost update)", i, s.Cursor)
		}
	}
}

func TestMemoryStoreJanitorExpiresIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMemoryStore(30 * time.Millisecond)
	expired := make(chan int64, 1)
	m.SetExpireHook(func(s *State) { expired <- s.UserID })

	_ = m.Put(ctx, &State{UserID: 7, UpdatedAt: time.Now().UTC()})
	m.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case id := <-expired:
		if id != 7 {
			t.Fatalf("expired user = %d, want 7", id)
		}
	case <-time.After(time.Second):
		t.Fatalf("session was not reclaimed")
	}
	if _, err := m.Get(ctx, 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after expiry error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreJanitorDisabledWithoutTTL(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMemoryStore(0)
	_ = m.Put(ctx, &State{UserID: 7, UpdatedAt: time.Now().Add(-time.Hour)})
	m.StartJanitor(ctx, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, err := m.Get(ctx, 7); err != nil {
		t.Fatalf("Get() error = %v, want session kept", err)
	}
}
