package records

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use. Documents go
// through the same JSON encoding as the postgres store.
type InMemoryStore struct {
	mu         sync.RWMutex
	nextUserID int64
	users      map[int64]*User // keyed by external id
	byID       map[int64]int64 // internal id -> external id
	records    map[int64][]*storedRecord
	now        func() time.Time
}

type storedRecord struct {
	Record
	raw []byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:   make(map[int64]*User),
		byID:    make(map[int64]int64),
		records: make(map[int64][]*storedRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryStore) ResolveUser(_ context.Context, p Profile) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[p.ExternalID]; ok {
		mergeProfile(u, p)
		return u.ID, nil
	}
	s.nextUserID++
	u := &User{
		ID:         s.nextUserID,
		ExternalID: p.ExternalID,
		Username:   p.Username,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		CreatedAt:  s.now(),
	}
	s.users[p.ExternalID] = u
	s.byID[u.ID] = p.ExternalID
	return u.ID, nil
}

func mergeProfile(u *User, p Profile) {
	if p.Username != "" {
		u.Username = p.Username
	}
	if p.FirstName != "" {
		u.FirstName = p.FirstName
	}
	if p.LastName != "" {
		u.LastName = p.LastName
	}
}

func (s *InMemoryStore) GetUser(_ context.Context, externalID int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[externalID]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

func (s *InMemoryStore) UpsertQuestionnaire(_ context.Context, userID int64, doc Document, status Status) (RecordID, error) {
	if err := checkWritable(status); err != nil {
		return "", err
	}
	raw, err := encodeDocument(doc)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[userID]; !ok {
		return "", fmt.Errorf("upsert questionnaire: %w", ErrUnknownUser)
	}
	now := s.now()
	list := s.records[userID]
	if n := len(list); n > 0 && list[n-1].Status == StatusDraft {
		r := list[n-1]
		r.raw = raw
		r.Status = status
		r.UpdatedAt = now
		return r.ID, nil
	}
	r := &storedRecord{
		Record: Record{
			ID:        RecordID(uuid.NewString()),
			UserID:    userID,
			Status:    status,
			CreatedAt: now,
			UpdatedAt: now,
		},
		raw: raw,
	}
	s.records[userID] = append(list, r)
	return r.ID, nil
}

func (s *InMemoryStore) LatestQuestionnaire(_ context.Context, userID int64) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.records[userID]
	if len(list) == 0 {
		return Record{}, ErrNotFound
	}
	r := list[len(list)-1]
	doc, err := decodeDocument(r.raw)
	if err != nil {
		return Record{}, err
	}
	out := r.Record
	out.Data = doc
	return out, nil
}

func (s *InMemoryStore) DeleteQuestionnaires(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.records[userID]))
	delete(s.records, userID)
	return n, nil
}

func (s *InMemoryStore) MarkReviewed(_ context.Context, id RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, list := range s.records {
		for _, r := range list {
			if r.ID != id {
				continue
			}
			if r.Status != StatusCompleted {
				return ErrNotReviewable
			}
			r.Status = StatusReviewed
			r.UpdatedAt = s.now()
			return nil
		}
	}
	return ErrNotFound
}

func (s *InMemoryStore) ListQuestionnaires(_ context.Context, status Status) ([]Listing, error) {
	if err := checkListable(status); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Listing{}
	for userID, list := range s.records {
		owner := *s.users[s.byID[userID]]
		for _, r := range list {
			if status != "" && r.Status != status {
				continue
			}
			doc, err := decodeDocument(r.raw)
			if err != nil {
				return nil, err
			}
			l := Listing{Record: r.Record, User: owner}
			l.Data = doc
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) Ping(context.Context) error { return nil }

func (s *InMemoryStore) Close() error { return nil }
