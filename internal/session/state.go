package session

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusEmpty      Status = "empty"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusCancelled  Status = "cancelled"
)

var ErrNotFound = errors.New("session not found")

// State is one user's unsaved questionnaire. Cursor is the index of the
// pending field in schema order; it equals the field count once complete.
type State struct {
	UserID    int64          `json:"user_id"`
	Values    map[string]any `json:"values"`
	Previous  map[string]any `json:"previous,omitempty"`
	Cursor    int            `json:"cursor"`
	Status    Status         `json:"status"`
	StartedAt time.Time      `json:"started_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store is a keyed container of session state. Implementations must allow
// concurrent calls for distinct users without serializing them behind one lock.
type Store interface {
	Get(ctx context.Context, userID int64) (*State, error)
	Put(ctx context.Context, s *State) error
	Remove(ctx context.Context, userID int64) (bool, error)
	Count(ctx context.Context) (int, error)
}

func (s *State) Clone() *State {
	c := *s
	c.Values = cloneValues(s.Values)
	c.Previous = cloneValues(s.Previous)
	return &c
}

func cloneValues(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
