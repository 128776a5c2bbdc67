// Package records is the durable side of the questionnaire: users and the
// questionnaire documents they committed.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle of a committed questionnaire.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusCompleted Status = "completed"
	StatusReviewed  Status = "reviewed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusCompleted, StatusReviewed:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound      = errors.New("record not found")
	ErrUnknownUser   = errors.New("unknown user")
	ErrInvalidStatus = errors.New("status cannot be written by the questionnaire engine")
	ErrNotReviewable = errors.New("only completed questionnaires can be reviewed")
)

// RecordID identifies one questionnaire row.
type RecordID string

// Document maps field names to normalized values.
type Document map[string]any

// Record is a committed questionnaire.
type Record struct {
	ID        RecordID  `json:"id"`
	UserID    int64     `json:"user_id"`
	Data      Document  `json:"data"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile is what the transport knows about a user on first contact.
type Profile struct {
	ExternalID int64  `json:"external_id"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
}

type User struct {
	ID         int64     `json:"id"`
	ExternalID int64     `json:"external_id"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Listing is a record joined with its owner, for administrative views.
type Listing struct {
	Record
	User User `json:"user"`
}

// Gateway is the only thing the session engine needs from durable storage.
// It writes the document as the user's current draft, or as a new record
// when the previous one was already completed or reviewed.
type Gateway interface {
	UpsertQuestionnaire(ctx context.Context, userID int64, doc Document, status Status) (RecordID, error)
}

// Store persists users and questionnaires.
type Store interface {
	Gateway
	ResolveUser(ctx context.Context, p Profile) (int64, error)
	GetUser(ctx context.Context, externalID int64) (User, error)
	LatestQuestionnaire(ctx context.Context, userID int64) (Record, error)
	DeleteQuestionnaires(ctx context.Context, userID int64) (int64, error)
	MarkReviewed(ctx context.Context, id RecordID) error
	// ListQuestionnaires returns records newest first. An empty status lists all.
	ListQuestionnaires(ctx context.Context, status Status) ([]Listing, error)
	Ping(ctx context.Context) error
	Close() error
}

func checkListable(status Status) error {
	if status != "" && !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}
	return nil
}

func checkWritable(status Status) error {
	if status != StatusDraft && status != StatusCompleted {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return nil
}

func encodeDocument(doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// decodeDocument keeps integers as int64 so a document read back equals the
// one the engine wrote.
func decodeDocument(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	for k, v := range doc {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			doc[k] = i
		} else if f, err := n.Float64(); err == nil {
			doc[k] = f
		}
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}
