package records

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryResolveUserIsStable(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	first, err := s.ResolveUser(ctx, Profile{ExternalID: 9001, FirstName: "Alex"})
	if err != nil {
		t.Fatalf("ResolveUser() error = %v", err)
	}
	second, err := s.ResolveUser(ctx, Profile{ExternalID: 9001, Username: "alexd"})
	if err != nil {
		t.Fatalf("ResolveUser() second error = %v", err)
	}
	if first != second {
		t.Fatalf("ResolveUser() ids = %d, %d, want equal", first, second)
	}

	u, err := s.GetUser(ctx, 9001)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if u.FirstName != "Alex" || u.Username != "alexd" {
		t.Fatalf("profile not merged: %+v", u)
	}
}

func TestInMemoryUpsertOverwritesDraftOnly(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	uid, _ := s.ResolveUser(ctx, Profile{ExternalID: 1})

	draftID, err := s.UpsertQuestionnaire(ctx, uid, Document{"full_name": "Alex Doe"}, StatusDraft)
	if err != nil {
		t.Fatalf("UpsertQuestionnaire() error = %v", err)
	}
	againID, err := s.UpsertQuestionnaire(ctx, uid, Document{"full_name": "Alex Doe", "age": int64(30)}, StatusCompleted)
	if err != nil {
		t.Fatalf("UpsertQuestionnaire() second error = %v", err)
	}
	if againID != draftID {
		t.Fatalf("draft not overwritten: %q != %q", againID, draftID)
	}

	// The completed record must not be overwritten by the next save.
	newID, err := s.UpsertQuestionnaire(ctx, uid, Document{"full_name": "Alex Roe"}, StatusDraft)
	if err != nil {
		t.Fatalf("UpsertQuestionnaire() third error = %v", err)
	}
	if newID == draftID {
		t.Fatalf("completed record was overwritten")
	}

	latest, err := s.LatestQuestionnaire(ctx, uid)
	if err != nil {
		t.Fatalf("LatestQuestionnaire() error = %v", err)
	}
	if latest.ID != newID || latest.Status != StatusDraft {
		t.Fatalf("unexpected latest record: %+v", latest)
	}
}

func TestInMemoryRoundTripKeepsIntegers(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	uid, _ := s.ResolveUser(ctx, Profile{ExternalID: 1})

	doc := Document{"full_name": "Alex Doe", "age": int64(30), "phone": "+79123456789"}
	if _, err := s.UpsertQuestionnaire(ctx, uid, doc, StatusDraft); err != nil {
		t.Fatalf("UpsertQuestionnaire() error = %v", err)
	}
	got, err := s.LatestQuestionnaire(ctx, uid)
	if err != nil {
		t.Fatalf("LatestQuestionnaire() error = %v", err)
	}
	for k, want := range doc {
		if got.Data[k] != want {
			t.Fatalf("Data[%q] = %#v, want %#v", k, got.Data[k], want)
		}
	}
}

func TestInMemoryUpsertRejects(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	if _, err := s.UpsertQuestionnaire(ctx, 77, Document{}, StatusDraft); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("error = %v, want ErrUnknownUser", err)
	}
	uid, _ := s.ResolveUser(ctx, Profile{ExternalID: 1})
	if _, err := s.UpsertQuestionnaire(ctx, uid, Document{}, StatusReviewed); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("error = %v, want ErrInvalidStatus", err)
	}
}

func TestInMemoryMarkReviewed(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	uid, _ := s.ResolveUser(ctx, Profile{ExternalID: 1})

	id, _ := s.UpsertQuestionnaire(ctx, uid, Document{"a": "b"}, StatusDraft)
	if err := s.MarkReviewed(ctx, id); !errors.Is(err, ErrNotReviewable) {
		t.Fatalf("MarkReviewed(draft) error = %v, want ErrNotReviewable", err)
	}
	_, _ = s.UpsertQuestionnaire(ctx, uid, Document{"a": "b"}, StatusCompleted)
	if err := s.MarkReviewed(ctx, id); err != nil {
		t.Fatalf("MarkReviewed() error = %v", err)
	}
	if err := s.MarkReviewed(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkReviewed(missing) error = %v, want ErrNotFound", err)
	}

	n, err := s.DeleteQuestionnaires(ctx, uid)
	if err != nil || n != 1 {
		t.Fatalf("DeleteQuestionnaires() = %d, %v, want 1, nil", n, err)
	}
	if _, err := s.LatestQuestionnaire(ctx, uid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestQuestionnaire() error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryListQuestionnaires(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	alex, _ := s.ResolveUser(ctx, Profile{ExternalID: 1, Username: "alexd"})
	maria, _ := s.ResolveUser(ctx, Profile{ExternalID: 2, FirstName: "Maria"})

	older, _ := s.UpsertQuestionnaire(ctx, alex, Document{"age": int64(30)}, StatusCompleted)
	_, _ = s.UpsertQuestionnaire(ctx, maria, Document{"age": int64(41)}, StatusDraft)
	// Promotes Maria's draft in place.
	_, _ = s.UpsertQuestionnaire(ctx, maria, Document{"age": int64(42)}, StatusCompleted)
	third, _ := s.UpsertQuestionnaire(ctx, alex, Document{"age": int64(31)}, StatusCompleted)
	completed, err := s.ListQuestionnaires(ctx, StatusCompleted)
	if err != nil {
		t.Fatalf("ListQuestionnaires() error = %v", err)
	}
	if len(completed) != 3 {
		t.Fatalf("completed = %d records, want 3", len(completed))
	}
	if completed[0].ID != third || completed[2].ID != older {
		t.Fatalf("order = %s, %s, %s; want newest first", completed[0].ID, completed[1].ID, completed[2].ID)
	}
	if completed[0].User.Username != "alexd" || completed[1].User.FirstName != "Maria" {
		t.Fatalf("owner not joined: %+v / %+v", completed[0].User, completed[1].User)
	}
	if completed[1].Data["age"] != int64(42) {
		t.Fatalf("Data[age] = %#v, want 42", completed[1].Data["age"])
	}

	if err := s.MarkReviewed(ctx, older); err != nil {
		t.Fatalf("MarkReviewed() error = %v", err)
	}
	reviewed, _ := s.ListQuestionnaires(ctx, StatusReviewed)
	if len(reviewed) != 1 || reviewed[0].ID != older {
		t.Fatalf("reviewed = %+v, want %s", reviewed, older)
	}
	all, _ := s.ListQuestionnaires(ctx, "")
	if len(all) != 3 {
		t.Fatalf("all = %d records, want 3", len(all))
	}
	if _, err := s.ListQuestionnaires(ctx, "archived"); err == nil {
		t.Fatalf("ListQuestionnaires(archived) error = nil, want error")
	}
}
