package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSubmissionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &SubmissionRecord{
		Reference:  "ref-1",
		Name:       "Jane Doe",
		Email:      "jane@example.com",
		Message:    "Hello",
		Newsletter: true,
	}
	id, err := store.InsertSubmission(ctx, rec)
	if err != nil {
		t.Fatalf("InsertSubmission: %v", err)
	}
	if id == 0 || rec.ID != id {
		t.Fatalf("unexpected id %d (record %d)", id, rec.ID)
	}
	if rec.Status != SubmissionNew {
		t.Errorf("default status = %q", rec.Status)
	}

	got, err := store.GetSubmission(ctx, id)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if got.Name != "Jane Doe" || !got.Newsletter || got.Reference != "ref-1" {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if err := store.MarkSubmissionStatus(ctx, id, SubmissionReplied); err != nil {
		t.Fatalf("MarkSubmissionStatus: %v", err)
	}
	list, err := store.ListSubmissions(ctx, SubmissionReplied, 10)
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(list) != 1 || list[0].ID != id {
		t.Errorf("filtered list = %+v", list)
	}

	if err := store.MarkSubmissionStatus(ctx, id, "spam"); err == nil {
		t.Error("expected invalid status error")
	}
	if err := store.MarkSubmissionStatus(ctx, 999, SubmissionRead); !errors.Is(err, ErrNoSubmission) {
		t.Errorf("expected ErrNoSubmission, got %v", err)
	}
	if _, err := store.GetSubmission(ctx, 999); !errors.Is(err, ErrNoSubmission) {
		t.Errorf("expected ErrNoSubmission, got %v", err)
	}
}

func TestListSubmissionsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		_, err := store.InsertSubmission(ctx, &SubmissionRecord{
			Reference:   name,
			Name:        name,
			Email:       name + "@example.com",
			Message:     "hi",
			SubmittedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.ListSubmissions(ctx, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "third" || list[1].Name != "second" {
		t.Errorf("unexpected order: %+v", list)
	}

	n, err := store.CountSubmissions(ctx)
	if err != nil || n != 3 {
		t.Errorf("CountSubmissions = %d, %v", n, err)
	}
}
