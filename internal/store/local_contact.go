package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sitesetup/internal/logging"
)

// Submission statuses.
const (
	SubmissionNew      = "new"
	SubmissionRead     = "read"
	SubmissionReplied  = "replied"
	SubmissionArchived = "archived"
)

// ValidSubmissionStatuses lists every status MarkSubmissionStatus accepts.
var ValidSubmissionStatuses = []string{SubmissionNew, SubmissionRead, SubmissionReplied, SubmissionArchived}

// ErrNoSubmission is returned when a submission id does not exist.
var ErrNoSubmission = errors.New("submission not found")

// SubmissionRecord is one row of contact_submissions.
type SubmissionRecord struct {
	ID          int64
	Reference   string
	Name        string
	Email       string
	Phone       string
	Company     string
	Service     string
	Budget      string
	Timeline    string
	Message     string
	Newsletter  bool
	SubmittedAt time.Time
	Status      string
}

// InsertSubmission writes one submission row and returns its id.
func (s *LocalStore) InsertSubmission(ctx context.Context, r *SubmissionRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Status == "" {
		r.Status = SubmissionNew
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_submissions
			(reference, name, email, phone, company, service, budget, timeline, message, newsletter, submitted_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Reference, r.Name, r.Email, r.Phone, r.Company, r.Service, r.Budget, r.Timeline,
		r.Message, boolToInt(r.Newsletter), r.SubmittedAt, r.Status)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to insert submission: %v", err)
		return 0, fmt.Errorf("failed to insert submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read submission id: %w", err)
	}
	r.ID = id
	logging.StoreDebug("Stored contact submission id=%d ref=%s", id, r.Reference)
	return id, nil
}

// ListSubmissions returns the newest submissions first. status filters when non-empty.
func (s *LocalStore) ListSubmissions(ctx context.Context, status string, limit int) ([]SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, reference, name, email, phone, company, service, budget, timeline, message, newsletter, submitted_at, status
		FROM contact_submissions`
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY submitted_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var out []SubmissionRecord
	for rows.Next() {
		var r SubmissionRecord
		var newsletter int
		if err := rows.Scan(&r.ID, &r.Reference, &r.Name, &r.Email, &r.Phone, &r.Company, &r.Service,
			&r.Budget, &r.Timeline, &r.Message, &newsletter, &r.SubmittedAt, &r.Status); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		r.Newsletter = newsletter != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountSubmissions returns the number of stored submissions.
func (s *LocalStore) CountSubmissions(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contact_submissions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return n, nil
}

// MarkSubmissionStatus moves a submission through the new/read/replied/archived workflow.
func (s *LocalStore) MarkSubmissionStatus(ctx context.Context, id int64, status string) error {
	if !contains(ValidSubmissionStatuses, status) {
		return fmt.Errorf("invalid submission status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE contact_submissions SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update submission %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoSubmission
	}
	return nil
}

// GetSubmission loads one submission by id.
func (s *LocalStore) GetSubmission(ctx context.Context, id int64) (*SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r SubmissionRecord
	var newsletter int
	err := s.db.QueryRowContext(ctx, `SELECT id, reference, name, email, phone, company, service, budget, timeline, message, newsletter, submitted_at, status
		FROM contact_submissions WHERE id = ?`, id).Scan(&r.ID, &r.Reference, &r.Name, &r.Email, &r.Phone,
		&r.Company, &r.Service, &r.Budget, &r.Timeline, &r.Message, &newsletter, &r.SubmittedAt, &r.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSubmission
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load submission %d: %w", id, err)
	}
	r.Newsletter = newsletter != 0
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
