package contact

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"sitesetup/internal/logging"
	"sitesetup/internal/platform"
	"sitesetup/internal/store"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// Submission is a stored contact form submission.
type Submission = store.SubmissionRecord

// Repository stores submissions. *store.LocalStore implements it.
type Repository interface {
	InsertSubmission(ctx context.Context, r *store.SubmissionRecord) (int64, error)
	ListSubmissions(ctx context.Context, status string, limit int) ([]store.SubmissionRecord, error)
	MarkSubmissionStatus(ctx context.Context, id int64, status string) error
}

// Service accepts contact form submissions.
type Service struct {
	repo     Repository
	options  platform.OptionStore
	mailer   Mailer
	fallback string
	policy   *bluemonday.Policy
	now      func() time.Time
}

// NewService creates a contact service. mailer may be nil to disable mail.
// fallbackTo receives notifications when the host has no admin_email.
func NewService(repo Repository, options platform.OptionStore, mailer Mailer, fallbackTo string) *Service {
	return &Service{
		repo:     repo,
		options:  options,
		mailer:   mailer,
		fallback: fallbackTo,
		policy:   bluemonday.StrictPolicy(),
		now:      time.Now,
	}
}

// Submit validates, stores and announces one submission. A failed mail does
// not fail the submission.
func (s *Service) Submit(ctx context.Context, f Form) (*Submission, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		logging.ContactWarn("Rejected contact submission: %v", err)
		return nil, err
	}

	sub := &Submission{
		Reference:   newReference(),
		Name:        s.clean(f.Name),
		Email:       f.Email,
		Phone:       s.clean(f.Phone),
		Company:     s.clean(f.Company),
		Service:     s.clean(f.Service),
		Budget:      s.clean(f.Budget),
		Timeline:    s.clean(f.Timeline),
		Message:     s.cleanMultiline(f.Message),
		Newsletter:  f.Newsletter,
		SubmittedAt: s.now().UTC(),
		Status:      store.SubmissionNew,
	}

	if _, err := s.repo.InsertSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to store contact submission: %w", err)
	}
	logging.Contact("Stored contact submission %s (id=%d)", sub.Reference, sub.ID)

	mailed := s.notify(ctx, sub)
	logging.Audit().ContactSubmit(sub.ID, mailed)
	return sub, nil
}

// List returns the newest submissions, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, limit int) ([]Submission, error) {
	return s.repo.ListSubmissions(ctx, status, limit)
}

// MarkStatus moves a submission to status.
func (s *Service) MarkStatus(ctx context.Context, id int64, status string) error {
	if err := s.repo.MarkSubmissionStatus(ctx, id, status); err != nil {
		return err
	}
	logging.Contact("Submission %d marked %s", id, status)
	return nil
}

func (s *Service) notify(ctx context.Context, sub *Submission) bool {
	if s.mailer == nil {
		return false
	}
	to := s.recipient(ctx)
	if to == "" {
		logging.ContactWarn("No recipient for contact notification %s", sub.Reference)
		return false
	}

	err := s.mailer.Send(ctx, Message{
		To:      to,
		ReplyTo: sub.Email,
		Subject: fmt.Sprintf("New contact form submission from %s", sub.Name),
		Body:    notificationBody(sub),
	})
	if err != nil {
		logging.MailError("Contact notification %s to %s failed: %v", sub.Reference, to, err)
		return false
	}
	logging.Mail("Contact notification %s sent to %s", sub.Reference, to)
	return true
}

func (s *Service) recipient(ctx context.Context) string {
	if s.options != nil {
		v, ok, err := s.options.GetOption(ctx, platform.OptionAdminEmail)
		if err != nil {
			logging.ContactWarn("Could not read admin_email: %v", err)
		} else if ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return s.fallback
}

var angleBrackets = strings.NewReplacer("<", "", ">", "")

// clean strips markup and collapses whitespace.
func (s *Service) clean(v string) string {
	text := angleBrackets.Replace(html.UnescapeString(s.policy.Sanitize(v)))
	return strings.Join(strings.Fields(text), " ")
}

// cleanMultiline strips markup but keeps line breaks.
func (s *Service) cleanMultiline(v string) string {
	lines := strings.Split(strings.ReplaceAll(v, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = s.clean(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func newReference() string {
	return "CF-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func notificationBody(sub *Submission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reference: %s\n", sub.Reference)
	fmt.Fprintf(&b, "Received:  %s\n\n", sub.SubmittedAt.Format(time.RFC1123))
	fields := []struct{ label, value string }{
		{"Name", sub.Name},
		{"Email", sub.Email},
		{"Phone", sub.Phone},
		{"Company", sub.Company},
		{"Service", sub.Service},
		{"Budget", sub.Budget},
		{"Timeline", sub.Timeline},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(&b, "%-9s %s\n", f.label+":", f.value)
		}
	}
	if sub.Newsletter {
		b.WriteString("Newsletter: yes\n")
	}
	fmt.Fprintf(&b, "\n%s\n", sub.Message)
	return b.String()
}
