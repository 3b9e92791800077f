// Package contact handles the public contact form: validation, storage in
// contact_submissions and the notification mail to the site admin.
package contact

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"sitesetup/internal/transparency"
)

// Form is a contact form submission as posted by the visitor.
type Form struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Company    string `json:"company"`
	Service    string `json:"service"`
	Budget     string `json:"budget"`
	Timeline   string `json:"timeline"`
	Message    string `json:"message"`
	Newsletter bool   `json:"newsletter"`
}

const (
	maxShort   = 200
	maxEmail   = 254
	maxMessage = 5000
)

// FieldError is one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field. Nothing has been stored or sent
// when it is returned.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, " ")
}

// ErrorCategory implements transparency.Categorized.
func (e *ValidationError) ErrorCategory() transparency.ErrorCategory {
	return transparency.ErrorCategoryValidation
}

// Normalize trims every text field.
func (f Form) Normalize() Form {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Company = strings.TrimSpace(f.Company)
	f.Service = strings.TrimSpace(f.Service)
	f.Budget = strings.TrimSpace(f.Budget)
	f.Timeline = strings.TrimSpace(f.Timeline)
	f.Message = strings.TrimSpace(f.Message)
	return f
}

// Validate checks a normalized form.
func (f Form) Validate() error {
	var errs []FieldError
	add := func(field, msg string) { errs = append(errs, FieldError{Field: field, Message: msg}) }

	switch {
	case f.Name == "":
		add("name", "Please enter your name.")
	case utf8.RuneCountInString(f.Name) > maxShort:
		add("name", "Your name is too long.")
	}

	switch {
	case f.Email == "":
		add("email", "Please enter your email address.")
	case len(f.Email) > maxEmail || !validEmail(f.Email):
		add("email", "Please enter a valid email address.")
	}

	switch {
	case f.Message == "":
		add("message", "Please enter a message.")
	case utf8.RuneCountInString(f.Message) > maxMessage:
		add("message", "Your message is too long.")
	}

	optional := []struct{ field, value string }{
		{"phone", f.Phone}, {"company", f.Company}, {"service", f.Service},
		{"budget", f.Budget}, {"timeline", f.Timeline},
	}
	for _, o := range optional {
		if utf8.RuneCountInString(o.value) > maxShort {
			add(o.field, "The "+o.field+" field is too long.")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// validEmail accepts a bare addr-spec with a dotted domain.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	at := strings.LastIndex(s, "@")
	return at > 0 && strings.Contains(s[at+1:], ".")
}
