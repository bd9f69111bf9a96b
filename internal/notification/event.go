// Package notification defines the email notification events that travel
// through the queue between the dispatcher and the worker.
package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/DIEGHOST64/Prisma/internal/models"
)

// Kind identifies which template an event renders with.
type Kind string

// Supported kinds.
const (
	KindSubmissionConfirmation Kind = "submission_confirmation"
	KindStatusChanged          Kind = "status_changed"
)

// Queue message attribute names.
const (
	AttrType     = "Type"
	AttrPriority = "Priority"
)

// ErrMalformed marks a message body that can never be processed.
var ErrMalformed = errors.New("malformed notification")

// IsKnown reports whether k has a template.
func (k Kind) IsKnown() bool {
	return k == KindSubmissionConfirmation || k == KindStatusChanged
}

// Priority is 1 for confirmations and 2 for status changes.
func (k Kind) Priority() int {
	if k == KindSubmissionConfirmation {
		return 1
	}
	return 2
}

// Event is a self-describing notification. Its JSON form is the queue body.
type Event struct {
	Kind           Kind   `json:"kind"`
	To             string `json:"to"`
	ApplicantName  string `json:"applicantName"`
	VacancyTitle   string `json:"vacancyTitle"`
	NewStatus      string `json:"newStatus,omitempty"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// IdempotencyKey derives the dedup key for an application reaching status.
func IdempotencyKey(app *models.Application, status models.ApplicationStatus) string {
	return app.ID.String() + "_" + string(status)
}

// SubmissionConfirmation builds the event sent after a successful submission.
func SubmissionConfirmation(app *models.Application, vacancyTitle string) Event {
	return Event{
		Kind:           KindSubmissionConfirmation,
		To:             app.Email,
		ApplicantName:  app.FullName,
		VacancyTitle:   vacancyTitle,
		IdempotencyKey: IdempotencyKey(app, models.StatusPending),
	}
}

// StatusChanged builds the event sent after a status transition. NewStatus
// carries the human-readable label.
func StatusChanged(app *models.Application, vacancyTitle string) Event {
	return Event{
		Kind:           KindStatusChanged,
		To:             app.Email,
		ApplicantName:  app.FullName,
		VacancyTitle:   vacancyTitle,
		NewStatus:      app.Status.Label(),
		IdempotencyKey: IdempotencyKey(app, app.Status),
	}
}

// Attributes returns the queue message attributes for e.
func (e Event) Attributes() map[string]string {
	return map[string]string{
		AttrType:     string(e.Kind),
		AttrPriority: fmt.Sprintf("%d", e.Kind.Priority()),
	}
}

// Encode marshals e to the wire shape.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Validate checks the fields every template needs.
func (e Event) Validate() error {
	if !e.Kind.IsKnown() {
		return fmt.Errorf("%w: unknown kind %q", ErrMalformed, e.Kind)
	}
	if !strings.Contains(e.To, "@") {
		return fmt.Errorf("%w: invalid recipient %q", ErrMalformed, e.To)
	}
	if strings.TrimSpace(e.ApplicantName) == "" {
		return fmt.Errorf("%w: missing applicant name", ErrMalformed)
	}
	if e.Kind == KindStatusChanged && strings.TrimSpace(e.NewStatus) == "" {
		return fmt.Errorf("%w: status change without new status", ErrMalformed)
	}
	return nil
}

// Decode parses and validates a queue body. Every error wraps ErrMalformed.
func Decode(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}
