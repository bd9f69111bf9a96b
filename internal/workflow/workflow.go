// Package workflow implements the application lifecycle state machine.
//
// Any status may move to any other status, including itself. The workflow
// only mutates in-memory applications; persistence and notification belong to
// the caller.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DIEGHOST64/Prisma/internal/models"
)

var (
	// ErrInvalidStatus is returned when a transition targets an unknown status.
	ErrInvalidStatus = errors.New("invalid application status")
	// ErrDuplicateApplication is returned when the document already applied to the vacancy.
	ErrDuplicateApplication = errors.New("an application for this document already exists for this vacancy")
	// ErrVacancyNotAcceptingApplications is returned for draft, closed, expired or deleted vacancies.
	ErrVacancyNotAcceptingApplications = errors.New("vacancy is not accepting applications")
)

// DuplicateChecker reports whether a live application exists for the pair.
type DuplicateChecker interface {
	CheckDuplicate(ctx context.Context, vacancyID uuid.UUID, documentNumber string) (bool, error)
}

// CandidateFields is the candidate-supplied part of a new application.
type CandidateFields struct {
	DocumentNumber string  `json:"document_number" validate:"required,min=5,max=20"`
	FullName       string  `json:"full_name" validate:"required,min=3,max=100"`
	Email          string  `json:"email" validate:"required,email,max=255"`
	Phone          string  `json:"phone" validate:"required,max=20,phone"`
	CVPath         string  `json:"cv_path"`
	CoverLetter    *string `json:"cover_letter,omitempty"`
}

func (f CandidateFields) normalized() CandidateFields {
	f.DocumentNumber = strings.TrimSpace(f.DocumentNumber)
	f.FullName = strings.TrimSpace(f.FullName)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.Phone = strings.TrimSpace(f.Phone)
	return f
}

// Transition reports the outcome of a status change.
type Transition struct {
	Previous models.ApplicationStatus
	Current  models.ApplicationStatus
}

// Changed is false for self-transitions.
func (t Transition) Changed() bool {
	return t.Previous != t.Current
}

// Workflow validates submissions and applies status transitions.
type Workflow struct {
	apps  DuplicateChecker
	now   func() time.Time
	newID func() uuid.UUID
}

// New creates a workflow that consults apps for duplicate submissions.
func New(apps DuplicateChecker) *Workflow {
	return &Workflow{
		apps:  apps,
		now:   time.Now,
		newID: uuid.New,
	}
}

// SetClock replaces the time source (for testing).
func (w *Workflow) SetClock(now func() time.Time) {
	w.now = now
}

// SetIDGenerator replaces the application ID generator (for testing).
func (w *Workflow) SetIDGenerator(newID func() uuid.UUID) {
	w.newID = newID
}

// Submit checks that vacancy accepts applications, that the document has not
// applied already, and that the candidate fields are well formed. It returns a
// new pending application that has not been persisted.
func (w *Workflow) Submit(ctx context.Context, vacancy *models.Vacancy, fields CandidateFields) (*models.Application, error) {
	if vacancy == nil {
		return nil, ErrVacancyNotAcceptingApplications
	}

	now := w.now()
	if !vacancy.CanAcceptApplications(now) {
		return nil, ErrVacancyNotAcceptingApplications
	}

	fields = fields.normalized()

	exists, err := w.apps.CheckDuplicate(ctx, vacancy.ID, fields.DocumentNumber)
	if err != nil {
		return nil, fmt.Errorf("check duplicate application: %w", err)
	}
	if exists {
		return nil, ErrDuplicateApplication
	}

	if err := ValidateCandidate(fields); err != nil {
		return nil, err
	}

	return &models.Application{
		ID:             w.newID(),
		VacancyID:      vacancy.ID,
		DocumentNumber: fields.DocumentNumber,
		FullName:       fields.FullName,
		Email:          fields.Email,
		Phone:          fields.Phone,
		CVPath:         fields.CVPath,
		CoverLetter:    fields.CoverLetter,
		Status:         models.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Transition moves app to target, replacing its review notes (an empty
// string included) and bumping UpdatedAt. An unknown target leaves app untouched.
func (w *Workflow) Transition(app *models.Application, target models.ApplicationStatus, notes string) (Transition, error) {
	if !target.IsValid() {
		return Transition{}, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}

	t := Transition{Previous: app.Status, Current: target}

	app.Status = target
	app.ReviewNotes = &notes
	app.UpdatedAt = w.now()

	return t, nil
}
