// Package recruitment holds the application use cases: submitting a
// candidacy and moving it through review. Every persisted change produces a
// notification event; enqueue failures never fail the use case.
package recruitment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/DIEGHOST64/Prisma/internal/models"
	"github.com/DIEGHOST64/Prisma/internal/notification"
	"github.com/DIEGHOST64/Prisma/internal/repository"
	"github.com/DIEGHOST64/Prisma/internal/workflow"
)

var (
	// ErrVacancyNotFound is returned when the vacancy does not exist or was deleted.
	ErrVacancyNotFound = errors.New("vacancy not found")
	// ErrApplicationNotFound is returned when the application does not exist or was deleted.
	ErrApplicationNotFound = errors.New("application not found")
)

const (
	// DefaultRejectionNotes is stored when an application is rejected without notes.
	DefaultRejectionNotes = "Application rejected"
	// FallbackVacancyTitle is used in notifications when the vacancy cannot be read.
	FallbackVacancyTitle = "Vacante"
)

// VacancyFinder reads vacancies. FindByID returns nil, nil when missing.
type VacancyFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vacancy, error)
}

// ApplicationStore persists applications. FindByID returns nil, nil when missing.
type ApplicationStore interface {
	workflow.DuplicateChecker
	Create(ctx context.Context, app *models.Application) error
	Update(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
}

// Notifier enqueues notification events. It must not block on delivery.
type Notifier interface {
	Enqueue(ctx context.Context, ev notification.Event)
}

// Options toggles optional behavior.
type Options struct {
	// SuppressSelfTransitionNotice skips the status email when the status did not change.
	SuppressSelfTransitionNotice bool
}

// Service wires the workflow to storage and notifications.
type Service struct {
	vacancies VacancyFinder
	apps      ApplicationStore
	notifier  Notifier
	flow      *workflow.Workflow
	opts      Options
	log       *zerolog.Logger
}

// NewService creates a Service.
func NewService(vacancies VacancyFinder, apps ApplicationStore, notifier Notifier, opts Options, log *zerolog.Logger) *Service {
	return &Service{
		vacancies: vacancies,
		apps:      apps,
		notifier:  notifier,
		flow:      workflow.New(apps),
		opts:      opts,
		log:       log,
	}
}

// SubmitApplication creates a pending application and enqueues a submission
// confirmation for the candidate.
func (s *Service) SubmitApplication(ctx context.Context, vacancyID uuid.UUID, fields workflow.CandidateFields) (*models.Application, error) {
	vacancy, err := s.vacancies.FindByID(ctx, vacancyID)
	if err != nil {
		return nil, fmt.Errorf("find vacancy: %w", err)
	}
	if vacancy == nil {
		return nil, ErrVacancyNotFound
	}

	app, err := s.flow.Submit(ctx, vacancy, fields)
	if err != nil {
		return nil, err
	}

	if err := s.apps.Create(ctx, app); err != nil {
		// lost a race with a concurrent submission
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, workflow.ErrDuplicateApplication
		}
		return nil, fmt.Errorf("save application: %w", err)
	}

	s.log.Info().
		Str("application_id", app.ID.String()).
		Str("vacancy_id", vacancy.ID.String()).
		Msg("application submitted")

	s.notifier.Enqueue(ctx, notification.SubmissionConfirmation(app, vacancy.Title))
	return app, nil
}

// UpdateStatus moves an application to status and enqueues a status-changed
// email. Rejections without notes get DefaultRejectionNotes.
func (s *Service) UpdateStatus(ctx context.Context, applicationID uuid.UUID, status models.ApplicationStatus, notes string) (*models.Application, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", workflow.ErrInvalidStatus, status)
	}

	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("find application: %w", err)
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}

	if status == models.StatusRejected && notes == "" {
		notes = DefaultRejectionNotes
	}

	transition, err := s.flow.Transition(app, status, notes)
	if err != nil {
		return nil, err
	}

	if err := s.apps.Update(ctx, app); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("save application: %w", err)
	}

	log := s.log.With().
		Str("application_id", app.ID.String()).
		Str("from", string(transition.Previous)).
		Str("to", string(transition.Current)).
		Logger()
	log.Info().Msg("application status updated")

	if !transition.Changed() && s.opts.SuppressSelfTransitionNotice {
		log.Debug().Msg("status unchanged; notification suppressed")
		return app, nil
	}

	s.notifier.Enqueue(ctx, notification.StatusChanged(app, s.vacancyTitle(ctx, app.VacancyID)))
	return app, nil
}

func (s *Service) vacancyTitle(ctx context.Context, vacancyID uuid.UUID) string {
	vacancy, err := s.vacancies.FindByID(ctx, vacancyID)
	if err != nil {
		s.log.Warn().Err(err).Str("vacancy_id", vacancyID.String()).Msg("failed to read vacancy for notification")
		return FallbackVacancyTitle
	}
	if vacancy == nil || vacancy.Title == "" {
		return FallbackVacancyTitle
	}
	return vacancy.Title
}
