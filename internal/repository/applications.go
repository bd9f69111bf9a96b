package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/DIEGHOST64/Prisma/internal/models"
)

var (
	// ErrDuplicate is returned when the live (vacancy, document) pair already exists.
	ErrDuplicate = errors.New("duplicate application")
	// ErrNotFound is returned when an update targets a missing or deleted row.
	ErrNotFound = errors.New("application not found")
)

const uniqueViolation = "23505"

// ApplicationsRepository handles candidate applications CRUD operations
type ApplicationsRepository struct {
	db  *gorm.DB
	log *zerolog.Logger
}

// NewApplicationsRepository creates a new applications repository
func NewApplicationsRepository(db *gorm.DB, log *zerolog.Logger) *ApplicationsRepository {
	return &ApplicationsRepository{
		db:  db,
		log: log,
	}
}

// Create inserts a new application. A live duplicate returns ErrDuplicate.
func (r *ApplicationsRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	if app.Status == "" {
		app.Status = models.StatusPending
	}

	if err := r.db.WithContext(ctx).Create(app).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create application: %w", err)
	}

	r.log.Info().
		Str("id", app.ID.String()).
		Str("vacancy_id", app.VacancyID.String()).
		Str("status", string(app.Status)).
		Msg("created application")

	return nil
}

// Update persists status, review notes, updated-at and candidate-editable fields.
func (r *ApplicationsRepository) Update(ctx context.Context, app *models.Application) error {
	res := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("id = ? AND deleted_at IS NULL", app.ID).
		Updates(map[string]any{
			"full_name":    app.FullName,
			"email":        app.Email,
			"phone":        app.Phone,
			"cv_path":      app.CVPath,
			"cover_letter": app.CoverLetter,
			"status":       app.Status,
			"review_notes": app.ReviewNotes,
			"updated_at":   app.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update application: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByID returns a live application, or nil when missing or soft-deleted.
func (r *ApplicationsRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get application by id: %w", err)
	}
	return &app, nil
}

// FindByVacancy lists live applications for a vacancy, newest first.
func (r *ApplicationsRepository) FindByVacancy(ctx context.Context, vacancyID uuid.UUID) ([]*models.Application, error) {
	var apps []*models.Application
	err := r.db.WithContext(ctx).
		Where("vacancy_id = ? AND deleted_at IS NULL", vacancyID).
		Order("created_at DESC").
		Find(&apps).Error
	if err != nil {
		return nil, fmt.Errorf("list applications by vacancy: %w", err)
	}
	return apps, nil
}

// CheckDuplicate reports whether a live application exists for the pair.
func (r *ApplicationsRepository) CheckDuplicate(ctx context.Context, vacancyID uuid.UUID, documentNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("vacancy_id = ? AND document_number = ? AND deleted_at IS NULL", vacancyID, documentNumber).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check duplicate application: %w", err)
	}
	return count > 0, nil
}

// SoftDelete marks an application deleted. The document may apply again afterwards.
func (r *ApplicationsRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]any{"deleted_at": now, "updated_at": now})
	if res.Error != nil {
		return fmt.Errorf("soft delete application: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeByStatus hard-deletes applications in statuses last updated before
// olderThan, soft-deleted rows included. It returns the number removed.
func (r *ApplicationsRepository) PurgeByStatus(ctx context.Context, statuses []models.ApplicationStatus, olderThan time.Time) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", statuses, olderThan).
		Delete(&models.Application{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge applications: %w", res.Error)
	}

	r.log.Info().
		Int64("deleted", res.RowsAffected).
		Time("older_than", olderThan).
		Msg("purged applications")

	return res.RowsAffected, nil
}

// CountByStatus returns live application counts per status.
func (r *ApplicationsRepository) CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int64, error) {
	var rows []struct {
		Status models.ApplicationStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Select("status, COUNT(*) AS count").
		Where("deleted_at IS NULL").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count applications by status: %w", err)
	}

	out := make(map[models.ApplicationStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return true
	}
	// sqlite
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
