package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DIEGHOST64/Prisma/internal/models"
)

// VacanciesRepository reads vacancies. Vacancies are managed elsewhere.
type VacanciesRepository struct {
	pool *pgxpool.Pool
}

// NewVacanciesRepository creates a new vacancies repository
func NewVacanciesRepository(pool *pgxpool.Pool) *VacanciesRepository {
	return &VacanciesRepository{pool: pool}
}

const vacancyColumns = `id, title, description, location, status, published_at,
	       expires_at, created_at, updated_at, deleted_at`

// FindByID returns a live vacancy, or nil when missing or deleted.
func (r *VacanciesRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Vacancy, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+vacancyColumns+`
		FROM vacancies
		WHERE id = $1 AND deleted_at IS NULL
	`, id)

	v, err := scanVacancy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get vacancy by id: %w", err)
	}
	return v, nil
}

// ListOpen returns published, unexpired vacancies ordered by expiry.
func (r *VacanciesRepository) ListOpen(ctx context.Context) ([]*models.Vacancy, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+vacancyColumns+`
		FROM vacancies
		WHERE status = $1 AND expires_at > NOW() AND deleted_at IS NULL
		ORDER BY expires_at
	`, models.VacancyPublished)
	if err != nil {
		return nil, fmt.Errorf("list open vacancies: %w", err)
	}
	defer rows.Close()

	var out []*models.Vacancy
	for rows.Next() {
		v, err := scanVacancy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vacancy: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVacancy(row pgx.Row) (*models.Vacancy, error) {
	var v models.Vacancy
	err := row.Scan(
		&v.ID, &v.Title, &v.Description, &v.Location, &v.Status, &v.PublishedAt,
		&v.ExpiresAt, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
