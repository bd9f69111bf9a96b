package models

import (
	"time"

	"github.com/google/uuid"
)

// VacancyStatus represents the publication state of a vacancy.
type VacancyStatus string

// VacancyStatus constants.
const (
	VacancyDraft     VacancyStatus = "draft"
	VacancyPublished VacancyStatus = "published"
	VacancyClosed    VacancyStatus = "closed"
	VacancyFilled    VacancyStatus = "filled"
)

// DefaultVacancyLifetime is how long a vacancy stays open when no expiry is given.
const DefaultVacancyLifetime = 30 * 24 * time.Hour

// Vacancy is a job opening candidates apply to. Read-only for this module.
type Vacancy struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	Title       string        `json:"title" db:"title"`
	Description string        `json:"description" db:"description"`
	Location    *string       `json:"location,omitempty" db:"location"`
	Status      VacancyStatus `json:"status" db:"status"`

	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`
	ExpiresAt   time.Time  `json:"expires_at" db:"expires_at"`

	// timestamps
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// CanAcceptApplications reports whether the vacancy is published, unexpired and not deleted at now.
func (v *Vacancy) CanAcceptApplications(now time.Time) bool {
	return v.Status == VacancyPublished &&
		v.ExpiresAt.After(now) &&
		v.DeletedAt == nil
}
