package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus represents the review state of a candidate application.
type ApplicationStatus string

// ApplicationStatus constants define the possible states of an application.
const (
	StatusPending     ApplicationStatus = "pending"
	StatusReviewing   ApplicationStatus = "reviewing"
	StatusInterviewed ApplicationStatus = "interviewed"
	StatusAccepted    ApplicationStatus = "accepted"
	StatusRejected    ApplicationStatus = "rejected"
)

// AllStatuses lists every valid status in lifecycle order.
var AllStatuses = []ApplicationStatus{
	StatusPending,
	StatusReviewing,
	StatusInterviewed,
	StatusAccepted,
	StatusRejected,
}

var statusLabels = map[ApplicationStatus]string{
	StatusPending:     "Recibido",
	StatusReviewing:   "En revisión",
	StatusInterviewed: "Entrevista programada",
	StatusAccepted:    "Aceptado",
	StatusRejected:    "Rechazado",
}

// IsValid reports whether s is one of the five known statuses.
func (s ApplicationStatus) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the candidate-facing label. Unknown statuses return the raw code.
func (s ApplicationStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsTerminal reports whether no further review is expected.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// ParseStatus normalizes and validates a status code.
func ParseStatus(raw string) (ApplicationStatus, error) {
	s := ApplicationStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("unknown application status %q", raw)
	}
	return s, nil
}

// Application is a candidate's submission to a vacancy.
type Application struct {
	ID             uuid.UUID         `json:"id" db:"id" gorm:"type:uuid;primaryKey"`
	VacancyID      uuid.UUID         `json:"vacancy_id" db:"vacancy_id" gorm:"type:uuid;not null"`
	DocumentNumber string            `json:"document_number" db:"document_number" gorm:"size:20;not null"`
	FullName       string            `json:"full_name" db:"full_name" gorm:"size:100;not null"`
	Email          string            `json:"email" db:"email" gorm:"size:255;not null"`
	Phone          string            `json:"phone" db:"phone" gorm:"size:20;not null"`
	CVPath         string            `json:"cv_path" db:"cv_path" gorm:"column:cv_path"`
	CoverLetter    *string           `json:"cover_letter,omitempty" db:"cover_letter"`
	Status         ApplicationStatus `json:"status" db:"status" gorm:"size:20;not null"`
	ReviewNotes    *string           `json:"review_notes,omitempty" db:"review_notes"`

	// timestamps
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// TableName pins the GORM table name.
func (Application) TableName() string {
	return "applications"
}
