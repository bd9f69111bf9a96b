package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DIEGHOST64/Prisma/internal/models"
)

type mockChecker struct {
	exists bool
	err    error
	calls  int
}

func (m *mockChecker) CheckDuplicate(ctx context.Context, vacancyID uuid.UUID, documentNumber string) (bool, error) {
	m.calls++
	return m.exists, m.err
}

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestWorkflow(checker DuplicateChecker) *Workflow {
	w := New(checker)
	w.SetClock(func() time.Time { return fixedNow })
	return w
}

func openVacancy() *models.Vacancy {
	return &models.Vacancy{
		ID:        uuid.New(),
		Title:     "Backend Engineer",
		Status:    models.VacancyPublished,
		ExpiresAt: fixedNow.Add(48 * time.Hour),
	}
}

func validFields() CandidateFields {
	return CandidateFields{
		DocumentNumber: "1234567890",
		FullName:       "Ana María Pérez",
		Email:          "Ana@Example.com",
		Phone:          "+57 300 123 4567",
		CVPath:         "cvs/ana.pdf",
	}
}

func TestSubmit_CreatesPendingApplication(t *testing.T) {
	w := newTestWorkflow(&mockChecker{})
	id := uuid.New()
	w.SetIDGenerator(func() uuid.UUID { return id })
	vacancy := openVacancy()

	app, err := w.Submit(context.Background(), vacancy, validFields())
	require.NoError(t, err)

	assert.Equal(t, id, app.ID)
	assert.Equal(t, vacancy.ID, app.VacancyID)
	assert.Equal(t, models.StatusPending, app.Status)
	assert.Equal(t, "ana@example.com", app.Email)
	assert.Equal(t, fixedNow, app.CreatedAt)
	assert.Equal(t, fixedNow, app.UpdatedAt)
	assert.Nil(t, app.ReviewNotes)
}

func TestSubmit_VacancyNotAccepting(t *testing.T) {
	checker := &mockChecker{}
	w := newTestWorkflow(checker)

	closed := openVacancy()
	closed.Status = models.VacancyClosed

	expired := openVacancy()
	expired.ExpiresAt = fixedNow.Add(-time.Minute)

	for name, v := range map[string]*models.Vacancy{"closed": closed, "expired": expired, "missing": nil} {
		t.Run(name, func(t *testing.T) {
			app, err := w.Submit(context.Background(), v, validFields())
			assert.ErrorIs(t, err, ErrVacancyNotAcceptingApplications)
			assert.Nil(t, app)
		})
	}
	assert.Zero(t, checker.calls)
}

func TestSubmit_Duplicate(t *testing.T) {
	w := newTestWorkflow(&mockChecker{exists: true})

	app, err := w.Submit(context.Background(), openVacancy(), validFields())
	assert.ErrorIs(t, err, ErrDuplicateApplication)
	assert.Nil(t, app)
}

func TestSubmit_CheckerError(t *testing.T) {
	w := newTestWorkflow(&mockChecker{err: errors.New("connection reset")})

	_, err := w.Submit(context.Background(), openVacancy(), validFields())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NotErrorIs(t, err, ErrDuplicateApplication)
}

func TestSubmit_InvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *CandidateFields)
		field  string
	}{
		{"short document", func(f *CandidateFields) { f.DocumentNumber = "1234" }, "document_number"},
		{"long document", func(f *CandidateFields) { f.DocumentNumber = "123456789012345678901" }, "document_number"},
		{"short name", func(f *CandidateFields) { f.FullName = "Al" }, "full_name"},
		{"bad email", func(f *CandidateFields) { f.Email = "not-an-email" }, "email"},
		{"short phone", func(f *CandidateFields) { f.Phone = "123-45" }, "phone"},
		{"long phone", func(f *CandidateFields) { f.Phone = "1234567890123456" }, "phone"},
		{"phone wider than column", func(f *CandidateFields) { f.Phone = "+57 (300) 123-4567 ext. 12" }, "phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorkflow(&mockChecker{})
			f := validFields()
			tt.mutate(&f)

			_, err := w.Submit(context.Background(), openVacancy(), f)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestTransition_AllPairs(t *testing.T) {
	w := newTestWorkflow(&mockChecker{})

	for _, from := range models.AllStatuses {
		for _, to := range models.AllStatuses {
			app := &models.Application{Status: from, UpdatedAt: fixedNow.Add(-time.Hour)}

			tr, err := w.Transition(app, to, "notes")
			require.NoError(t, err)
			assert.Equal(t, from, tr.Previous)
			assert.Equal(t, to, tr.Current)
			assert.Equal(t, from != to, tr.Changed())
			assert.Equal(t, to, app.Status)
			assert.Equal(t, fixedNow, app.UpdatedAt)
			require.NotNil(t, app.ReviewNotes)
			assert.Equal(t, "notes", *app.ReviewNotes)
		}
	}
}

func TestTransition_InvalidTargetLeavesApplicationUnchanged(t *testing.T) {
	w := newTestWorkflow(&mockChecker{})
	notes := "keep me"
	before := fixedNow.Add(-time.Hour)
	app := &models.Application{Status: models.StatusReviewing, ReviewNotes: &notes, UpdatedAt: before}

	_, err := w.Transition(app, models.ApplicationStatus("hired"), "x")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, models.StatusReviewing, app.Status)
	assert.Equal(t, "keep me", *app.ReviewNotes)
	assert.Equal(t, before, app.UpdatedAt)
}

func TestTransition_EmptyNotesReplaceOldNotes(t *testing.T) {
	w := newTestWorkflow(&mockChecker{})
	notes := "old"
	app := &models.Application{Status: models.StatusPending, ReviewNotes: &notes}

	_, err := w.Transition(app, models.StatusReviewing, "")
	require.NoError(t, err)
	require.NotNil(t, app.ReviewNotes)
	assert.Equal(t, "", *app.ReviewNotes)
	assert.Equal(t, "old", notes)
}
