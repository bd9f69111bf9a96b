// Package janitor removes old applications in closed-out statuses, either
// once or on a cron schedule.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/DIEGHOST64/Prisma/internal/models"
)

var (
	// ErrNoStatuses is returned when a purger is built without statuses.
	ErrNoStatuses = errors.New("no statuses to purge")
	// ErrNotTerminal is returned for statuses still under review.
	ErrNotTerminal = errors.New("only accepted or rejected applications can be purged")
)

// PurgeStore deletes applications by status.
type PurgeStore interface {
	PurgeByStatus(ctx context.Context, statuses []models.ApplicationStatus, olderThan time.Time) (int64, error)
}

// Purger hard-deletes applications in the configured statuses once they have
// not been updated for MinAge.
type Purger struct {
	store    PurgeStore
	statuses []models.ApplicationStatus
	minAge   time.Duration
	now      func() time.Time
	log      *zerolog.Logger
}

// NewPurger parses raw status codes and builds a Purger. Only terminal
// statuses are accepted.
func NewPurger(store PurgeStore, rawStatuses []string, minAge time.Duration, log *zerolog.Logger) (*Purger, error) {
	if len(rawStatuses) == 0 {
		return nil, ErrNoStatuses
	}
	statuses := make([]models.ApplicationStatus, 0, len(rawStatuses))
	for _, raw := range rawStatuses {
		s, err := models.ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		if !s.IsTerminal() {
			return nil, fmt.Errorf("%w: %s", ErrNotTerminal, s)
		}
		statuses = append(statuses, s)
	}
	if minAge < 0 {
		return nil, fmt.Errorf("negative purge age %s", minAge)
	}

	return &Purger{
		store:    store,
		statuses: statuses,
		minAge:   minAge,
		now:      time.Now,
		log:      log,
	}, nil
}

// SetClock replaces the time source (for testing).
func (p *Purger) SetClock(now func() time.Time) {
	p.now = now
}

// PurgeOnce runs a single purge and returns the number of deleted rows.
func (p *Purger) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.minAge)

	n, err := p.store.PurgeByStatus(ctx, p.statuses, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge applications: %w", err)
	}

	p.log.Info().
		Int64("deleted", n).
		Interface("statuses", p.statuses).
		Time("cutoff", cutoff).
		Msg("purge completed")
	return n, nil
}

// Scheduler runs a Purger on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	cron    *cron.Cron
	purger  *Purger
	timeout time.Duration
	log     *zerolog.Logger
	runs    atomic.Int64
}

// NewScheduler validates spec (standard five-field cron syntax or a
// descriptor such as @daily) and registers the purge job.
func NewScheduler(purger *Purger, spec string, timeout time.Duration, log *zerolog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse purge schedule %q: %w", spec, err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	cl := cronLogger{log: log}
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		purger:  purger,
		timeout: timeout,
		log:     log,
	}

	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("schedule purge: %w", err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	s.runs.Add(1)
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.purger.PurgeOnce(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduled purge failed")
	}
}

// Runs returns how many times the job has fired.
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

// Start begins firing the job in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.log.Info().Time("next", e.Next).Msg("purge scheduler started")
	}
}

// Stop halts scheduling and waits for a running purge to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("purge still running at shutdown")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log *zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
