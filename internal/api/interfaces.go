package api

import (
	"context"

	"github.com/DIEGHOST64/Prisma/internal/models"
	"github.com/DIEGHOST64/Prisma/internal/queue"
	"github.com/DIEGHOST64/Prisma/internal/worker"
)

// QueueStatter reports queue depth.
type QueueStatter interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

// WorkerStatus exposes worker counters and state.
type WorkerStatus interface {
	Counters() worker.Counters
	IsDraining() bool
}

// Pinger checks broker connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ApplicationCounter counts live applications per status.
type ApplicationCounter interface {
	CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int64, error)
}

// Purger runs a one-off purge.
type Purger interface {
	PurgeOnce(ctx context.Context) (int64, error)
}
