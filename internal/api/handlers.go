// Package api serves the notification worker's operational HTTP endpoints.
package api

import (
	"context"
	"time"

	"github.com/go-fuego/fuego"

	"github.com/DIEGHOST64/Prisma/internal/models"
)

func (s *Server) healthCheck(c fuego.ContextNoBody) (HealthResponse, error) {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Backend: s.deps.Backend,
	}
	if s.deps.Worker != nil {
		resp.Draining = s.deps.Worker.IsDraining()
	}
	if p, ok := s.deps.Queue.(Pinger); ok {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		resp.Broker = "up"
		if err := p.Ping(ctx); err != nil {
			resp.Broker = "down"
			resp.Status = "degraded"
		}
	}
	return resp, nil
}

func (s *Server) getQueueStats(c fuego.ContextNoBody) (QueueStatsResponse, error) {
	if s.deps.Queue == nil {
		return QueueStatsResponse{}, fuego.NotFoundError{Detail: "Queue not configured"}
	}

	stats, err := s.deps.Queue.Stats(c.Context())
	if err != nil {
		return QueueStatsResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	resp := QueueStatsResponse{Queue: stats}
	if s.deps.Worker != nil {
		counters := s.deps.Worker.Counters()
		resp.Worker = &counters
	}
	return resp, nil
}

func (s *Server) getApplicationStats(c fuego.ContextNoBody) (ApplicationStatsResponse, error) {
	if s.deps.Applications == nil {
		return ApplicationStatsResponse{}, fuego.NotFoundError{Detail: "Database not configured"}
	}

	counts, err := s.deps.Applications.CountByStatus(c.Context())
	if err != nil {
		return ApplicationStatsResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	resp := ApplicationStatsResponse{
		ByStatus: make(map[string]int64, len(models.AllStatuses)),
		Labels:   make(map[string]string, len(models.AllStatuses)),
	}
	for _, status := range models.AllStatuses {
		n := counts[status]
		resp.ByStatus[string(status)] = n
		resp.Labels[string(status)] = status.Label()
		resp.Total += n
	}
	return resp, nil
}

func (s *Server) runPurge(c fuego.ContextNoBody) (PurgeResponse, error) {
	if s.deps.Purger == nil {
		return PurgeResponse{}, fuego.NotFoundError{Detail: "Purge not configured"}
	}

	n, err := s.deps.Purger.PurgeOnce(c.Context())
	if err != nil {
		return PurgeResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}
	return PurgeResponse{Deleted: n}, nil
}
