package api

import (
	"github.com/DIEGHOST64/Prisma/internal/queue"
	"github.com/DIEGHOST64/Prisma/internal/worker"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string `json:"status" example:"ok" description:"Health status"`
	Version  string `json:"version" example:"dev" description:"Application version"`
	Backend  string `json:"backend" example:"sqs" description:"Queue backend"`
	Broker   string `json:"broker,omitempty" example:"up" description:"Broker connectivity when the backend can be pinged"`
	Draining bool   `json:"draining" description:"Whether the worker loop is running"`
}

// QueueStatsResponse combines broker depth with process counters.
type QueueStatsResponse struct {
	Queue  queue.Stats      `json:"queue" description:"Approximate broker counts"`
	Worker *worker.Counters `json:"worker,omitempty" description:"Consumer outcomes since start"`
}

// ApplicationStatsResponse lists live applications per status.
type ApplicationStatsResponse struct {
	Total    int64             `json:"total" description:"Live applications"`
	ByStatus map[string]int64  `json:"by_status" description:"Count per status code"`
	Labels   map[string]string `json:"labels" description:"Candidate-facing label per status code"`
}

// PurgeResponse reports a manual purge.
type PurgeResponse struct {
	Deleted int64 `json:"deleted" description:"Applications removed"`
}
