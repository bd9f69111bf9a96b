package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/DIEGHOST64/Prisma/internal/bootstrap"
	"github.com/DIEGHOST64/Prisma/internal/config"
	"github.com/DIEGHOST64/Prisma/internal/dispatcher"
	"github.com/DIEGHOST64/Prisma/internal/logger"
	"github.com/DIEGHOST64/Prisma/internal/models"
	"github.com/DIEGHOST64/Prisma/internal/notification"
)

// Publishes one sample notification for smoke-testing a deployment.
func main() {
	to := flag.String("to", "", "recipient email")
	name := flag.String("name", "Candidato de prueba", "applicant name")
	vacancy := flag.String("vacancy", "Vacante de prueba", "vacancy title")
	status := flag.String("status", "", "status code; empty sends a submission confirmation")
	flag.Parse()

	if *to == "" {
		fmt.Fprintln(os.Stderr, "-to is required")
		os.Exit(2)
	}

	app := &models.Application{
		ID:       uuid.New(),
		Email:    *to,
		FullName: *name,
		Status:   models.StatusPending,
	}

	ev := notification.SubmissionConfirmation(app, *vacancy)
	if *status != "" {
		s, err := models.ParseStatus(*status)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -status: %v\n", err)
			os.Exit(2)
		}
		app.Status = s
		ev = notification.StatusChanged(app, *vacancy)
	}
	if err := ev.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid event: %v\n", err)
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := logger.Init(cfg.LogLevel, ""); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()

	ctx := context.Background()
	q, err := bootstrap.OpenQueue(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open queue")
	}
	defer q.Close()

	d := dispatcher.NewDispatcher(q, cfg.EnqueueTimeout, log.Component("dispatcher"))
	d.Enqueue(ctx, ev)

	if d.Stats().Failed > 0 {
		os.Exit(1)
	}
	fmt.Printf("✅ enqueued %s for %s (%s)\n", ev.Kind, ev.To, ev.IdempotencyKey)
}
