package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DIEGHOST64/Prisma/internal/api"
	"github.com/DIEGHOST64/Prisma/internal/bootstrap"
	"github.com/DIEGHOST64/Prisma/internal/config"
	"github.com/DIEGHOST64/Prisma/internal/database"
	"github.com/DIEGHOST64/Prisma/internal/janitor"
	"github.com/DIEGHOST64/Prisma/internal/logger"
	"github.com/DIEGHOST64/Prisma/internal/repository"
	"github.com/DIEGHOST64/Prisma/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// 1. Load config
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log.Info().
		Str("queue_backend", cfg.QueueBackend).
		Str("mail_transport", cfg.MailTransport).
		Msg("starting notification worker")

	// 3. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal; draining current batch")
		cancel()
	}()

	// 4. Queue, mail and templates
	q, err := bootstrap.OpenQueue(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open queue")
	}
	defer q.Close()

	transport, err := bootstrap.OpenMailTransport(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open mail transport")
	}

	renderer, err := bootstrap.OpenRenderer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load templates")
	}

	w := worker.New(q, renderer, transport, worker.Config{
		BatchSize:         cfg.QueueBatchSize,
		WaitTime:          cfg.QueueWaitTime,
		VisibilityTimeout: cfg.QueueVisibilityTimeout,
		IdleCooldown:      cfg.WorkerIdleCooldown,
		ErrorBackoff:      cfg.WorkerErrorBackoff,
		MailTimeout:       cfg.MailTimeout,
		AckTimeout:        cfg.AckTimeout,
		Concurrency:       cfg.WorkerConcurrency,
		StatsInterval:     cfg.WorkerStatsInterval,
	}, log.Component("worker"))

	deps := &api.Dependencies{
		Backend: cfg.QueueBackend,
		Queue:   q,
		Worker:  w,
	}

	// 5. Optional purge scheduler (needs the database)
	var scheduler *janitor.Scheduler
	if cfg.PurgeSchedule != "" {
		db, err := database.New(ctx, cfg.DatabaseURL, database.Options{})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		appsRepo := repository.NewApplicationsRepository(db.GORM, log.Component("repository"))
		purger, err := janitor.NewPurger(appsRepo, cfg.PurgeStatuses, cfg.PurgeMinAge, log.Component("janitor"))
		if err != nil {
			log.Fatal().Err(err).Msg("invalid purge settings")
		}
		scheduler, err = janitor.NewScheduler(purger, cfg.PurgeSchedule, 0, log.Component("janitor"))
		if err != nil {
			log.Fatal().Err(err).Msg("invalid purge schedule")
		}
		scheduler.Start()

		deps.Applications = appsRepo
		deps.Purger = purger
	}

	// 6. Ops API
	apiCfg := &api.Config{
		Host:           cfg.HTTPHost,
		Port:           cfg.HTTPPort,
		Title:          "PRISMA Notification Worker",
		Description:    "Operational endpoints for the email notification pipeline",
		Version:        "1.0.0",
		AllowedOrigins: cfg.CORSAllowedOrigins,
		PurgeToken:     cfg.OpsAPIToken,
	}
	srv := api.NewServer(apiCfg, deps)

	go func() {
		log.Info().Str("addr", apiCfg.Addr()).Msg("ops api listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops api stopped")
		}
	}()

	// 7. Drain the queue until shutdown
	if err := w.Run(ctx); err != nil {
		log.Error().Err(err).Msg("worker exited")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("ops api shutdown")
	}

	log.Info().Msg("shutdown complete")
}
