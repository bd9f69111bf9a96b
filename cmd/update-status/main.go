package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/DIEGHOST64/Prisma/internal/bootstrap"
	"github.com/DIEGHOST64/Prisma/internal/config"
	"github.com/DIEGHOST64/Prisma/internal/database"
	"github.com/DIEGHOST64/Prisma/internal/dispatcher"
	"github.com/DIEGHOST64/Prisma/internal/logger"
	"github.com/DIEGHOST64/Prisma/internal/models"
	"github.com/DIEGHOST64/Prisma/internal/recruitment"
	"github.com/DIEGHOST64/Prisma/internal/repository"
)

func main() {
	id := flag.String("application", "", "application ID")
	status := flag.String("status", "", "new status: pending, reviewing, interviewed, accepted, rejected")
	notes := flag.String("notes", "", "review notes")
	quietSame := flag.Bool("suppress-same-status", false, "do not notify when the status does not change")
	flag.Parse()

	appID, err := uuid.Parse(*id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -application: %v\n", err)
		os.Exit(2)
	}
	target, err := models.ParseStatus(*status)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -status: %v\n", err)
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

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURL, database.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	q, err := bootstrap.OpenQueue(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open queue")
	}
	defer q.Close()

	svc := recruitment.NewService(
		repository.NewVacanciesRepository(db.Pool),
		repository.NewApplicationsRepository(db.GORM, log.Component("repository")),
		dispatcher.NewDispatcher(q, cfg.EnqueueTimeout, log.Component("dispatcher")),
		recruitment.Options{SuppressSelfTransitionNotice: *quietSame},
		log.Component("recruitment"),
	)

	app, err := svc.UpdateStatus(ctx, appID, target, *notes)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to update status")
	}
	fmt.Printf("✅ %s is now %s (%s)\n", app.ID, app.Status, app.Status.Label())
}
