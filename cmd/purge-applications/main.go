package main

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/DIEGHOST64/Prisma/internal/config"
	"github.com/DIEGHOST64/Prisma/internal/database"
	"github.com/DIEGHOST64/Prisma/internal/janitor"
	"github.com/DIEGHOST64/Prisma/internal/logger"
	"github.com/DIEGHOST64/Prisma/internal/repository"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	statuses := flag.String("statuses", strings.Join(cfg.PurgeStatuses, ","), "comma-separated statuses to purge")
	minAge := flag.Duration("min-age", cfg.PurgeMinAge, "only purge applications not updated for this long")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall timeout")
	flag.Parse()

	if err := logger.Init(cfg.LogLevel, ""); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURL, database.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	purger, err := janitor.NewPurger(
		repository.NewApplicationsRepository(db.GORM, log.Component("repository")),
		strings.Split(*statuses, ","),
		*minAge,
		log.Component("janitor"),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid purge settings")
	}

	n, err := purger.PurgeOnce(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("purge failed")
	}
	log.Info().Int64("deleted", n).Msg("done")
}
