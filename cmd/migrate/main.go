package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/DIEGHOST64/Prisma/internal/config"
	"github.com/DIEGHOST64/Prisma/internal/migrator"
	"github.com/DIEGHOST64/Prisma/migrations"
)

func main() {
	steps := flag.Int("steps", 1, "number of migrations to roll back with 'down'")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] up|down|version\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	m, err := migrator.NewWithFS(migrations.FS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create migrator: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	switch flag.Arg(0) {
	case "up":
		err = m.Up(ctx, cfg.DatabaseURL)
	case "down":
		err = m.Down(ctx, cfg.DatabaseURL, *steps)
	case "version":
		var version uint
		var dirty bool
		version, dirty, err = m.Version(ctx, cfg.DatabaseURL)
		if err == nil {
			fmt.Printf("version=%d dirty=%t\n", version, dirty)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %s failed: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}
	fmt.Printf("✅ %s done\n", flag.Arg(0))
}
