package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/cxbootcamp/premiers/internal/config"
	"github.com/cxbootcamp/premiers/internal/lib/logger"
	"github.com/cxbootcamp/premiers/internal/migrate"
	"github.com/cxbootcamp/premiers/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "path to config file")
	command := flag.String("command", "up", "migrate command (up|status|down)")
	migrationsDir := flag.String("dir", "./migrations", "migrations directory")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := logger.Setup(cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	runner, err := migrate.New(postgres.DSN(cfg), *migrationsDir, log)
	if err != nil {
		log.Error("failed to configure migration runner", logger.Err(err))
		os.Exit(1)
	}

	switch *command {
	case "up":
		err = runner.Up(ctx)
	case "status":
		err = runner.Status(ctx)
	case "down":
		err = runner.Down(ctx, *target)
	default:
		log.Error("unsupported command", "command", *command)
		os.Exit(1)
	}

	if err != nil {
		log.Error("migration command failed", "command", *command, logger.Err(err))
		os.Exit(1)
	}

	log.Info("migration command completed", "command", *command)
}
