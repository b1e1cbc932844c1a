package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/app/migrate"
	"github.com/ederalmeidasantos-byte/sistema-admin/pkg/config"
	"github.com/ederalmeidasantos-byte/sistema-admin/pkg/logger"
)

func main() {
	command := flag.String("command", "up", "migrate command (up|status|down)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	flag.Parse()

	cfg := config.LoadAdminConfig()
	log := logger.New("migrate", cfg.LogLevel)

	if !strings.HasPrefix(cfg.StoreDSN, "postgres") {
		log.Error("migrations only apply to the postgres store", "store_dsn_scheme", strings.SplitN(cfg.StoreDSN, ":", 2)[0])
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	runner, err := migrate.New(cfg.StoreDSN, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migration runner", "error", err)
		os.Exit(1)
	}

	switch *command {
	case "up":
		if err := runner.Ensure(ctx); err != nil {
			log.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	case "status":
		if err := runner.Status(ctx); err != nil {
			log.Error("failed to fetch migration status", "error", err)
			os.Exit(1)
		}
	case "down":
		if err := runner.Down(ctx, *target); err != nil {
			log.Error("failed to roll back migrations", "error", err)
			os.Exit(1)
		}
	default:
		log.Error("unsupported command", "command", *command)
		os.Exit(1)
	}

	log.Info("migration command completed", "command", *command)
}
