package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/detector"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/dirsync"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/docker"
	httpx "github.com/ederalmeidasantos-byte/sistema-admin/internal/http"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/partner"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository/backend"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/service/access"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/service/auth"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/service/batch"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/service/environment"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/store"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/supervisor"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/workspace"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/ws"
	"github.com/ederalmeidasantos-byte/sistema-admin/pkg/config"
	"github.com/ederalmeidasantos-byte/sistema-admin/pkg/logger"
)

func main() {
	cfg := config.LoadAdminConfig()
	log := logger.New("sistema-admin", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := backend.Open(ctx, cfg.StoreDSN, backend.Options{AutoMigrate: cfg.AutoMigrate, MigrationsDir: cfg.MigrationsDir, Logger: log})
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	if closer, ok := repo.(repository.Closer); ok {
		defer closer.Close()
	}
	st := store.New(repo, log)

	layout, err := workspace.New(cfg.BasePath, cfg.DirPrefix, cfg.DirSuffix)
	if err != nil {
		log.Error("failed to prepare base path", "error", err)
		os.Exit(1)
	}
	det := detector.New(layout, cfg.AdminPort, log)
	metrics := httpx.NewMetrics()
	partners := partner.New(cfg.BankURLs, cfg.PartnerTimeout, log)

	environmentSvc := environment.New(st, layout, dirsync.New(log), partners, log, cfg).WithMetrics(metrics)
	if report, err := environmentSvc.Reconcile(ctx, det); err != nil {
		log.Warn("startup reconcile failed", "error", err)
	} else {
		log.Info("startup reconcile finished", "detected", report.Detected, "created", len(report.Created), "deactivated", len(report.Deactivated))
	}

	if cfg.WatchBasePath {
		watcher := environment.NewWatcher(cfg.BasePath, environmentSvc, det,
			environment.WithWatchDebounce(cfg.WatchDebounce),
			environment.WithWatchLogger(log),
		)
		if err := watcher.Start(); err != nil {
			log.Warn("base path watcher unavailable", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	var jobs batch.JobStore = batch.NewMemoryJobStore(24 * time.Hour)
	if addr := strings.TrimSpace(cfg.JobRedisAddr); addr != "" {
		redisJobs, err := batch.NewRedisJobStore(addr, cfg.JobRedisPass, cfg.JobRedisDB, 24*time.Hour)
		if err != nil {
			log.Warn("redis job store unavailable, keeping jobs in memory", "error", err)
		} else {
			defer redisJobs.Close()
			jobs = redisJobs.WithEncryption(cfg.JobEncryptionKey)
		}
	}
	hub := ws.NewHub()
	defer hub.Close()
	batchSvc := batch.New(jobs, partners, environmentSvc, cfg.BatchWidth, log).
		WithPublisher(hub).
		WithMetrics(metrics)

	var processes *supervisor.Supervisor
	if cfg.SupervisorEnabled {
		dockerClient, err := docker.New(cfg.DockerHost)
		if err != nil {
			log.Warn("docker client unavailable, process control disabled", "error", err)
		} else if err := dockerClient.Ping(ctx); err != nil {
			log.Warn("docker daemon unreachable, process control disabled", "error", err)
			dockerClient.Close()
		} else {
			defer dockerClient.Close()
			processes = supervisor.New(dockerClient, log)
		}
	}

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, httpx.Services{
		Auth:         auth.New(st, log, cfg),
		Access:       access.New(st, log),
		Environments: environmentSvc,
		Detector:     det,
		Batch:        batchSvc,
		Hub:          hub,
		Supervisor:   processes,
		TemplatePort: cfg.TemplatePort,
		Health: func(ctx context.Context) error {
			if pinger, ok := repo.(interface{ Ping(context.Context) error }); ok {
				if err := pinger.Ping(ctx); err != nil {
					return err
				}
			}
			_, err := st.Get(ctx)
			return err
		},
	}, limiter, metrics)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("admin server starting", "addr", cfg.Addr, "base_path", cfg.BasePath, "template_port", cfg.TemplatePort)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		batchSvc.Wait()
		log.Info("admin server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
