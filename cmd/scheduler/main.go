/**
 * @description
 * Entry point for the scheduler. A non-HTTP, long-running process that runs
 * the withdrawal expiry and token purge sweeps on cron schedules.
 */
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zymoclassic/eduplat/internal/app"
	"github.com/Zymoclassic/eduplat/internal/config"
	"github.com/Zymoclassic/eduplat/internal/scheduler"
	"github.com/Zymoclassic/eduplat/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file, reading process environment")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("database url parse failed", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connected", "max_conns", poolConfig.MaxConns)

	repository := store.NewPostgresRepository(dbpool)
	withdrawals := app.NewWithdrawalService(repository, nil, app.WithdrawalConfig{
		MinAmountKobo: cfg.WithdrawalMinKobo,
		Expiry:        time.Duration(cfg.WithdrawalExpiryHours) * time.Hour,
	})
	jobs := scheduler.NewJobs(withdrawals, app.NewAccountService(repository, nil), logger)
	s := scheduler.NewScheduler(jobs, logger, cfg)

	scheduled := s.Start()
	if scheduled == 0 {
		logger.Error("no jobs scheduled; check WITHDRAWAL_EXPIRY_SCHEDULE and OTP_PURGE_SCHEDULE")
		os.Exit(1)
	}
	logger.Info("scheduler running", "jobs", scheduled)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("stopping scheduler")
	stopCtx := s.Stop()
	<-stopCtx.Done()
	logger.Info("scheduler stopped")
}
