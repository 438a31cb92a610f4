// Package main is the entry point for the openfolio performance engine. The
// service maintains portfolio snapshots, computes Modified-Dietz returns,
// serves performance charts, and ranks users on leaderboards.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openfolio/openfolio/internal/config"
	"github.com/openfolio/openfolio/internal/di"
	"github.com/openfolio/openfolio/internal/scheduler"
	"github.com/openfolio/openfolio/internal/server"
	"github.com/openfolio/openfolio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting openfolio performance engine")

	// Wire all dependencies: databases, repositories, clients, services, jobs.
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// The scheduler evaluates cron expressions in the exchange's timezone, so
	// "after the close" means the exchange's close, not the host's.
	sched := scheduler.New(container.Calendar.Location(), log)
	if err := container.Jobs.Register(sched); err != nil {
		log.Fatal().Err(err).Msg("Failed to register batch jobs")
	}
	sched.Start()
	log.Info().Msg("Batch scheduler started")

	// Live ticks keep the quote cache warm during market hours. Optional.
	if container.QuoteStream != nil {
		container.QuoteStream.Start()
		log.Info().Msg("Quote stream started")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()
	log.Info().Msg("Batch scheduler stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
