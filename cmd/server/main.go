// Package main is the entry point for the tradesim multi-agent trading
// simulation service. It wires configuration, logging, storage, the decision
// providers and the HTTP API, then runs until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/tradesim/internal/config"
	"github.com/aristath/tradesim/internal/database"
	"github.com/aristath/tradesim/internal/modules/agents"
	"github.com/aristath/tradesim/internal/modules/simulation"
	"github.com/aristath/tradesim/internal/scheduler"
	"github.com/aristath/tradesim/internal/server"
	"github.com/aristath/tradesim/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting tradesim")

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	agentStore, err := config.LoadAgentStore(cfg.AgentsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load agent roster")
	}
	log.Info().Int("agents", len(agentStore.List())).Msg("Agent roster loaded")

	repo := simulation.NewRepository(db, log)
	progress := simulation.NewProgressHub()

	llmProvider := agents.NewLLMProvider(cfg.LLMBaseURL, cfg.LLMAPIKey, log)
	technicalProvider := agents.NewTechnicalProvider(log)
	registry := agents.NewRegistry(llmProvider, technicalProvider, log)

	runner := simulation.NewRunner(repo, registry, progress, log)

	sched := scheduler.New(log)
	if cfg.RetentionDays > 0 {
		if err := sched.AddJob("@daily", scheduler.NewCleanupJob(repo, cfg.RetentionDays, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register cleanup job")
		}
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:         log,
		Port:        cfg.Port,
		CORSOrigins: cfg.CORSOrigins,
		AgentStore:  agentStore,
		Repo:        repo,
		Runner:      runner,
		Progress:    progress,
		DB:          db,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	sched.Stop()

	log.Info().Msg("tradesim stopped")
}
