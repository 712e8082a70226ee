// Package main is the entry point for the payment receipt competition
// service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/nandar/payquest/internal/calendar"
	"gitlab.com/nandar/payquest/internal/config"
	"gitlab.com/nandar/payquest/internal/database"
	"gitlab.com/nandar/payquest/internal/filestore"
	"gitlab.com/nandar/payquest/internal/gemini"
	"gitlab.com/nandar/payquest/internal/integrity"
	"gitlab.com/nandar/payquest/internal/logger"
	"gitlab.com/nandar/payquest/internal/metrics"
	"gitlab.com/nandar/payquest/internal/ocr"
	"gitlab.com/nandar/payquest/internal/ranking"
	"gitlab.com/nandar/payquest/internal/repository"
	"gitlab.com/nandar/payquest/internal/server"
	"gitlab.com/nandar/payquest/internal/throttle"
	"gitlab.com/nandar/payquest/internal/verification"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("payquest %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.SetLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		logger.SetJSON()
	}
	logger.InitHashSalt()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	logger.Log.Info().Msg("Database initialized successfully")

	receipts, err := filestore.NewDiskStore(cfg.ReceiptDir)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create receipt store")
	}

	textExtractor := ocr.NewClient(cfg.OCRBaseURL, cfg.OCRAPIKey)

	fieldExtractor, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		if !errors.Is(err, gemini.ErrNotConfigured) {
			logger.Log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
		logger.Log.Warn().Msg("GEMINI_API_KEY not set; field extraction will reject submissions")
		fieldExtractor = gemini.Unconfigured()
	}

	m := metrics.New()
	season := calendar.Season2025()

	transactions := repository.NewTransactionRepository(pool)
	throttles := repository.NewThrottleRepository(pool)
	participants := repository.NewParticipantRepository(pool)
	submissions := repository.NewSubmissionStore(pool, pool)

	pipeline := verification.NewPipeline(
		receipts,
		textExtractor,
		fieldExtractor,
		integrity.NewChecker(transactions, m),
		transactions,
		submissions,
		throttle.New(throttles, cfg.DailyCap),
		season,
		m,
		nil,
	)
	boards := ranking.NewService(transactions, season, nil)

	srv := server.NewHTTPServer(cfg.ListenAddr,
		server.New(pipeline, boards, participants, pool).Router())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Log.Info().Msg("Shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error().Err(err).Msg("Server shutdown failed")
		}
		cancel()
	}()

	logger.Log.Info().Str("addr", cfg.ListenAddr).Msg("Server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatal().Err(err).Msg("Server failed")
	}
}
