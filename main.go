package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/krishanraja/try-ritual-sub002/internal/config"
	"github.com/krishanraja/try-ritual-sub002/internal/database"
	"github.com/krishanraja/try-ritual-sub002/internal/models"
	"github.com/krishanraja/try-ritual-sub002/internal/repository"
	"github.com/krishanraja/try-ritual-sub002/internal/server"
	"github.com/krishanraja/try-ritual-sub002/internal/synth"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var synthesizer synth.Synthesizer
	if cfg.GeminiAPIKey != "" {
		gemini, err := synth.NewGeminiSynthesizer(ctx, cfg.GeminiAPIKey)
		if err != nil {
			slog.Error("creating synthesizer", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()
		synthesizer = gemini
	} else {
		slog.Warn("GEMINI_API_KEY not set, synthesis will fail until configured")
		synthesizer = synth.SynthesizerFunc(func(ctx context.Context, request synth.Request) ([]models.Suggestion, error) {
			return nil, errors.New("synthesizer is not configured")
		})
	}

	cycleRepo := repository.NewCycleRepository(db)
	go runStaleLockReaper(cycleRepo, cfg.LockStaleAfter)

	srv := server.New(db, cfg, synthesizer)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// runStaleLockReaper sweeps synthesis locks abandoned by crashed or hung
// invocations so cycles cannot get stuck in generating forever.
func runStaleLockReaper(cycleRepo repository.CycleRepository, staleAfter time.Duration) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		ctx := context.Background()
		released, err := cycleRepo.ReleaseStaleLocks(ctx, time.Now().Add(-staleAfter))
		if err != nil {
			slog.Error("releasing stale synthesis locks", "error", err)
		} else if released > 0 {
			slog.Warn("released stale synthesis locks", "count", released)
		}
		<-ticker.C
	}
}
