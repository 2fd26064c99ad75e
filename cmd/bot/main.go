// Package main contains the entrypoint for the Signal group bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgard/signalbot/internal/bot"
	"github.com/edgard/signalbot/internal/config"
	"github.com/edgard/signalbot/internal/database"
	"github.com/edgard/signalbot/internal/gemini"
	"github.com/edgard/signalbot/internal/imagine"
	"github.com/edgard/signalbot/internal/logger"
	"github.com/edgard/signalbot/internal/openai"
	"github.com/edgard/signalbot/internal/scheduler"
	signalapi "github.com/edgard/signalbot/internal/signal"
	"github.com/edgard/signalbot/internal/summary"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all components (config, logger, db, generative clients,
// bot), starts the requested mode, and returns an exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	mode := flag.String("mode", "websocket", "Start mode: websocket or rest")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	summarizer, imagineBackend, err := buildProviders(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize generative backends", "error", err)
		return 1
	}

	imageGen, err := imagine.NewGenerator(imagineBackend, cfg.Imagine.OutputDir, log)
	if err != nil {
		log.Error("Failed to initialize image generator", "error", err)
		return 1
	}

	pipeline := summary.NewPipeline(store, summarizer, log)
	gateway := signalapi.NewClient(cfg.Signal, log)

	sched, err := scheduler.New(log)
	if err != nil {
		log.Error("Failed to initialize scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, cfg, store, pipeline, imageGen, gateway, sched)

	switch *mode {
	case "rest":
		log.Info("Draining pending messages over REST...")
		if err := app.DrainPending(ctx); err != nil {
			log.Error("REST drain failed", "error", err)
			return 1
		}
		return 0
	case "websocket":
		log.Info("Starting bot...")
		runErr := app.Run(ctx)
		log.Info("Bot run loop finished. Shutting down...")

		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			log.Error("Bot stopped due to error", "error", runErr)
			time.Sleep(time.Second)
			return 1
		}

		log.Info("Bot stopped gracefully.")
		return 0
	default:
		log.Error("Unknown mode", "mode", *mode)
		return 1
	}
}

// buildProviders constructs the generative clients the configured
// providers need. A client is shared when both capabilities use the same
// provider.
func buildProviders(ctx context.Context, cfg *config.Config, log *slog.Logger) (summary.Summarizer, imagine.Backend, error) {
	var geminiClient *gemini.Client
	var openaiClient *openai.Client
	var err error

	if cfg.Summary.Provider == "google" || cfg.Imagine.Provider == "google" {
		geminiClient, err = gemini.NewClient(ctx, cfg.Gemini, cfg.Summary.PromptFile, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
	}
	if cfg.Summary.Provider == "openai" || cfg.Imagine.Provider == "openai" {
		openaiClient, err = openai.NewClient(cfg.OpenAI, cfg.Summary.PromptFile, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
	}

	var summarizer summary.Summarizer
	switch cfg.Summary.Provider {
	case "openai":
		summarizer = openaiClient
	default:
		summarizer = geminiClient
	}

	var backend imagine.Backend
	switch cfg.Imagine.Provider {
	case "openai":
		backend = openaiClient
	default:
		backend = geminiClient
	}

	return summarizer, backend, nil
}
