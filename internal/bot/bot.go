// Package bot implements the connection manager: it owns the gateway
// connection lifecycle, feeds every inbound frame through the message
// pipeline, and routes replies back to the originating group.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/signalbot/internal/command"
	"github.com/edgard/signalbot/internal/config"
	"github.com/edgard/signalbot/internal/database"
	"github.com/edgard/signalbot/internal/scheduler"
	"github.com/edgard/signalbot/internal/signal"
)

// SummaryGenerator produces a summary reply for a summary request.
type SummaryGenerator interface {
	Generate(ctx context.Context, req *command.SummaryRequest) (string, error)
}

// ImageGenerator produces an image file for a prompt and returns its path
// and the prompt the provider actually used.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, requestor string) (path, revisedPrompt string, err error)
}

// Messenger sends one reply frame to the gateway. The returned status code
// is the gateway's HTTP status; 201 means accepted.
type Messenger interface {
	Send(ctx context.Context, text string, recipients []string, attachmentPath string) (int, error)
}

// Bot wires the gateway connection to the message pipeline.
type Bot struct {
	logger     *slog.Logger
	cfg        *config.Config
	store      database.Store
	summarizer SummaryGenerator
	imaginer   ImageGenerator
	gateway    *signal.Client
	sender     Messenger
	scheduler  *scheduler.Scheduler
}

// NewBot creates the bot with all required dependencies.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	store database.Store,
	summarizer SummaryGenerator,
	imaginer ImageGenerator,
	gateway *signal.Client,
	sched *scheduler.Scheduler,
) *Bot {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bot{
		logger:     logger.With("component", "bot"),
		cfg:        cfg,
		store:      store,
		summarizer: summarizer,
		imaginer:   imaginer,
		gateway:    gateway,
		sender:     gateway,
		scheduler:  sched,
	}
}

// Run starts the streaming listener and the maintenance scheduler, and
// blocks until the context is cancelled or a component fails.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.scheduler.AddCronJob("sql_maintenance", "0 4 * * *", func(taskCtx context.Context) error {
		return b.store.RunSQLMaintenance(taskCtx)
	}); err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.listen(gCtx)
	})

	g.Go(func() error {
		b.scheduler.Start()
		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// listen supervises the streaming connection: it dials, drains frames
// until the connection drops, and reconnects after the configured delay.
// It returns only when the context is cancelled.
func (b *Bot) listen(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := b.gateway.DialReceive(ctx)
		if err != nil {
			b.logger.Error("Failed to connect to gateway, will retry",
				"error", err, "delay", b.cfg.Signal.ReconnectDelay)
			if !sleepCtx(ctx, b.cfg.Signal.ReconnectDelay) {
				return ctx.Err()
			}
			continue
		}

		err = b.readLoop(ctx, conn)
		if closeErr := conn.Close(); closeErr != nil {
			b.logger.Debug("Error closing gateway connection", "error", closeErr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b.logger.Warn("Gateway connection lost, reconnecting",
			"error", err, "delay", b.cfg.Signal.ReconnectDelay)
		if !sleepCtx(ctx, b.cfg.Signal.ReconnectDelay) {
			return ctx.Err()
		}
	}
}

// readLoop processes inbound frames one at a time until the connection
// fails. A goroutine watches the context and closes the connection to
// unblock the blocking read on shutdown.
func (b *Bot) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("gateway read failed: %w", err)
		}
		b.HandleFrame(ctx, data)
	}
}

// DrainPending fetches the pending envelopes over the REST endpoint and
// persists every valid group message, without command dispatch. Used by
// the one-shot rest mode.
func (b *Bot) DrainPending(ctx context.Context) error {
	payloads, err := b.gateway.Receive(ctx)
	if err != nil {
		return err
	}

	stored := 0
	for _, payload := range payloads {
		inbound, err := signal.ParseEnvelope(payload)
		if err != nil {
			b.logger.Error("Dropping malformed payload", "error", err)
			continue
		}
		if inbound == nil || inbound.GroupID == "" || inbound.Message == "" {
			continue
		}
		if err := b.persist(ctx, inbound); err != nil {
			b.logger.Error("Failed to persist fetched message", "error", err)
			continue
		}
		stored++
	}

	b.logger.Info("Drained pending messages", "received", len(payloads), "stored", stored)
	return nil
}

// sleepCtx waits for d or until the context is cancelled. It reports
// whether the full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
