// Package summary implements the summary pipeline: it resolves the
// requested time window or message count, retrieves the transcript from
// the store, and hands it to the summarization capability.
package summary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/signalbot/internal/command"
)

// Hard ceiling on the requested window, one week.
const maxWindowHours = 168

const millisPerHour = 3600_000

// Window resolution errors are user-facing: the caller relays them to the
// group as ERROR: replies.
var (
	ErrNoWindow       = errors.New("either hours or count must be provided")
	ErrWindowTooLarge = fmt.Errorf("hours cannot be more than %d", maxWindowHours)
)

// Summarizer is the external generative-text capability. Safety-filtered
// output is a successful call returning a string prefixed "ERROR:", not an
// error value; callers treat any returned string as a valid reply.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string, question string) (string, error)
}

// TranscriptStore is the subset of the message store the pipeline reads.
// Both methods return "sourceName: message" lines in chronological order.
type TranscriptStore interface {
	GetTranscriptByCount(ctx context.Context, limit int) ([]string, error)
	GetTranscriptSince(ctx context.Context, startMs int64) ([]string, error)
}

// ResolveWindow computes the query start timestamp in milliseconds.
// Both count and hours absent is an error, as is a window above one week.
// hours == 0 is the explicit "all history" escape hatch resolving to 0;
// a nil hours defaults to the one-week maximum.
func ResolveWindow(count, hours *int, now time.Time) (int64, error) {
	if count == nil && hours == nil {
		return 0, ErrNoWindow
	}
	if hours != nil && *hours > maxWindowHours {
		return 0, ErrWindowTooLarge
	}

	h := maxWindowHours
	if hours != nil {
		h = *hours
	}
	if h == 0 {
		return 0, nil
	}
	return now.UnixMilli() - int64(h)*millisPerHour, nil
}

// Pipeline stitches together transcript retrieval and summarization.
type Pipeline struct {
	store      TranscriptStore
	summarizer Summarizer
	logger     *slog.Logger
}

// NewPipeline creates a summary pipeline over the given store and
// summarization capability.
func NewPipeline(store TranscriptStore, summarizer Summarizer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		store:      store,
		summarizer: summarizer,
		logger:     logger.With("component", "summary_pipeline"),
	}
}

// Generate retrieves the requested transcript and produces a summary.
// When a count is set it takes priority over the hours window. An empty
// transcript is passed through to the summarizer unchanged; a degenerate
// answer is acceptable and not filtered here.
func (p *Pipeline) Generate(ctx context.Context, req *command.SummaryRequest) (string, error) {
	startMs, err := ResolveWindow(req.Count, req.Hours, time.Now())
	if err != nil {
		return "", err
	}

	var lines []string
	if req.Count != nil {
		lines, err = p.store.GetTranscriptByCount(ctx, *req.Count)
	} else {
		lines, err = p.store.GetTranscriptSince(ctx, startMs)
	}
	if err != nil {
		return "", fmt.Errorf("failed to retrieve transcript: %w", err)
	}

	transcript := strings.Join(lines, "\n")
	p.logger.DebugContext(ctx, "Transcript assembled",
		"lines", len(lines), "question", req.Question != "")

	result, err := p.summarizer.Summarize(ctx, transcript, req.Question)
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return result, nil
}

// Prompt assembles the generation prompt from the transcript, an optional
// question, and an optional prefix used when no question was asked.
func Prompt(transcript, question, prefix string) string {
	if question != "" {
		return fmt.Sprintf("Answer the following question, based on the text that follows it:\n%s\n\n%s", question, transcript)
	}
	return fmt.Sprintf("%s\n\n%s\n", prefix, transcript)
}
