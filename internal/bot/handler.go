package bot

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/edgard/signalbot/internal/command"
	"github.com/edgard/signalbot/internal/database"
	"github.com/edgard/signalbot/internal/signal"
)

// HandleFrame runs one inbound gateway frame through the pipeline:
// parse, persist, evict, interpret, dispatch, reply. Every failure past
// parsing is converted into an ERROR: reply to the originating group;
// nothing here may take down the connection.
func (b *Bot) HandleFrame(ctx context.Context, raw []byte) {
	inbound, err := signal.ParseEnvelope(raw)
	if err != nil {
		// No group is known for a malformed payload, so there is nobody
		// to reply to. Log and move on.
		b.logger.ErrorContext(ctx, "Dropping malformed payload", "error", err)
		return
	}
	if inbound == nil {
		return
	}
	if inbound.GroupID == "" {
		b.logger.DebugContext(ctx, "Ignoring non-group message", "source_name", inbound.SourceName)
		return
	}
	if inbound.Message == "" {
		return
	}

	recipient := signal.GroupRecipient(inbound.GroupID)

	// Persist before command handling. A store failure is logged but does
	// not block the command: the user still gets their reply.
	if err := b.persist(ctx, inbound); err != nil {
		b.logger.ErrorContext(ctx, "Failed to persist message",
			"group_id", inbound.GroupID, "error", err)
	} else if _, err := b.store.DeleteOlderThan(ctx, b.cfg.Database.MaxAgeHours, time.Now().UnixMilli()); err != nil {
		b.logger.ErrorContext(ctx, "Retention sweep failed", "error", err)
	}

	req := command.Interpret(inbound.Message, b.cfg.Summary.DefaultHours)
	switch req.Kind {
	case command.KindPlain:
		return
	case command.KindInvalid:
		b.reply(ctx, recipient, "ERROR: "+req.Reason, "")
	case command.KindSummary:
		b.handleSummary(ctx, recipient, inbound.SourceName, req.Summary)
	case command.KindImagine:
		b.handleImagine(ctx, recipient, inbound.SourceName, req.Imagine)
	}
}

func (b *Bot) persist(ctx context.Context, inbound *signal.Inbound) error {
	record := &database.Message{
		Timestamp:  inbound.Timestamp,
		SourceName: inbound.SourceName,
		Message:    inbound.Message,
		GroupID:    inbound.GroupID,
	}
	if inbound.SourceNumber != "" {
		record.SourceNumber = sql.NullString{String: inbound.SourceNumber, Valid: true}
	}
	return b.store.SaveMessage(ctx, record)
}

func (b *Bot) handleSummary(ctx context.Context, recipient, sourceName string, req *command.SummaryRequest) {
	b.logger.InfoContext(ctx, "Summary requested",
		"source_name", sourceName,
		"count", intOrNil(req.Count),
		"hours", intOrNil(req.Hours),
		"question", req.Question != "")

	text, err := b.summarizer.Generate(ctx, req)
	if err != nil {
		b.reply(ctx, recipient, "ERROR: "+err.Error(), "")
		return
	}

	for _, chunk := range chunkReply(text, b.cfg.Signal.MaxMessageLength) {
		b.reply(ctx, recipient, chunk, "")
	}
}

func (b *Bot) handleImagine(ctx context.Context, recipient, sourceName string, req *command.ImagineRequest) {
	b.logger.InfoContext(ctx, "Image requested", "source_name", sourceName, "prompt", req.Prompt)

	path, revisedPrompt, err := b.imaginer.Generate(ctx, req.Prompt, sourceName)
	if err != nil {
		b.reply(ctx, recipient, "ERROR: "+err.Error(), "")
		return
	}

	b.reply(ctx, recipient, fmt.Sprintf("Image generated with revised prompt: '%s'", revisedPrompt), path)
}

// reply sends one frame to the originating group. Replies are
// fire-and-forget: send failures are logged, never retried, and never
// block subsequent inbound processing.
func (b *Bot) reply(ctx context.Context, recipient, text, attachmentPath string) {
	status, err := b.sender.Send(ctx, text, []string{recipient}, attachmentPath)
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to send reply", "recipient", recipient, "error", err)
		return
	}
	if status != 201 {
		b.logger.WarnContext(ctx, "Reply not accepted by gateway", "recipient", recipient, "status", status)
	}
}

var paragraphHeaderRe = regexp.MustCompile(`\*\*[\w\d\s]+:\*\*`)

// chunkReply splits a long reply into chunks of at most maxLen bytes,
// preferring to break in front of a "**Header:**" paragraph so chunks
// stay readable.
func chunkReply(text string, maxLen int) []string {
	if maxLen <= 0 || len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > maxLen {
		window := text[:maxLen]

		cut := maxLen
		if matches := paragraphHeaderRe.FindAllStringIndex(window, -1); len(matches) > 0 {
			if start := matches[len(matches)-1][0]; start > 0 {
				cut = start
			}
		}

		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	return append(chunks, text)
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
