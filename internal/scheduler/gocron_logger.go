package scheduler

import (
	"log/slog"

	"github.com/go-co-op/gocron/v2"
)

// gocronLogger adapts slog to the gocron.Logger interface.
type gocronLogger struct {
	logger *slog.Logger
}

//nolint:ireturn // Interface return is required by gocron's API contract
func newGocronLogger(logger *slog.Logger) gocron.Logger {
	return &gocronLogger{logger: logger}
}

func (l *gocronLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *gocronLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *gocronLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *gocronLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
