// Package logging wires github.com/rs/zerolog the way
// dvloznov-finance-tracker's internal/logger does: a console writer for
// local runs, a context-carried logger so request handlers and pipeline
// steps don't thread a logger through every function signature.
package logging

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// New builds the process-wide base logger, read once at start-up.
func New(level string) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log := zerolog.New(out).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		log = log.Level(lvl)
	}
	return log
}

// With attaches logger to ctx for downstream handlers to pick up via From.
func With(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// From retrieves the request-scoped logger, falling back to a disabled
// logger so a missing context value never panics a hot path.
func From(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return zerolog.Nop()
}
