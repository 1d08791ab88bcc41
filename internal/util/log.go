package util

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogFromContext returns the logger attached to ctx, falling back to the
// global logger when none is set.
func LogFromContext(ctx context.Context) *zerolog.Logger {
	l := log.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		l = &log.Logger
	}
	return l
}

// WithLogger attaches l to ctx.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// WithAction derives a per-action logger carrying a fresh trace id and the
// action name, and attaches it to ctx.
func WithAction(ctx context.Context, component string, action string) (context.Context, *zerolog.Logger) {
	l := LogFromContext(ctx).With().
		Str("component", component).
		Str("action", action).
		Str("trace_id", uuid.NewString()).
		Logger()
	return l.WithContext(ctx), &l
}

// ConfigureGlobalLogger sets the global log level and switches to human
// readable console output when prettyPrintConsole is set.
func ConfigureGlobalLogger(level zerolog.Level, prettyPrintConsole bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(level)
	if prettyPrintConsole {
		log.Logger = log.Output(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.TimeFormat = "15:04:05"
		}))
	}
}
