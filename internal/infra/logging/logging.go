// File: internal/infra/logging/logging.go
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"amc-subscription/internal/config"

	"github.com/rs/zerolog"
)

const serviceName = "amc-payments"

// New builds the process logger. Format "console" (or dev mode) renders
// human-readable lines; anything else writes JSON to stdout.
func New(cfg config.LogConfig, dev bool) *zerolog.Logger {
	return newLogger(os.Stdout, cfg, dev)
}

func newLogger(w io.Writer, cfg config.LogConfig, dev bool) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if dev || strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	zctx := zerolog.New(w).With().Timestamp().Str("service", serviceName)
	if dev {
		zctx = zctx.Caller()
	}
	base := zctx.Logger()

	// Only chatty levels are sampled; warnings and errors always pass.
	if cfg.Sampling && !dev {
		base = base.Sample(zerolog.LevelSampler{
			DebugSampler: &zerolog.BasicSampler{N: 100},
			InfoSampler:  &zerolog.BasicSampler{N: 10},
		})
	}
	return &base
}

// requestFields travel in the context so loggers deep in the call chain can
// tag lines with the request that caused them.
type requestFields struct {
	traceID     string
	orderFormID string
	clientIP    string
}

type ctxKey struct{}

func fieldsFrom(ctx context.Context) requestFields {
	f, _ := ctx.Value(ctxKey{}).(requestFields)
	return f
}

func WithTraceID(ctx context.Context, id string) context.Context {
	f := fieldsFrom(ctx)
	f.traceID = id
	return context.WithValue(ctx, ctxKey{}, f)
}

func WithOrderFormID(ctx context.Context, id string) context.Context {
	f := fieldsFrom(ctx)
	f.orderFormID = id
	return context.WithValue(ctx, ctxKey{}, f)
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	f := fieldsFrom(ctx)
	f.clientIP = ip
	return context.WithValue(ctx, ctxKey{}, f)
}

// TraceID returns the trace id stored in ctx, if any.
func TraceID(ctx context.Context) string {
	return fieldsFrom(ctx).traceID
}

// With returns base enriched with whatever request fields ctx carries.
func With(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	f := fieldsFrom(ctx)
	if f == (requestFields{}) {
		return base
	}
	l := base.With()
	if f.traceID != "" {
		l = l.Str("trace_id", f.traceID)
	}
	if f.orderFormID != "" {
		l = l.Str("order_form_id", f.orderFormID)
	}
	if f.clientIP != "" {
		l = l.Str("client_ip", f.clientIP)
	}
	logger := l.Logger()
	return &logger
}

// TraceDuration logs entry and exit of name at TRACE level.
//
//	defer logging.TraceDuration(log, "PaymentUC.VerifyPayment")()
func TraceDuration(logger *zerolog.Logger, name string) func() {
	start := time.Now()
	logger.Trace().Str("method", name).Msg("start")
	return func() {
		logger.Trace().Str("method", name).Dur("duration", time.Since(start)).Msg("finish")
	}
}

// Redact masks customer contact details outside dev mode, keeping a short
// prefix and suffix for correlation.
func Redact(s string, dev bool) string {
	switch {
	case dev:
		return s
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "..." + s[len(s)-2:]
	}
}
