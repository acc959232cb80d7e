package binschema

import (
	"context"
	"log/slog"

	"github.com/twinfer/phisave/internal/cel"
	"github.com/twinfer/phisave/pkg/bitstream"
)

// options holds configuration for a codec
type options struct {
	logger  *slog.Logger
	pool    *cel.ExpressionPool
	strings bitstream.StringPolicy
}

// Option is a function that configures codec options
type Option func(*options)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStringPolicy sets the default UTF-8 policy for string fields
func WithStringPolicy(p bitstream.StringPolicy) Option {
	return func(o *options) {
		o.strings = p
	}
}

// WithExpressionPool shares a compiled-expression pool between codecs
func WithExpressionPool(pool *cel.ExpressionPool) Option {
	return func(o *options) {
		o.pool = pool
	}
}

func defaultOptions() options {
	return options{
		logger:  slog.Default(),
		strings: bitstream.Strict,
	}
}

// DecodeOption adjusts a single Decode call
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	strings bitstream.StringPolicy
}

// DecodeStrings overrides the string policy for one Decode call
func DecodeStrings(p bitstream.StringPolicy) DecodeOption {
	return func(c *decodeConfig) {
		c.strings = p
	}
}

type loggerKey struct{}

// ContextWithLogger routes the engine's tracing for calls made with ctx to logger,
// overriding the codec's own logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

func loggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return fallback
}
