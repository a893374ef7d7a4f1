// Package logctx carries a request-scoped logger through a context so that
// log lines emitted deep in the engine keep the request_id and trace fields
// attached by the HTTP middleware.
package logctx

import (
	"context"

	"github.com/mossleaf/bookmart/internal/observability"
)

type loggerKey struct{}

// With attaches the logger to the context.
func With(ctx context.Context, logger observability.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// From returns the attached logger, or nil when the context has none.
func From(ctx context.Context) observability.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(loggerKey{}).(observability.Logger)
	return logger
}

// FromOr returns the attached logger, falling back to the given one.
func FromOr(ctx context.Context, fallback observability.Logger) observability.Logger {
	if logger := From(ctx); logger != nil {
		return logger
	}
	return fallback
}
