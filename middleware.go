package toolchat

import (
	"context"
	"log/slog"
	"time"
)

// HandlerMiddleware wraps a Handler with cross-cutting behavior (logging, recovery).
type HandlerMiddleware func(Handler) Handler

// WithLogging returns a middleware that logs start, end, duration, and errors
// of every handler invocation.
func WithLogging(logger *slog.Logger) HandlerMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, args map[string]any) (any, error) {
			logger.Info("tool handler start")
			start := time.Now()
			result, err := next(ctx, args)
			dur := time.Since(start)
			if err != nil {
				logger.Error("tool handler error", "duration", dur, "error", err)
				return nil, err
			}
			logger.Info("tool handler end", "duration", dur)
			return result, nil
		}
	}
}

// WithRecovery returns a middleware that recovers panics and returns them as
// errors. The Executor recovers by default; use this when invoking handlers
// outside an Executor.
func WithRecovery() HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, args map[string]any) (result any, err error) {
			defer func() {
				if p := recover(); p != nil {
					result = nil
					err = &panicError{p: p}
				}
			}()
			return next(ctx, args)
		}
	}
}

// Use stores the given middlewares and reapplies them from scratch to all
// registered handlers (onion order: first middleware is outermost). Handlers
// registered after Use also get them. Calling Use again replaces the chain and
// rewraps from the raw handlers, so nothing is ever double-wrapped.
func (r *Registry) Use(middlewares ...HandlerMiddleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = middlewares
	for key, raw := range r.rawHandlers {
		h := raw
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		r.handlers[key] = h
	}
}
