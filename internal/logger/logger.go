// Package logger carries per-sync attributes (activation, source, key)
// through the pipeline on the context, so every log line inside a key's run
// is tagged without threading loggers around.
package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const attrKey contextKey = "attrKey"

// ContextHandler implements [slog.Handler] and adds to the log record any
// attributes previously attached to the context with [Ctx].
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(handler slog.Handler) ContextHandler {
	return ContextHandler{Handler: handler}
}

// Handle implements [slog.Handler].
func (h ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs, ok := ctx.Value(attrKey).([]slog.Attr)
	if !ok {
		return h.Handler.Handle(ctx, record)
	}

	record.AddAttrs(attrs...)

	return h.Handler.Handle(ctx, record)
}

// Ctx returns a context with the given attributes attached, appending to any
// already present.
func Ctx(ctx context.Context, toAppend ...slog.Attr) context.Context {
	attrs, ok := ctx.Value(attrKey).([]slog.Attr)
	if !ok {
		attrs = []slog.Attr{}
	}

	attrs = append(attrs, toAppend...)
	return context.WithValue(ctx, attrKey, attrs)
}
