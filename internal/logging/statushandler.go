package logging

import (
	"context"
	"log/slog"
)

// AttrSource returns attributes describing current adapter state.
type AttrSource func() []slog.Attr

// StatusHandler wraps another handler and stamps each record with the
// attributes from source, e.g. the adapter's current status code.
type StatusHandler struct {
	inner  slog.Handler
	source AttrSource
}

// NewStatusHandler wraps inner.
func NewStatusHandler(inner slog.Handler, source AttrSource) *StatusHandler {
	return &StatusHandler{inner: inner, source: source}
}

func (h *StatusHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *StatusHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.source != nil {
		r = r.Clone()
		r.AddAttrs(h.source()...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *StatusHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &StatusHandler{inner: h.inner.WithAttrs(attrs), source: h.source}
}

func (h *StatusHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &StatusHandler{inner: h.inner.WithGroup(name), source: h.source}
}
