package logging

import (
	"context"
	"log/slog"
)

// MultiHandler duplicates every record across a set of handlers, so a
// single logger can feed the console, the log file, Graylog, and the
// OTel exporter at once. Nil entries are dropped at construction.
type MultiHandler struct {
	handlers []slog.Handler
}

func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	m := &MultiHandler{handlers: make([]slog.Handler, 0, len(handlers))}
	for _, h := range handlers {
		if h == nil {
			continue
		}
		m.handlers = append(m.handlers, h)
	}
	return m
}

// Enabled reports whether at least one sink wants records at this level.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle fans the record out. A failing sink never starves the others,
// so a dead Graylog socket cannot silence the log file.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		_ = h.Handle(ctx, r.Clone())
	}
	return nil
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: next}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: next}
}
