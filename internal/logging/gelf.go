package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Graylog2/go-gelf/gelf"
)

// Syslog severity levels used by GELF.
const (
	gelfLevelError = 3
	gelfLevelWarn  = 4
	gelfLevelInfo  = 6
	gelfLevelDebug = 7
)

// GelfHandler is a slog.Handler that ships records to a Graylog server
// over UDP GELF.
type GelfHandler struct {
	writer *gelf.Writer
	level  slog.Level
	host   string
	attrs  []slog.Attr
}

// NewGelfHandler connects a GELF writer to the given address. The level
// string follows the same names Setup accepts.
func NewGelfHandler(addr, level string) (*GelfHandler, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("connecting gelf writer: %w", err)
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &GelfHandler{writer: w, level: parseLevel(level), host: host}, nil
}

// Enabled reports whether the level passes the handler threshold.
func (h *GelfHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle ships one record to Graylog.
func (h *GelfHandler) Handle(_ context.Context, r slog.Record) error {
	extra := make(map[string]interface{}, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		extra["_"+a.Key] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		extra["_"+a.Key] = a.Value.String()
		return true
	})

	m := &gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    r.Message,
		TimeUnix: float64(r.Time.UnixNano()) / 1e9,
		Level:    gelfLevel(r.Level),
		Extra:    extra,
	}
	return h.writer.WriteMessage(m)
}

// WithAttrs returns a handler carrying the extra attributes.
func (h *GelfHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &GelfHandler{writer: h.writer, level: h.level, host: h.host, attrs: merged}
}

// WithGroup flattens groups; GELF extras are a flat namespace.
func (h *GelfHandler) WithGroup(name string) slog.Handler {
	return h
}

// Close closes the underlying writer when it supports closing.
func (h *GelfHandler) Close() error {
	if c, ok := any(h.writer).(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func gelfLevel(l slog.Level) int32 {
	switch {
	case l >= slog.LevelError:
		return gelfLevelError
	case l >= slog.LevelWarn:
		return gelfLevelWarn
	case l >= slog.LevelInfo:
		return gelfLevelInfo
	default:
		return gelfLevelDebug
	}
}
