package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/AntonStoeckl/library-lending-go/docstore/oteladapters"
)

var ErrInvalidLogLevel = errors.New("invalid log level")

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, level)
	}

	return l, nil
}

// NewHandler builds the slog handler described by cfg, writing to w.
func NewHandler(cfg LogConfig, w io.Writer) (slog.Handler, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	options := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case LogFormatJSON, "":
		return slog.NewJSONHandler(w, options), nil
	case LogFormatText:
		return slog.NewTextHandler(w, options), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLogFormat, cfg.Format)
	}
}

// NewContextualLogger returns the logger handed to the stores and the engine. With otel_logs
// enabled, records go through the OpenTelemetry slog bridge and carry trace correlation.
func NewContextualLogger(cfg Config, handler slog.Handler) *oteladapters.SlogBridgeLogger {
	if cfg.Observability.OTelLogs {
		return oteladapters.NewSlogBridgeLogger(cfg.Observability.ServiceName)
	}

	return oteladapters.NewSlogBridgeLoggerWithHandler(handler)
}
