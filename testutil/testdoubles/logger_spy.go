package testdoubles

import (
	"context"
	"strings"
	"sync"

	"github.com/AntonStoeckl/library-lending-go/docstore"
)

// LogRecord is one captured log call.
type LogRecord struct {
	Level   string
	Message string
	Args    []any
}

// LoggerSpy captures log calls. It implements both docstore.Logger and docstore.ContextualLogger.
type LoggerSpy struct {
	mu      sync.Mutex
	records []LogRecord
}

// NewLoggerSpy creates an empty LoggerSpy.
func NewLoggerSpy() *LoggerSpy {
	return &LoggerSpy{}
}

func (s *LoggerSpy) Debug(msg string, args ...any) { s.add("debug", msg, args) }
func (s *LoggerSpy) Info(msg string, args ...any)  { s.add("info", msg, args) }
func (s *LoggerSpy) Warn(msg string, args ...any)  { s.add("warn", msg, args) }
func (s *LoggerSpy) Error(msg string, args ...any) { s.add("error", msg, args) }

func (s *LoggerSpy) DebugContext(_ context.Context, msg string, args ...any) { s.add("debug", msg, args) }
func (s *LoggerSpy) InfoContext(_ context.Context, msg string, args ...any)  { s.add("info", msg, args) }
func (s *LoggerSpy) WarnContext(_ context.Context, msg string, args ...any)  { s.add("warn", msg, args) }
func (s *LoggerSpy) ErrorContext(_ context.Context, msg string, args ...any) { s.add("error", msg, args) }

func (s *LoggerSpy) add(level, msg string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, LogRecord{Level: level, Message: msg, Args: args})
}

// Records returns a copy of all captured log calls.
func (s *LoggerSpy) Records() []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LogRecord, len(s.records))
	copy(out, s.records)

	return out
}

// HasLog reports whether a record with the given level contains msg in its message.
func (s *LoggerSpy) HasLog(level, msg string) bool {
	for _, r := range s.Records() {
		if r.Level == level && strings.Contains(r.Message, msg) {
			return true
		}
	}

	return false
}

func (s *LoggerSpy) HasDebugLog(msg string) bool { return s.HasLog("debug", msg) }
func (s *LoggerSpy) HasInfoLog(msg string) bool  { return s.HasLog("info", msg) }
func (s *LoggerSpy) HasWarnLog(msg string) bool  { return s.HasLog("warn", msg) }
func (s *LoggerSpy) HasErrorLog(msg string) bool { return s.HasLog("error", msg) }

var (
	_ docstore.Logger           = (*LoggerSpy)(nil)
	_ docstore.ContextualLogger = (*LoggerSpy)(nil)
)
