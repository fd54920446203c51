// Package logging provides the structured logger used across the
// workflow engine. All output passes through a sanitizer so provider
// credentials never reach a log sink, and contextual helpers attach
// the identifiers (workflow, phase, task, provider, stream) that the
// dispatcher and engine thread through their call paths.
package logging

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Logger wraps slog.Logger with credential sanitization and workflow
// context helpers.
type Logger struct {
	*slog.Logger
	sanitizer *Sanitizer
}

// Config controls logger construction.
type Config struct {
	Level     string
	Format    string // auto, text, json
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns the configuration used when none is supplied:
// info level, format chosen from the output destination.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "auto",
		Output: os.Stdout,
	}
}

// New builds a logger from cfg. In "auto" format a terminal gets the
// human-readable handler and everything else gets JSON.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	sanitizer := NewSanitizer()
	return &Logger{
		Logger:    slog.New(NewSanitizingHandler(newBaseHandler(cfg), sanitizer)),
		sanitizer: sanitizer,
	}
}

func newBaseHandler(cfg Config) slog.Handler {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	switch cfg.Format {
	case "text":
		return slog.NewTextHandler(cfg.Output, opts)
	case "json":
		return slog.NewJSONHandler(cfg.Output, opts)
	default:
		if isTerminal(cfg.Output) {
			return NewPrettyHandler(cfg.Output, level)
		}
		return slog.NewJSONHandler(cfg.Output, opts)
	}
}

// NewNop returns a logger that discards everything. Used in tests and
// as the fallback when a component is constructed without a logger.
func NewNop() *Logger {
	return &Logger{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		sanitizer: NewSanitizer(),
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		sanitizer: l.sanitizer,
	}
}

// WithWorkflow attaches a workflow identifier to every record.
func (l *Logger) WithWorkflow(workflowID string) *Logger {
	return l.with("workflow_id", workflowID)
}

// WithPhase attaches a phase name to every record.
func (l *Logger) WithPhase(phase string) *Logger {
	return l.with("phase", phase)
}

// WithTask attaches a task identifier to every record.
func (l *Logger) WithTask(taskID string) *Logger {
	return l.with("task_id", taskID)
}

// WithAgent attaches an agent name to every record.
func (l *Logger) WithAgent(agent string) *Logger {
	return l.with("agent", agent)
}

// WithProvider attaches the provider currently serving a dispatch.
func (l *Logger) WithProvider(provider string) *Logger {
	return l.with("provider", provider)
}

// WithStream attaches a stream index for multi-stream phases.
func (l *Logger) WithStream(stream int) *Logger {
	return l.with("stream", stream)
}

// With attaches arbitrary key/value pairs to every record.
func (l *Logger) With(args ...any) *Logger {
	return l.with(args...)
}

// Sanitizer exposes the logger's sanitizer so callers can redact
// strings destined for places other than the log, such as error
// payloads or exported evidence.
func (l *Logger) Sanitizer() *Sanitizer {
	return l.sanitizer
}

// Sanitize redacts credentials from input using the logger's sanitizer.
func (l *Logger) Sanitize(input string) string {
	return l.sanitizer.Sanitize(input)
}
