package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// SanitizingHandler filters every record through a Sanitizer before
// delegating to the wrapped handler. Both the message and all string
// attributes are redacted, including attributes bound via With.
type SanitizingHandler struct {
	next      slog.Handler
	sanitizer *Sanitizer
}

// NewSanitizingHandler wraps next with credential redaction.
func NewSanitizingHandler(next slog.Handler, sanitizer *Sanitizer) *SanitizingHandler {
	return &SanitizingHandler{next: next, sanitizer: sanitizer}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, h.sanitizer.Sanitize(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.redact(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redact(a)
	}
	return &SanitizingHandler{next: h.next.WithAttrs(redacted), sanitizer: h.sanitizer}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name), sanitizer: h.sanitizer}
}

func (h *SanitizingHandler) redact(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.sanitizer.Sanitize(a.Value.String()))
	case slog.KindGroup:
		members := a.Value.Group()
		redacted := make([]slog.Attr, len(members))
		for i, m := range members {
			redacted[i] = h.redact(m)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	default:
		return a
	}
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// contextKeys are rendered first on each line so workflow activity is
// easy to follow when phases run concurrently.
var contextKeys = map[string]bool{
	"workflow_id": true,
	"phase":       true,
	"task_id":     true,
	"provider":    true,
	"stream":      true,
	"agent":       true,
}

// PrettyHandler renders compact colorized lines for interactive runs.
type PrettyHandler struct {
	mu     sync.Mutex
	w      io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

// NewPrettyHandler creates a handler writing human-readable output to w.
func NewPrettyHandler(w io.Writer, level slog.Level) *PrettyHandler {
	return &PrettyHandler{w: w, level: level}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	all := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	all = append(all, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		all = append(all, a)
		return true
	})

	var line strings.Builder
	line.WriteString(r.Time.Format("15:04:05"))
	line.WriteByte(' ')
	line.WriteString(levelTag(r.Level))
	line.WriteByte(' ')
	line.WriteString(r.Message)

	// Context identifiers first, remaining attrs in record order.
	for _, a := range all {
		if len(h.groups) == 0 && contextKeys[a.Key] {
			h.writeAttr(&line, a)
		}
	}
	for _, a := range all {
		if len(h.groups) == 0 && contextKeys[a.Key] {
			continue
		}
		h.writeAttr(&line, a)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.w, line.String())
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &PrettyHandler{w: h.w, level: h.level, attrs: merged, groups: h.groups}
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	return &PrettyHandler{w: h.w, level: h.level, attrs: h.attrs, groups: append(h.groups[:len(h.groups):len(h.groups)], name)}
}

func (h *PrettyHandler) writeAttr(line *strings.Builder, a slog.Attr) {
	if a.Value.Kind() == slog.KindGroup {
		for _, m := range a.Value.Group() {
			h.writeAttr(line, m)
		}
		return
	}
	key := a.Key
	for i := len(h.groups) - 1; i >= 0; i-- {
		key = h.groups[i] + "." + key
	}
	fmt.Fprintf(line, " %s%s%s=%v", colorCyan, key, colorReset, a.Value.Any())
}

func levelTag(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return colorGray + "DBG" + colorReset
	case slog.LevelInfo:
		return colorBlue + "INF" + colorReset
	case slog.LevelWarn:
		return colorYellow + "WRN" + colorReset
	case slog.LevelError:
		return colorRed + "ERR" + colorReset
	default:
		return level.String()
	}
}
