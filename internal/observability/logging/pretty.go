package logging

import (
	"context"
	"io"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/pkgindex/pkgindex/internal/observability"
)

// prettyLogger renders human-readable lines via charmbracelet/log.
type prettyLogger struct {
	l      *log.Logger
	closer io.Closer
}

func newPrettyLogger(w io.Writer, closer io.Closer, level string) *prettyLogger {
	l := log.NewWithOptions(w, log.Options{
		Level:           charmLevel(level),
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	return &prettyLogger{l: l, closer: closer}
}

func charmLevel(level string) log.Level {
	switch level {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func (p *prettyLogger) with(component string) *log.Logger {
	return p.l.WithPrefix(component)
}

func (p *prettyLogger) Debug(component, msg string, fields ...any) {
	p.with(component).Debug(msg, fields...)
}

func (p *prettyLogger) Info(component, msg string, fields ...any) {
	p.with(component).Info(msg, fields...)
}

func (p *prettyLogger) Warn(component, msg string, fields ...any) {
	p.with(component).Warn(msg, fields...)
}

func (p *prettyLogger) Error(component, msg string, fields ...any) {
	p.with(component).Error(msg, fields...)
}

func (p *prettyLogger) Event(ctx context.Context, event string, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]any, 0, 2*len(keys)+2)
	if id := observability.OpID(ctx); id != "" {
		kv = append(kv, "op_id", id)
	}
	for _, k := range keys {
		kv = append(kv, k, fields[k])
	}
	p.with("cli").Debug(event, kv...)
}

func (p *prettyLogger) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}
