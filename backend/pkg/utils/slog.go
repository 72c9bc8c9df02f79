package utils

import (
	"bytes"
	"log/slog"
	"time"
)

// ErrAttr wraps an error as a slog attribute.
func ErrAttr(err error) slog.Attr {
	return slog.Any("error", err)
}

// SlogReplacer renders times and durations in a human readable form.
func SlogReplacer(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindTime:
		return slog.String(a.Key, a.Value.Time().Format(time.DateTime))
	case slog.KindDuration:
		return slog.String(a.Key, a.Value.Duration().String())
	default:
		return a
	}
}

// LogOnError runs fn and logs msg at error level when it fails. Typically used with defer.
func LogOnError(l *slog.Logger, fn func() error, msg string) {
	if err := fn(); err != nil {
		l.Error(msg, ErrAttr(err))
	}
}

// LogWriter adapts a slog.Logger to io.Writer for libraries that log through the log package.
type LogWriter struct {
	logger *slog.Logger
}

// NewSlogWriter returns a writer that logs every written line at info level.
func NewSlogWriter(l *slog.Logger) *LogWriter {
	return &LogWriter{logger: l}
}

func (w *LogWriter) Write(p []byte) (int, error) {
	for line := range bytes.SplitSeq(p, []byte("\n")) {
		if msg := bytes.TrimSpace(line); len(msg) > 0 {
			w.logger.Info(string(msg))
		}
	}

	return len(p), nil
}
