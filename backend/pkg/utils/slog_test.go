package utils

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLogWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		lines int
	}{
		{name: "single line", input: "broker started\n", lines: 1},
		{name: "no newline", input: "broker started", lines: 1},
		{name: "empty", input: "", lines: 0},
		{name: "blank lines only", input: "\n\n", lines: 0},
		{name: "multiple lines", input: "one\ntwo\n\nthree", lines: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			w := NewSlogWriter(slog.New(slog.NewTextHandler(&buf, nil)))

			n, err := w.Write([]byte(tt.input))
			if err != nil {
				t.Fatalf("Write() error = %v", err)
			}

			if n != len(tt.input) {
				t.Errorf("Write() n = %d, want %d", n, len(tt.input))
			}

			if got := strings.Count(buf.String(), "level=INFO"); got != tt.lines {
				t.Errorf("logged %d lines, want %d: %s", got, tt.lines, buf.String())
			}
		})
	}
}

func TestErrAttr(t *testing.T) {
	t.Parallel()

	err := errors.New("pump stuck")
	attr := ErrAttr(err)

	if attr.Key != "error" || attr.Value.Any() != err {
		t.Errorf("ErrAttr() = %v, want error=%v", attr, err)
	}
}

func TestSlogReplacer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{name: "time", attr: slog.Time("at", time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)), want: "2026-03-04 05:06:07"},
		{name: "duration", attr: slog.Duration("remaining", 90*time.Second), want: "1m30s"},
		{name: "string untouched", attr: slog.String("tag", "watering"), want: "watering"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := SlogReplacer(nil, tt.attr)
			if got.Value.Kind() != slog.KindString || got.Value.String() != tt.want {
				t.Errorf("SlogReplacer() = %v, want %q", got.Value, tt.want)
			}
		})
	}

	if got := SlogReplacer(nil, slog.Int("cycles", 3)); got.Value.Kind() != slog.KindInt64 {
		t.Errorf("SlogReplacer() changed int kind to %v", got.Value.Kind())
	}
}

func TestLogOnError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := slog.New(slog.NewTextHandler(&buf, nil))

	LogOnError(l, func() error { return nil }, "close failed")

	if buf.Len() != 0 {
		t.Fatalf("LogOnError() logged on success: %s", buf.String())
	}

	LogOnError(l, func() error { return errors.New("db locked") }, "close failed")

	if out := buf.String(); !strings.Contains(out, "close failed") || !strings.Contains(out, "db locked") {
		t.Errorf("LogOnError() output = %s", out)
	}
}
