package logx

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNopDisabled(t *testing.T) {
	l := Nop()
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if l.Enabled(context.Background(), level) {
			t.Errorf("Nop logger enabled for %v", level)
		}
	}
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
}

func TestForAddsPath(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	For(base, "manager", "compositor").Info("hello")
	if !strings.Contains(buf.String(), "path=manager.compositor") {
		t.Errorf("missing path attribute in %q", buf.String())
	}
}

func TestPathHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	h := NewPathHandler(inner, slog.LevelWarn, map[string]slog.Level{
		"manager":            slog.LevelInfo,
		"manager.compositor": slog.LevelDebug,
	})
	base := slog.New(h)

	For(base, "manager", "compositor").Debug("composite debug")
	For(base, "manager", "stage").Debug("stage debug")
	For(base, "manager", "stage").Info("stage info")
	For(base, "other").Info("other info")
	For(base, "managerial").Info("prefix must match whole segments")

	out := buf.String()
	for _, want := range []string{"composite debug", "stage info"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"stage debug", "other info", "prefix must match"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("unexpected %q in output:\n%s", unwanted, out)
		}
	}
}
