package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestGetBeforeInitDiscards(t *testing.T) {
	mu.Lock()
	saved := global
	global = nil
	mu.Unlock()
	defer func() {
		mu.Lock()
		global = saved
		mu.Unlock()
	}()

	l := Get()
	if l == nil {
		t.Fatal("expected a nop logger before Init")
	}
	l.Info(context.Background(), "dropped")
}

func TestNamedAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("init: %v", err)
	}
	Named("judge").Info(context.Background(), "note judged", Int("pitch", 60), String("state", "correct"))

	out := buf.String()
	for _, want := range []string{"component=judge", "pitch=60", "state=correct", `msg="note judged"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf))
	SetLevel(slog.LevelWarn)
	defer SetLevel(slog.LevelInfo)

	ctx := context.Background()
	l.Info(ctx, "quiet")
	l.Warn(ctx, "loud", Error(errors.New("boom")))
	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("info record passed warn level: %q", out)
	}
	if !strings.Contains(out, "error=boom") {
		t.Fatalf("missing warn record: %q", out)
	}
}

func TestSourceOption(t *testing.T) {
	var buf bytes.Buffer
	SetLevel(slog.LevelInfo)
	New(WithWriter(&buf), WithSource(), WithJSON()).Info(context.Background(), "here")
	if !strings.Contains(buf.String(), "logger_test.go") {
		t.Fatalf("expected caller location, got %q", buf.String())
	}
}

func TestSetLevelString(t *testing.T) {
	defer SetLevel(slog.LevelInfo)
	for _, lvl := range []string{"debug", "INFO", " warn ", "warning", "error", ""} {
		if err := SetLevelString(lvl); err != nil {
			t.Fatalf("level %q: %v", lvl, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
