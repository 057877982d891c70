package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileSinkWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer sink.Close()

	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	entry := &Entry{
		ID:          "e1",
		OccurredAt:  at,
		Actor:       Actor{UserID: "u1", Display: "alice"},
		Origin:      Origin{IP: "10.0.0.1", Method: "POST", Path: "/v1/auth/login"},
		Action:      "auth.login",
		Description: "login succeeded",
		Detail:      map[string]any{"role": "editor"},
		Severity:    SeverityInfo,
	}
	if err := sink.Write(context.Background(), entry); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "audit-2026-03-01.log"))
	if err != nil {
		t.Fatalf("read daily file: %v", err)
	}
	line := strings.TrimSpace(string(data))
	for _, want := range []string{"[INFO]", `actor="alice"`, "ip=10.0.0.1", "action=auth.login", `desc="login succeeded"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
}

func TestFileSinkRotatesAcrossDays(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer sink.Close()

	day1 := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)
	for _, at := range []time.Time{day1, day2} {
		if err := sink.Write(context.Background(), &Entry{OccurredAt: at, Action: "auth.login"}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	for _, name := range []string{"audit-2026-03-01.log", "audit-2026-03-02.log"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestFileSinkAppendsWithinDay(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer sink.Close()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := sink.Write(context.Background(), &Entry{OccurredAt: at.Add(time.Duration(i) * time.Minute), Action: "auth.login"}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "audit-2026-03-01.log"))
	if err != nil {
		t.Fatalf("read daily file: %v", err)
	}
	if got := strings.Count(string(data), "\n"); got != 3 {
		t.Fatalf("line count = %d, want 3", got)
	}
}

func TestFileSinkCleanup(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer sink.Close()

	old := filepath.Join(dir, "audit-2025-01-01.log")
	if err := os.WriteFile(old, []byte("stale\n"), 0o640); err != nil {
		t.Fatalf("seed old file: %v", err)
	}
	stale := time.Now().AddDate(0, 0, -120)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("age old file: %v", err)
	}
	if err := sink.Write(context.Background(), &Entry{OccurredAt: time.Now().UTC(), Action: "auth.login"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	removed, err := sink.Cleanup(90)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("stale file should be gone")
	}
	if _, err := sink.Cleanup(0); err == nil {
		t.Fatal("non-positive retention must fail")
	}
}
