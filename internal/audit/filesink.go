package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const filePrefix = "audit-"

// FileSink mirrors the audit trail to daily-rotated plain-text files.
// An exclusive in-process lock per write keeps lines from interleaving
// under concurrent writers; files are opened append-only.
type FileSink struct {
	dir string

	mu  sync.Mutex
	f   *os.File
	day string
}

var _ Sink = (*FileSink)(nil)

// NewFileSink creates dir if needed and returns the sink.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("audit file dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Write(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := e.OccurredAt.UTC().Format("2006-01-02")
	if s.f == nil || day != s.day {
		if s.f != nil {
			_ = s.f.Close()
		}
		path := filepath.Join(s.dir, filePrefix+day+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return fmt.Errorf("open audit file: %w", err)
		}
		s.f = f
		s.day = day
	}

	_, err := fmt.Fprintln(s.f, formatLine(e))
	return err
}

// Close releases the current file handle.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// Cleanup deletes rotated files whose modification time predates the
// retention horizon and returns how many were removed. Independent from
// the structured sink's retention.
func (s *FileSink) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention must be positive")
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	var removed int
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, name)); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// formatLine renders a single human-readable audit line.
func formatLine(e *Entry) string {
	var b strings.Builder
	b.WriteString(e.OccurredAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, " [%s]", strings.ToUpper(string(e.Severity)))
	fmt.Fprintf(&b, " actor=%q", e.Actor.DisplayName())
	if e.Origin.IP != "" {
		fmt.Fprintf(&b, " ip=%s", e.Origin.IP)
	}
	if e.Origin.Method != "" || e.Origin.Path != "" {
		fmt.Fprintf(&b, " req=%q", strings.TrimSpace(e.Origin.Method+" "+e.Origin.Path))
	}
	fmt.Fprintf(&b, " action=%s", e.Action)
	if e.Description != "" {
		fmt.Fprintf(&b, " desc=%q", e.Description)
	}
	if len(e.Detail) > 0 {
		if data, err := json.Marshal(e.Detail); err == nil {
			fmt.Fprintf(&b, " detail=%s", data)
		}
	}
	return b.String()
}
