package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memorySink struct {
	mu      sync.Mutex
	name    string
	err     error
	entries []Entry
}

func (s *memorySink) Name() string {
	if s.name == "" {
		return "memory"
	}
	return s.name
}

func (s *memorySink) Write(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, *e)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func TestTrailFansOutToAllSinks(t *testing.T) {
	a := &memorySink{name: "a"}
	b := &memorySink{name: "b"}
	trail := NewTrail(true, []Sink{a, b})

	trail.Log(context.Background(), Entry{Action: "auth.login", Actor: Actor{UserID: "u1", Display: "alice"}})

	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("sink counts = %d/%d, want 1/1", a.count(), b.count())
	}
}

func TestTrailFillsDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sink := &memorySink{}
	trail := NewTrail(true, []Sink{sink}, WithClock(func() time.Time { return now }))

	trail.Log(context.Background(), Entry{Action: "auth.login"})

	got := sink.entries[0]
	if got.ID == "" {
		t.Fatal("entry ID not assigned")
	}
	if !got.OccurredAt.Equal(now) {
		t.Fatalf("OccurredAt = %v, want %v", got.OccurredAt, now)
	}
	if got.Severity != SeverityInfo {
		t.Fatalf("Severity = %q, want %q", got.Severity, SeverityInfo)
	}
}

func TestTrailIsolatesSinkFailures(t *testing.T) {
	failing := &memorySink{name: "down", err: errors.New("sink down")}
	healthy := &memorySink{name: "up"}
	trail := NewTrail(true, []Sink{failing, healthy})

	// A failing sink must not stop delivery to the others, and Log
	// must not panic or surface the error to the caller.
	trail.Log(context.Background(), Entry{Action: "auth.login.failed"})

	if healthy.count() != 1 {
		t.Fatalf("healthy sink got %d entries, want 1", healthy.count())
	}
}

func TestTrailDisabledIsNoOp(t *testing.T) {
	sink := &memorySink{}
	trail := NewTrail(false, []Sink{sink})
	trail.Log(context.Background(), Entry{Action: "auth.login"})
	if sink.count() != 0 {
		t.Fatalf("disabled trail wrote %d entries", sink.count())
	}

	var nilTrail *Trail
	nilTrail.Log(context.Background(), Entry{Action: "auth.login"})
}
