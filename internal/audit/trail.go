package audit

import (
	"context"
	"time"

	"trailmark.org/internal/ids"
	"trailmark.org/internal/obs"
)

// Sink is one audit destination. Implementations must tolerate
// concurrent writers.
type Sink interface {
	Name() string
	Write(ctx context.Context, e *Entry) error
}

// Trail fans every entry out to all sinks. Each sink failure is isolated
// from the others, counted, reported to the diagnostic logger and then
// swallowed: losing an audit line must never take down the operation
// being audited.
type Trail struct {
	sinks   []Sink
	enabled bool
	now     func() time.Time
}

// TrailOption configures Trail behavior.
type TrailOption func(*Trail)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TrailOption {
	return func(t *Trail) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTrail constructs a Trail. With enabled false, Log is a no-op.
func NewTrail(enabled bool, sinks []Sink, opts ...TrailOption) *Trail {
	t := &Trail{sinks: sinks, enabled: enabled, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Log records e to every sink. It never fails and never blocks the
// caller's primary operation on a sink error.
func (t *Trail) Log(ctx context.Context, e Entry) {
	if t == nil || !t.enabled {
		return
	}
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = t.now().UTC()
	}
	if e.Severity == "" {
		e.Severity = SeverityInfo
	}
	for _, sink := range t.sinks {
		if err := sink.Write(ctx, &e); err != nil {
			obs.AuditSinkFailures.WithLabelValues(sink.Name()).Inc()
			obs.LogRequest(map[string]any{
				"ts":    t.now().UTC().Format(time.RFC3339Nano),
				"level": "error",
				"msg":   "audit sink write failed",
				"sink":  sink.Name(),
				"error": err.Error(),
			})
		}
	}
}
