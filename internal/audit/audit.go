package audit

import (
	"context"
	"time"
)

// Severity classifies an audit entry.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Actor identifies who performed an action. The zero value renders as
// anonymous.
type Actor struct {
	UserID  string
	Display string
}

// Anonymous is the actor recorded for unauthenticated requests.
var Anonymous = Actor{Display: "anonymous"}

// DisplayName returns the actor's display name, defaulting to anonymous.
func (a Actor) DisplayName() string {
	if a.Display == "" {
		return "anonymous"
	}
	return a.Display
}

// Origin captures request-level metadata attached to every entry.
type Origin struct {
	IP        string
	UserAgent string
	Path      string
	Method    string
}

// Entry is one immutable audit record.
type Entry struct {
	ID          string
	OccurredAt  time.Time
	Actor       Actor
	Origin      Origin
	Action      string
	Description string
	Detail      map[string]any
	Severity    Severity
}

// Filter selects stored entries for the security-review surface.
type Filter struct {
	ActorUserID string
	Action      string
	Severity    Severity
	OriginIP    string
	From        time.Time
	To          time.Time
	Limit       int
}

// Querier is the read side of the structured sink, consumed by the
// reporting handlers.
type Querier interface {
	Search(ctx context.Context, f Filter) ([]Entry, error)
}
