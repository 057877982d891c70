package auth

import (
	"context"
	"time"
)

// Store describes the persistence operations required by the security
// core. internal/store/pg provides the PostgreSQL implementation.
type Store interface {
	Credentials() CredentialStore
	Roles() RoleStore
	Permissions() PermissionStore
	Attempts() AttemptStore
}

// CredentialStore reads login identities.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*Credential, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// RoleStore reads roles.
type RoleStore interface {
	Find(ctx context.Context, id string) (*Role, error)
}

// PermissionStore manages the permission catalog and role assignments.
type PermissionStore interface {
	Ensure(ctx context.Context, perms []Permission) error
	List(ctx context.Context) ([]Permission, error)
	SetForRole(ctx context.Context, roleID string, keys []string) error
	ForRole(ctx context.Context, roleID string) ([]Permission, error)
}

// AttemptStore is the append-only login attempt log backing the throttle.
// All writes are append-only or delete-only so retention sweeps may run
// concurrently with live traffic.
type AttemptStore interface {
	// AppendFailure records a failed attempt and returns the number of
	// failures for origin within the trailing window, including this one,
	// in a single store round trip.
	AppendFailure(ctx context.Context, username, origin string, at, windowStart time.Time) (int, error)
	AppendSuccess(ctx context.Context, username, origin string, at time.Time) error
	// SetLock extends the origin's lock to until. The update is conditional
	// in the store so an already-later lock is never shortened.
	SetLock(ctx context.Context, origin string, until time.Time) error
	// LatestLockExpiry returns the zero time when the origin was never locked.
	LatestLockExpiry(ctx context.Context, origin string) (time.Time, error)
	CountFailuresSince(ctx context.Context, origin string, since time.Time) (int, error)
	ClearFailures(ctx context.Context, origin string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionStore keeps live sessions keyed by their opaque token.
type SessionStore interface {
	Put(sess *Session)
	Get(token string) (*Session, bool)
	Delete(token string)
	// Replace atomically installs sess under its (new) token and removes
	// the old token, for identifier rotation.
	Replace(oldToken string, sess *Session)
	Len() int
	// Sweep drops sessions whose last activity predates cutoff and
	// returns how many were removed.
	Sweep(cutoff time.Time) int
}
