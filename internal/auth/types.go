package auth

import "time"

// Credential is a login identity backed by the relational store. It is
// mutated here only on successful login (last-login touch); account
// management lives elsewhere.
type Credential struct {
	ID           string
	Username     string
	PasswordHash string
	RoleID       string
	Active       bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role groups permissions. System roles cannot be structurally edited by
// the management UI; that rule is enforced outside this core.
type Role struct {
	ID          string
	Name        string
	DisplayName string
	System      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is a fine-grained capability with a namespaced key such as
// "marker.edit".
type Permission struct {
	ID          string
	Key         string
	Category    string
	Description string
	CreatedAt   time.Time
}

// RolePermission links roles to permissions.
type RolePermission struct {
	RoleID       string
	PermissionID string
}

// LoginAttempt is one row of the append-only attempt log. A lockout is a
// derived property of the log (max locked_until in the future), not a
// separate entity.
type LoginAttempt struct {
	ID          string
	Origin      string
	Username    string
	OccurredAt  time.Time
	Success     bool
	LockedUntil *time.Time
}

// Session is the ephemeral per-client authentication state, keyed by an
// opaque token and owned by the requesting client's connection context.
type Session struct {
	Token        string
	UserID       string
	Username     string
	RoleID       string
	RoleName     string
	Permissions  PermissionSet
	CreatedAt    time.Time
	LastActivity time.Time
	LastRotation time.Time
	OriginIP     string
}

// UserID-style accessors are plain field reads; the typed helpers below
// exist for callers holding a possibly-nil session.

// CurrentUserID returns the authenticated user id, or "" when s is nil.
func (s *Session) CurrentUserID() string {
	if s == nil {
		return ""
	}
	return s.UserID
}

// CurrentUsername returns the authenticated username, or "" when s is nil.
func (s *Session) CurrentUsername() string {
	if s == nil {
		return ""
	}
	return s.Username
}

// CurrentRoleID returns the session's role id, or "" when s is nil.
func (s *Session) CurrentRoleID() string {
	if s == nil {
		return ""
	}
	return s.RoleID
}

// CurrentRoleDisplayName returns the role snapshot taken at login.
func (s *Session) CurrentRoleDisplayName() string {
	if s == nil {
		return ""
	}
	return s.RoleName
}

// CurrentPermissions returns the cached permission set, possibly nil when
// the cache has been invalidated and not yet re-resolved.
func (s *Session) CurrentPermissions() PermissionSet {
	if s == nil {
		return nil
	}
	return s.Permissions
}
