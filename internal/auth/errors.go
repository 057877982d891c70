package auth

import (
	"errors"
	"fmt"
)

// The whole taxonomy is made of expected, user-facing outcomes. Callers
// are expected to branch on every variant with errors.Is / errors.As.
var (
	ErrNotFound         = errors.New("auth: not found")
	ErrConflict         = errors.New("auth: resource conflict")
	ErrInvalidInput     = errors.New("auth: invalid input")
	ErrNotAuthenticated = errors.New("auth: not authenticated")
	ErrSessionExpired   = errors.New("auth: session expired")
	ErrOriginNotAllowed = errors.New("auth: origin not allowed")
)

// OriginLockedError is returned while an origin is inside its lockout
// window. Credential storage is never consulted on this path.
type OriginLockedError struct {
	RemainingSeconds int
}

func (e *OriginLockedError) Error() string {
	return fmt.Sprintf("auth: origin locked for %ds", e.RemainingSeconds)
}

// InvalidCredentialsError covers both unknown usernames and password
// mismatches so the two are indistinguishable to the caller. Locked is
// true when this very attempt tripped the lockout threshold.
type InvalidCredentialsError struct {
	RemainingAttempts int
	Locked            bool
}

func (e *InvalidCredentialsError) Error() string {
	if e.Locked {
		return "auth: invalid credentials, origin now locked"
	}
	return fmt.Sprintf("auth: invalid credentials, %d attempts remaining", e.RemainingAttempts)
}

// ForbiddenError is a failed-closed permission check.
type ForbiddenError struct {
	Permission string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("auth: missing permission %s", e.Permission)
}
