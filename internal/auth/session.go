package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"trailmark.org/internal/obs"
)

const (
	defaultInactivityTimeout = 30 * time.Minute
	// Rotation bounds how long a leaked identifier stays usable.
	defaultRotationInterval = 30 * time.Minute
)

// SessionManager governs session creation, inactivity timeout, periodic
// identifier rotation and explicit termination.
type SessionManager struct {
	store             SessionStore
	inactivityTimeout time.Duration
	rotationInterval  time.Duration
	now               func() time.Time
}

// SessionOption configures SessionManager behavior.
type SessionOption func(*SessionManager)

// WithInactivityTimeout overrides the idle expiry duration.
func WithInactivityTimeout(d time.Duration) SessionOption {
	return func(m *SessionManager) {
		if d > 0 {
			m.inactivityTimeout = d
		}
	}
}

// WithRotationInterval overrides the identifier rotation interval.
func WithRotationInterval(d time.Duration) SessionOption {
	return func(m *SessionManager) {
		if d > 0 {
			m.rotationInterval = d
		}
	}
}

// WithSessionClock overrides the time source (useful for tests).
func WithSessionClock(fn func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewSessionManager constructs a SessionManager over the session store.
func NewSessionManager(store SessionStore, opts ...SessionOption) (*SessionManager, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	m := &SessionManager{
		store:             store,
		inactivityTimeout: defaultInactivityTimeout,
		rotationInterval:  defaultRotationInterval,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Create transitions NoSession -> Active for a verified credential.
func (m *SessionManager) Create(cred *Credential, role *Role, perms PermissionSet, originIP string) *Session {
	now := m.now()
	sess := &Session{
		Token:        uuid.NewString(),
		UserID:       cred.ID,
		Username:     cred.Username,
		RoleID:       role.ID,
		RoleName:     role.DisplayName,
		Permissions:  perms,
		CreatedAt:    now,
		LastActivity: now,
		LastRotation: now,
		OriginIP:     originIP,
	}
	m.store.Put(sess)
	obs.SessionsActive.Set(float64(m.store.Len()))
	return sess
}

// CheckAndRefresh validates the session behind token and refreshes its
// activity clock. Past the inactivity timeout the session is discarded
// and ErrSessionExpired is returned so callers can distinguish expiry
// from a generic authentication failure. rotated reports whether the
// identifier changed; the returned session carries the current token.
func (m *SessionManager) CheckAndRefresh(token string) (sess *Session, rotated bool, err error) {
	cur, ok := m.store.Get(token)
	if !ok {
		return nil, false, ErrNotAuthenticated
	}
	now := m.now()
	if now.Sub(cur.LastActivity) > m.inactivityTimeout {
		m.store.Delete(cur.Token)
		obs.SessionsActive.Set(float64(m.store.Len()))
		return cur, false, ErrSessionExpired
	}
	cur.LastActivity = now
	if now.Sub(cur.LastRotation) > m.rotationInterval {
		old := cur.Token
		cur.Token = uuid.NewString()
		cur.LastRotation = now
		m.store.Replace(old, cur)
		return cur, true, nil
	}
	m.store.Put(cur)
	return cur, false, nil
}

// Extend refreshes the activity clock without rotation. No-op for an
// unknown token.
func (m *SessionManager) Extend(token string) {
	if sess, ok := m.store.Get(token); ok {
		sess.LastActivity = m.now()
		m.store.Put(sess)
	}
}

// RemainingSeconds returns the time left before idle expiry, floored at 0.
func (m *SessionManager) RemainingSeconds(sess *Session) int {
	if sess == nil {
		return 0
	}
	rem := m.inactivityTimeout - m.now().Sub(sess.LastActivity)
	if rem <= 0 {
		return 0
	}
	return int((rem + time.Second - 1) / time.Second)
}

// Terminate transitions Active -> Terminated on explicit logout.
func (m *SessionManager) Terminate(sess *Session) {
	if sess == nil {
		return
	}
	m.store.Delete(sess.Token)
	obs.SessionsActive.Set(float64(m.store.Len()))
}

// InactivityTimeout returns the configured idle expiry duration.
func (m *SessionManager) InactivityTimeout() time.Duration { return m.inactivityTimeout }

// SweepExpired drops sessions idle past the timeout. Externally
// triggered alongside the other retention sweeps.
func (m *SessionManager) SweepExpired() int {
	n := m.store.Sweep(m.now().Add(-m.inactivityTimeout))
	obs.SessionsActive.Set(float64(m.store.Len()))
	return n
}
