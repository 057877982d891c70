package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"trailmark.org/internal/audit"
	"trailmark.org/internal/obs"
)

const defaultAdminRole = "admin"

// Audit action tags emitted by the gateway.
const (
	actionLoginSuccess   = "auth.login"
	actionLoginFailure   = "auth.login.failed"
	actionLoginBlocked   = "auth.login.blocked"
	actionLoginLocked    = "auth.login.locked"
	actionLogout         = "auth.logout"
	actionSessionExpired = "auth.session.expired"
	actionAccessDenied   = "auth.access.denied"
)

// Gateway orchestrates credential verification, throttling, session
// lifecycle and the permission guards used by every other subsystem.
type Gateway struct {
	store     Store
	registry  *Registry
	throttle  *Throttle
	sessions  *SessionManager
	trail     *audit.Trail
	allowList []string
	adminRole string
	now       func() time.Time
}

// GatewayOption configures Gateway behavior.
type GatewayOption func(*Gateway)

// WithOriginAllowList restricts logins to the listed origin IPs. An
// empty list leaves logins unrestricted.
func WithOriginAllowList(origins []string) GatewayOption {
	return func(g *Gateway) {
		for _, o := range origins {
			o = strings.TrimSpace(o)
			if o != "" {
				g.allowList = append(g.allowList, o)
			}
		}
	}
}

// WithAdminRole overrides the reserved administrator role name.
func WithAdminRole(name string) GatewayOption {
	return func(g *Gateway) {
		name = strings.TrimSpace(strings.ToLower(name))
		if name != "" {
			g.adminRole = name
		}
	}
}

// WithGatewayClock overrides the time source (useful for tests).
func WithGatewayClock(fn func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if fn != nil {
			g.now = fn
		}
	}
}

// NewGateway wires the security core together.
func NewGateway(store Store, registry *Registry, throttle *Throttle, sessions *SessionManager, trail *audit.Trail, opts ...GatewayOption) (*Gateway, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if registry == nil || throttle == nil || sessions == nil {
		return nil, errors.New("registry, throttle and session manager are required")
	}
	g := &Gateway{
		store:     store,
		registry:  registry,
		throttle:  throttle,
		sessions:  sessions,
		trail:     trail,
		adminRole: defaultAdminRole,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Sessions exposes the lifecycle manager to the request middleware.
func (g *Gateway) Sessions() *SessionManager { return g.sessions }

// Throttle exposes the login throttle to maintenance handlers.
func (g *Gateway) Throttle() *Throttle { return g.throttle }

// Login validates credentials and creates an Active session. Checks run
// in a fixed order: origin allow-list, lockout, credential lookup,
// password verification. A locked origin is rejected before credential
// storage is touched.
func (g *Gateway) Login(ctx context.Context, username, password string, origin audit.Origin) (*Session, error) {
	username = strings.TrimSpace(username)

	if len(g.allowList) > 0 && !g.originAllowed(origin.IP) {
		obs.LoginAttempts.WithLabelValues("blocked").Inc()
		g.trail.Log(ctx, audit.Entry{
			Actor:       audit.Anonymous,
			Origin:      origin,
			Action:      actionLoginBlocked,
			Description: "login from disallowed origin",
			Detail:      map[string]any{"username": username},
			Severity:    audit.SeverityWarning,
		})
		return nil, ErrOriginNotAllowed
	}

	if g.throttle.IsLocked(ctx, origin.IP) {
		remaining := g.throttle.RemainingLockSeconds(ctx, origin.IP)
		obs.LoginAttempts.WithLabelValues("locked").Inc()
		g.trail.Log(ctx, audit.Entry{
			Actor:       audit.Anonymous,
			Origin:      origin,
			Action:      actionLoginLocked,
			Description: "login attempt while origin locked",
			Detail:      map[string]any{"username": username, "remaining_seconds": remaining},
			Severity:    audit.SeverityWarning,
		})
		return nil, &OriginLockedError{RemainingSeconds: remaining}
	}

	cred, err := g.store.Credentials().FindByUsername(ctx, username)
	if err != nil && !errors.Is(err, ErrNotFound) {
		// Store failure denies, never grants.
		obs.LoginAttempts.WithLabelValues("error").Inc()
		g.trail.Log(ctx, audit.Entry{
			Actor:       audit.Anonymous,
			Origin:      origin,
			Action:      actionLoginFailure,
			Description: "credential lookup failed",
			Detail:      map[string]any{"username": username},
			Severity:    audit.SeverityError,
		})
		return nil, &InvalidCredentialsError{RemainingAttempts: g.throttle.RemainingAttempts(ctx, origin.IP)}
	}
	if cred == nil || !cred.Active || VerifyPassword(cred.PasswordHash, password) != nil {
		return nil, g.failLogin(ctx, username, origin)
	}

	if err := g.throttle.RecordSuccessfulLogin(ctx, username, origin.IP); err != nil {
		obs.LogRequest(map[string]any{"level": "error", "msg": "record successful login", "error": err.Error()})
	}

	role, err := g.store.Roles().Find(ctx, cred.RoleID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, &InvalidCredentialsError{RemainingAttempts: g.throttle.MaxAttempts()}
		}
		role = &Role{ID: cred.RoleID}
	}
	perms, err := g.registry.Resolve(ctx, cred.RoleID)
	if err != nil {
		return nil, &InvalidCredentialsError{RemainingAttempts: g.throttle.MaxAttempts()}
	}

	sess := g.sessions.Create(cred, role, perms, origin.IP)

	if err := g.store.Credentials().TouchLastLogin(ctx, cred.ID, g.now()); err != nil {
		obs.LogRequest(map[string]any{"level": "error", "msg": "touch last login", "error": err.Error()})
	}

	obs.LoginAttempts.WithLabelValues("success").Inc()
	g.trail.Log(ctx, audit.Entry{
		Actor:       audit.Actor{UserID: cred.ID, Display: cred.Username},
		Origin:      origin,
		Action:      actionLoginSuccess,
		Description: "login succeeded",
		Detail:      map[string]any{"role": role.Name},
		Severity:    audit.SeverityInfo,
	})
	return sess, nil
}

func (g *Gateway) failLogin(ctx context.Context, username string, origin audit.Origin) error {
	locked, err := g.throttle.RecordFailedAttempt(ctx, username, origin.IP)
	if err != nil {
		obs.LogRequest(map[string]any{"level": "error", "msg": "record failed attempt", "error": err.Error()})
	}
	remaining := g.throttle.RemainingAttempts(ctx, origin.IP)
	obs.LoginAttempts.WithLabelValues("invalid").Inc()
	g.trail.Log(ctx, audit.Entry{
		Actor:       audit.Anonymous,
		Origin:      origin,
		Action:      actionLoginFailure,
		Description: "invalid credentials",
		Detail: map[string]any{
			"username":           username,
			"remaining_attempts": remaining,
			"caused_lockout":     locked,
		},
		Severity: audit.SeverityWarning,
	})
	return &InvalidCredentialsError{RemainingAttempts: remaining, Locked: locked}
}

// ExpireSession records the audit entry for an idle-expired session.
// The middleware calls it when CheckAndRefresh reports ErrSessionExpired.
func (g *Gateway) ExpireSession(ctx context.Context, sess *Session, origin audit.Origin) {
	if sess == nil {
		return
	}
	now := g.now()
	g.trail.Log(ctx, audit.Entry{
		Actor:       audit.Actor{UserID: sess.UserID, Display: sess.Username},
		Origin:      origin,
		Action:      actionSessionExpired,
		Description: "session expired after inactivity",
		Detail: map[string]any{
			"inactive_seconds": int(now.Sub(sess.LastActivity).Seconds()),
			"session_seconds":  int(now.Sub(sess.CreatedAt).Seconds()),
		},
		Severity: audit.SeverityInfo,
	})
}

// Logout transitions the session to Terminated and audits its duration.
func (g *Gateway) Logout(ctx context.Context, sess *Session, origin audit.Origin) {
	if sess == nil {
		return
	}
	g.sessions.Terminate(sess)
	g.trail.Log(ctx, audit.Entry{
		Actor:       audit.Actor{UserID: sess.UserID, Display: sess.Username},
		Origin:      origin,
		Action:      actionLogout,
		Description: "logout",
		Detail:      map[string]any{"session_seconds": int(g.now().Sub(sess.CreatedAt).Seconds())},
		Severity:    audit.SeverityInfo,
	})
}

// RequirePermission fails closed: an unauthenticated caller is denied
// before any permission evaluation happens.
func (g *Gateway) RequirePermission(ctx context.Context, sess *Session, perm string) error {
	if sess == nil {
		obs.PermissionDenials.Inc()
		return ErrNotAuthenticated
	}
	set, err := g.cachedPermissions(ctx, sess)
	if err != nil || !set.Has(perm) {
		g.denyPermission(ctx, sess, perm)
		return &ForbiddenError{Permission: perm}
	}
	return nil
}

// RequireAny grants when any listed permission is held; first match wins.
func (g *Gateway) RequireAny(ctx context.Context, sess *Session, perms ...string) error {
	if sess == nil {
		obs.PermissionDenials.Inc()
		return ErrNotAuthenticated
	}
	set, err := g.cachedPermissions(ctx, sess)
	if err == nil && set.HasAny(perms...) {
		return nil
	}
	g.denyPermission(ctx, sess, strings.Join(perms, "|"))
	return &ForbiddenError{Permission: strings.Join(perms, "|")}
}

// RequireAll grants only when every listed permission is held; the first
// miss fails.
func (g *Gateway) RequireAll(ctx context.Context, sess *Session, perms ...string) error {
	if sess == nil {
		obs.PermissionDenials.Inc()
		return ErrNotAuthenticated
	}
	set, err := g.cachedPermissions(ctx, sess)
	if err == nil && set.HasAll(perms...) {
		return nil
	}
	missing := strings.Join(perms, "&")
	if err == nil {
		for _, p := range perms {
			if !set.Has(p) {
				missing = p
				break
			}
		}
	}
	g.denyPermission(ctx, sess, missing)
	return &ForbiddenError{Permission: missing}
}

// IsAdmin checks the session's role against the reserved admin role name.
func (g *Gateway) IsAdmin(sess *Session) bool {
	if sess == nil {
		return false
	}
	return strings.EqualFold(sess.RoleName, g.adminRole)
}

// RequireAdmin composes the login requirement with the admin role check.
func (g *Gateway) RequireAdmin(ctx context.Context, sess *Session) error {
	if sess == nil {
		obs.PermissionDenials.Inc()
		return ErrNotAuthenticated
	}
	if !g.IsAdmin(sess) {
		g.denyPermission(ctx, sess, "role:"+g.adminRole)
		return &ForbiddenError{Permission: "role:" + g.adminRole}
	}
	return nil
}

// InvalidatePermissions drops the session's cached permission set so the
// next check re-resolves from the store. Call it after a mid-session
// role edit instead of serving the stale snapshot.
func (g *Gateway) InvalidatePermissions(sess *Session) {
	if sess == nil {
		return
	}
	sess.Permissions = nil
	g.sessions.store.Put(sess)
}

// cachedPermissions serves the set cached at session creation and
// re-resolves only after explicit invalidation.
func (g *Gateway) cachedPermissions(ctx context.Context, sess *Session) (PermissionSet, error) {
	if sess.Permissions != nil {
		return sess.Permissions, nil
	}
	set, err := g.registry.Resolve(ctx, sess.RoleID)
	if err != nil {
		return nil, err
	}
	sess.Permissions = set
	g.sessions.store.Put(sess)
	return set, nil
}

func (g *Gateway) denyPermission(ctx context.Context, sess *Session, perm string) {
	obs.PermissionDenials.Inc()
	g.trail.Log(ctx, audit.Entry{
		Actor:       audit.Actor{UserID: sess.UserID, Display: sess.Username},
		Origin:      audit.Origin{IP: sess.OriginIP},
		Action:      actionAccessDenied,
		Description: "permission denied",
		Detail:      map[string]any{"permission": perm},
		Severity:    audit.SeverityWarning,
	})
}

func (g *Gateway) originAllowed(ip string) bool {
	for _, allowed := range g.allowList {
		if allowed == ip {
			return true
		}
	}
	return false
}
