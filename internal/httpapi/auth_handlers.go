package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"trailmark.org/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Username         string   `json:"username"`
	Role             string   `json:"role"`
	Permissions      []string `json:"permissions"`
	RemainingSeconds int      `json:"remaining_seconds"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "username and password are required")
		return
	}

	sess, err := a.gateway.Login(r.Context(), req.Username, req.Password, originOf(r))
	if err != nil {
		status, body := loginErrorResponse(err)
		writeJSON(w, status, body)
		return
	}

	setSessionCookie(w, sess.Token)
	writeJSON(w, http.StatusOK, a.sessionBody(sess))
}

// loginErrorResponse maps the auth taxonomy onto machine-readable codes.
// Every variant is handled explicitly; nothing falls through to a 500.
func loginErrorResponse(err error) (int, map[string]any) {
	var (
		locked  *auth.OriginLockedError
		invalid *auth.InvalidCredentialsError
	)
	switch {
	case errors.Is(err, auth.ErrOriginNotAllowed):
		return http.StatusForbidden, map[string]any{
			"error": "origin not allowed", "code": "origin_not_allowed",
		}
	case errors.As(err, &locked):
		return http.StatusTooManyRequests, map[string]any{
			"error": "origin locked", "code": "origin_locked",
			"remaining_seconds": locked.RemainingSeconds,
		}
	case errors.As(err, &invalid):
		return http.StatusUnauthorized, map[string]any{
			"error": "invalid credentials", "code": "invalid_credentials",
			"remaining_attempts": invalid.RemainingAttempts,
			"locked":             invalid.Locked,
		}
	default:
		return http.StatusUnauthorized, map[string]any{
			"error": "invalid credentials", "code": "invalid_credentials",
		}
	}
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not_authenticated", "not authenticated")
		return
	}
	a.gateway.Logout(r.Context(), sess, originOf(r))
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not_authenticated", "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, a.sessionBody(sess))
}

func (a *API) sessionBody(sess *auth.Session) sessionResponse {
	perms := make([]string, 0, len(sess.Permissions))
	for k := range sess.Permissions {
		perms = append(perms, k)
	}
	return sessionResponse{
		Username:         sess.CurrentUsername(),
		Role:             sess.CurrentRoleDisplayName(),
		Permissions:      perms,
		RemainingSeconds: a.gateway.Sessions().RemainingSeconds(sess),
	}
}

const serviceTokenTTL = 15 * time.Minute

// handleServiceToken issues a short-lived export token to a logged-in
// caller holding audit.view.
func (a *API) handleServiceToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if a.tokens == nil {
		writeError(w, http.StatusNotImplemented, "tokens_disabled", "service tokens are not configured")
		return
	}
	sess, _ := auth.SessionFromContext(r.Context())
	if err := a.gateway.RequirePermission(r.Context(), sess, auth.PermAuditView); err != nil {
		writeForbidden(w, err)
		return
	}
	token, exp, err := a.tokens.Issue(sess, serviceTokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_failed", "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": exp.Format(time.RFC3339),
	})
}

// writeForbidden maps permission failures; unauthenticated and denied
// are distinct outcomes.
func writeForbidden(w http.ResponseWriter, err error) {
	var forbidden *auth.ForbiddenError
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "not_authenticated", "not authenticated")
	case errors.As(err, &forbidden):
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error": "forbidden", "code": "forbidden", "permission": forbidden.Permission,
		})
	default:
		writeError(w, http.StatusForbidden, "forbidden", "forbidden")
	}
}
