package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"trailmark.org/internal/audit"
	"trailmark.org/internal/auth"
)

const sessionCookie = "tm_session"

// withSession runs the session lifecycle once per request, before any
// permission check downstream: validate, refresh activity, rotate the
// identifier when due. Anonymous requests pass through untouched.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, rotated, err := a.gateway.Sessions().CheckAndRefresh(token)
		if err != nil {
			if errors.Is(err, auth.ErrSessionExpired) {
				a.gateway.ExpireSession(r.Context(), sess, originOf(r))
				clearSessionCookie(w)
				// Machine-readable signal so clients re-prompt instead of
				// treating expiry as an error.
				writeError(w, http.StatusUnauthorized, "session_expired", "session expired")
				return
			}
			clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		if rotated {
			setSessionCookie(w, sess.Token)
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithSession(r.Context(), sess)))
	})
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Session ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Session "))
	}
	return ""
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func originOf(r *http.Request) audit.Origin {
	return audit.Origin{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
		Method:    r.Method,
	}
}
