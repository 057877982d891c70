package auth

import "context"

type sessionContextKey struct{}

// ContextWithSession attaches the active session to the request context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	if sess == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session placed by the request
// middleware. The second return is false for anonymous requests.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	sess, ok := ctx.Value(sessionContextKey{}).(*Session)
	if !ok || sess == nil {
		return nil, false
	}
	return sess, true
}
