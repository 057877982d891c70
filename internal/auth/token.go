package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "trailmark"

// ErrInvalidToken indicates a service token failed validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// ServiceTokenClaims are carried by short-lived HS256 tokens issued to
// non-browser reporting clients (audit export, scripted pulls). The
// permission snapshot is taken at issuance time.
type ServiceTokenClaims struct {
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies service tokens. Sessions remain the
// primary authentication surface; tokens only cover the reporting API.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService requires a non-empty signing secret.
func NewTokenService(secret string) (*TokenService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("token secret is not configured")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token carrying the session's permission snapshot.
func (t *TokenService) Issue(sess *Session, ttl time.Duration) (string, time.Time, error) {
	if sess == nil {
		return "", time.Time{}, ErrNotAuthenticated
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("ttl must be greater than zero")
	}
	now := t.now().UTC()
	exp := now.Add(ttl)
	perms := make([]string, 0, len(sess.Permissions))
	for k := range sess.Permissions {
		perms = append(perms, k)
	}
	claims := ServiceTokenClaims{
		Permissions: perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify validates signature, issuer and expiry.
func (t *TokenService) Verify(token string) (*ServiceTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &ServiceTokenClaims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*ServiceTokenClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
