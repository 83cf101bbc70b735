// Package auth issues and verifies the HS256 bearer tokens presented by
// clients, and extracts them from incoming requests.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/atinyakov/GuardPine/internal/common"
)

const (
	// ScopeUser is the scope of tokens issued on password or WeChat login.
	ScopeUser = "user"

	// CookieName and QueryParam name the fallback token carriers.
	CookieName = "token"
	QueryParam = "token"

	bearerPrefix = "Bearer "
)

// Claims carries the subject and optional scope of a token next to the
// registered iat/exp/jti claims.
type Claims struct {
	ID    string `json:"id"`
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Scopes returns the space-separated scope as a list.
func (c *Claims) Scopes() []string {
	return strings.Fields(c.Scope)
}

// Issuer signs and verifies tokens with a process-wide secret.
type Issuer struct {
	secret []byte
	clock  clock.Clock
}

// NewIssuer returns an Issuer using secret as the HMAC key and clk as the time source.
func NewIssuer(secret []byte, clk clock.Clock) *Issuer {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Issuer{secret: secret, clock: clk}
}

// Issue returns a signed token for subject. A zero ttl issues a token that never expires.
func (i *Issuer) Issue(subject, scope string, ttl time.Duration) (string, error) {
	now := i.clock.Now()
	claims := Claims{
		ID:    subject,
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			ID:       uuid.NewString(),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token and returns its claims.
func (i *Issuer) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, common.ErrUnauthenticated
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", common.ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidSignature, err)
	default:
		return nil, fmt.Errorf("%w: %v", common.ErrMalformed, err)
	}

	if claims.ID == "" {
		return nil, fmt.Errorf("%w: token has no subject", common.ErrMalformed)
	}
	return claims, nil
}

// Authenticate extracts the token of r and verifies it.
func (i *Issuer) Authenticate(r *http.Request) (*Claims, error) {
	token, err := ExtractToken(r)
	if err != nil {
		return nil, err
	}
	return i.Verify(token)
}

// ExtractToken returns the raw token of r. The Authorization header wins over
// the token cookie, which wins over the token query parameter. The header
// must use the Bearer scheme; the other carriers may omit it.
func ExtractToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			return "", fmt.Errorf("%w: authorization header is not a bearer token", common.ErrMalformed)
		}
		return strings.TrimSpace(header[len(bearerPrefix):]), nil
	}
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return strings.TrimPrefix(cookie.Value, bearerPrefix), nil
	}
	if token := r.URL.Query().Get(QueryParam); token != "" {
		return strings.TrimPrefix(token, bearerPrefix), nil
	}
	return "", common.ErrUnauthenticated
}

// BearerValue formats token the way it is handed back to clients.
func BearerValue(token string) string {
	return bearerPrefix + token
}
