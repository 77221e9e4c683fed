// Package auth verifies the user identity token presented on a socket handshake.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pfcontrol/stripsync/internal/errs"
)

// Identity is the verified user behind a connection.
type Identity struct {
	UserID   string
	Username string
	Avatar   string
}

type identityClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Verifier checks HS256 identity tokens issued by the platform's auth service.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a verifier. An empty secret disables verification.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether tokens are verified.
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Verify parses token and returns its identity.
func (v *Verifier) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, fmt.Errorf("%w: token required", errs.ErrInvalidCredentials)
	}
	if !v.Enabled() {
		return Identity{}, errors.New("token verifier is not configured")
	}
	var claims identityClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", errs.ErrInvalidCredentials, err)
	}
	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", errs.ErrInvalidCredentials)
	}
	return Identity{UserID: id, Username: claims.Username, Avatar: claims.Avatar}, nil
}

// Sign issues a token for id; used by tooling and tests.
func (v *Verifier) Sign(id Identity, ttl time.Duration) (string, error) {
	now := v.now()
	claims := identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:   id.UserID,
		Username: id.Username,
		Avatar:   id.Avatar,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
