// Package auth issues session tokens and verifies login credentials.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
)

const issuer = "polling-backend"

// JWTSigner issues HS256 tokens carrying the identity as subject.
type JWTSigner struct {
	secret []byte
	maxAge time.Duration
	clock  clockwork.Clock
}

var _ domain.SessionSigner = (*JWTSigner)(nil)

func NewJWTSigner(secret string, maxAge time.Duration, clock clockwork.Clock) *JWTSigner {
	return &JWTSigner{secret: []byte(secret), maxAge: maxAge, clock: clock}
}

func (s *JWTSigner) Issue(identity string) (string, time.Time, error) {
	if identity == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty identity", domain.ErrInvalidSession)
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.maxAge)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   identity,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, expiresAt, nil
}

// Validate returns the identity of a well-formed, unexpired token signed with our secret.
// Every failure is reported as domain.ErrInvalidSession.
func (s *JWTSigner) Validate(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidSession, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidSession, errors.New("missing subject"))
	}
	return claims.Subject, nil
}
