package domain

import (
	"context"
	"time"
)

// Credential is whatever proof of identity a client presents at login.
type Credential struct {
	Username string `json:"username"`
	Secret   string `json:"secret,omitempty"`
}

// IdentityVerifier resolves a credential to a stable user identifier.
type IdentityVerifier interface {
	Verify(ctx context.Context, cred Credential) (string, error)
}

// SessionSigner issues and validates session tokens bound to an identity.
type SessionSigner interface {
	Issue(identity string) (token string, expiresAt time.Time, err error)
	Validate(token string) (identity string, err error)
}
