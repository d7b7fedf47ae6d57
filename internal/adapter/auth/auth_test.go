package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTSigner_RoundTrip(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	signer := NewJWTSigner(testSecret, time.Hour, clock)

	token, expiresAt, err := signer.Issue("alice")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour), expiresAt)

	identity, err := signer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity)
}

func TestJWTSigner_Expired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	signer := NewJWTSigner(testSecret, time.Hour, clock)
	token, _, err := signer.Issue("alice")
	require.NoError(t, err)

	clock.Advance(time.Hour + time.Second)

	_, err = signer.Validate(token)
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTSigner_WrongSecret(t *testing.T) {
	clock := clockwork.NewFakeClock()
	token, _, err := NewJWTSigner(testSecret, time.Hour, clock).Issue("alice")
	require.NoError(t, err)

	_, err = NewJWTSigner("another-secret-another-secret-xx", time.Hour, clock).Validate(token)
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
}

func TestJWTSigner_RejectsOtherAlgorithmsAndGarbage(t *testing.T) {
	clock := clockwork.NewFakeClock()
	signer := NewJWTSigner(testSecret, time.Hour, clock)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"none algorithm", unsigned},
		{"garbage", "not.a.token"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := signer.Validate(tt.token)
			assert.ErrorIs(t, err, domain.ErrInvalidSession)
		})
	}
}

func TestJWTSigner_MissingExpiryOrSubject(t *testing.T) {
	clock := clockwork.NewFakeClock()
	signer := NewJWTSigner(testSecret, time.Hour, clock)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  issuer,
		Subject: "alice",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = signer.Validate(noExpiry)
	assert.ErrorIs(t, err, domain.ErrInvalidSession)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = signer.Validate(noSubject)
	assert.ErrorIs(t, err, domain.ErrInvalidSession)

	_, _, err = signer.Issue("")
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
}

func TestDevVerifier(t *testing.T) {
	tests := []struct {
		username string
		want     string
		wantErr  bool
	}{
		{"alice", "alice", false},
		{"  Bob_99 ", "bob_99", false},
		{"ab", "", true},
		{"has space", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			got, err := DevVerifier{}.Verify(context.Background(), domain.Credential{Username: tt.username})
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidIdentity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
