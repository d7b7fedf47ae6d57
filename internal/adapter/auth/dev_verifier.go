package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_-]{3,32}$`)

// DevVerifier trusts any well-formed username. It exists for local development and tests;
// production deployments plug a real verifier in behind domain.IdentityVerifier.
type DevVerifier struct{}

var _ domain.IdentityVerifier = DevVerifier{}

// Verify returns the lowercased username as the identity.
func (DevVerifier) Verify(_ context.Context, cred domain.Credential) (string, error) {
	username := strings.ToLower(strings.TrimSpace(cred.Username))
	if !usernamePattern.MatchString(username) {
		return "", fmt.Errorf("%w: username must be 3-32 characters of a-z, 0-9, _ or -", domain.ErrInvalidIdentity)
	}
	return username, nil
}
