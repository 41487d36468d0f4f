package credentials_test

import (
	"testing"

	"github.com/goliatone/go-credentials"
	"github.com/stretchr/testify/assert"
)

func TestIdentityFromDirectory(t *testing.T) {
	identity := credentials.IdentityFromDirectory(&credentials.DirectoryUser{
		UID:       "user-1",
		Name:      "peperone",
		EmailAddr: "pepe.rone@example.com",
		UserRole:  "admin",
	})

	assert.Equal(t, "user-1", identity.ID())
	assert.Equal(t, "peperone", identity.Username())
	assert.Equal(t, "pepe.rone@example.com", identity.Email())
	assert.Equal(t, "admin", identity.Role())
}

func TestIdentityFromDirectoryNilUser(t *testing.T) {
	identity := credentials.IdentityFromDirectory(nil)

	assert.Empty(t, identity.ID())
	assert.Empty(t, identity.Username())
	assert.Empty(t, identity.Email())
	assert.Empty(t, identity.Role())
}

func TestTokenTypeFor(t *testing.T) {
	assert.Equal(t, credentials.TokenTypeEmailVerification, credentials.TokenTypeFor(credentials.PurposeEmailVerification))
	assert.Equal(t, credentials.TokenTypePasswordReset, credentials.TokenTypeFor(credentials.PurposePasswordReset))

	// access and refresh credentials are stateless, nothing is stored
	assert.Empty(t, credentials.TokenTypeFor(credentials.PurposeAccess))
	assert.Empty(t, credentials.TokenTypeFor(credentials.PurposeRefresh))
}
