package credentials_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-credentials"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenClaimsAccessors(t *testing.T) {
	userID := uuid.NewString()
	now := time.Now()

	claims := &credentials.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UID:      userID,
		Email:    "pepe.rone@example.com",
		UserRole: "user",
		Purpose:  credentials.PurposeAccess,
	}

	assert.Equal(t, userID, claims.Subject())
	assert.Equal(t, userID, claims.UserID())
	assert.Equal(t, "pepe.rone@example.com", claims.EmailAddress())
	assert.Equal(t, "user", claims.Role())
	assert.WithinDuration(t, now.Add(time.Hour), claims.Expires(), time.Second)
	assert.WithinDuration(t, now, claims.IssuedTime(), time.Second)

	parsed, err := claims.UserUUID()
	require.NoError(t, err)
	assert.Equal(t, userID, parsed.String())
}

func TestTokenClaimsFallbacks(t *testing.T) {
	t.Run("user id falls back to subject", func(t *testing.T) {
		claims := &credentials.TokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "subject-id"},
		}
		assert.Equal(t, "subject-id", claims.UserID())
	})

	t.Run("zero times for missing claims", func(t *testing.T) {
		claims := &credentials.TokenClaims{}
		assert.True(t, claims.Expires().IsZero())
		assert.True(t, claims.IssuedTime().IsZero())
	})

	t.Run("user uuid fails for a non uuid subject", func(t *testing.T) {
		claims := &credentials.TokenClaims{UID: "not-a-uuid"}
		_, err := claims.UserUUID()
		assert.Error(t, err)
	})
}
