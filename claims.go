package credentials

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenPurpose tags a credential with the single flow it is valid for.
// A token signed for one purpose never verifies under another: each
// purpose has its own secret.
type TokenPurpose string

const (
	PurposeAccess            TokenPurpose = "access"
	PurposeRefresh           TokenPurpose = "refresh"
	PurposeEmailVerification TokenPurpose = "email_verification"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

// Purposes lists every purpose the signer must hold a secret for
func Purposes() []TokenPurpose {
	return []TokenPurpose{
		PurposeAccess,
		PurposeRefresh,
		PurposeEmailVerification,
		PurposePasswordReset,
	}
}

// TokenClaims is the signed payload carried by every credential
type TokenClaims struct {
	jwt.RegisteredClaims
	UID      string       `json:"uid,omitempty"`
	Email    string       `json:"email,omitempty"`
	UserRole string       `json:"role,omitempty"`
	Purpose  TokenPurpose `json:"purpose,omitempty"`
}

// Subject returns the subject claim
func (c *TokenClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID, falling back to the subject claim
func (c *TokenClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// UserUUID parses the user ID into a uuid
func (c *TokenClaims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID())
}

// Role returns the global role
func (c *TokenClaims) Role() string {
	return c.UserRole
}

// EmailAddress returns the email claim
func (c *TokenClaims) EmailAddress() string {
	return c.Email
}

// Expires returns the expiration time
func (c *TokenClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedTime returns the issued at time
func (c *TokenClaims) IssuedTime() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ensureTokenID backfills a jti so every issued credential is traceable
func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
