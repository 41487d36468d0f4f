package credentials

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenType identifies the flow a stored single use token belongs to
type TokenType = string

const (
	// TokenTypeEmailVerification backs the account verification flow
	TokenTypeEmailVerification TokenType = "email_verification"
	// TokenTypePasswordReset backs the password reset flow
	TokenTypePasswordReset TokenType = "password_reset"
)

// TokenTypeFor maps a signing purpose to its stored token type
func TokenTypeFor(purpose TokenPurpose) TokenType {
	switch purpose {
	case PurposeEmailVerification:
		return TokenTypeEmailVerification
	case PurposePasswordReset:
		return TokenTypePasswordReset
	}
	return ""
}

// PurposeToken is a stored single use credential. The signed string
// itself is persisted so consumption can be checked and enforced, a
// token that verifies cryptographically but has no row here is dead.
type PurposeToken struct {
	bun.BaseModel `bun:"table:auth_tokens,alias:tok"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	TokenType     TokenType  `bun:"token_type,notnull" json:"token_type,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"token,omitempty"`
	ExpiresAt     *time.Time `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	IsUsed        bool       `bun:"is_used,notnull,default:false" json:"is_used"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Expired reports whether the token is past its expiry at the given time
func (t *PurposeToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

// Session is a persisted refresh session. A refresh credential is only
// honored while an active, unexpired session row backs it.
type Session struct {
	bun.BaseModel    `bun:"table:sessions,alias:ses"`
	ID               uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID           uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	RefreshToken     string     `bun:"refresh_token,notnull,unique" json:"refresh_token,omitempty"`
	RefreshExpiresAt *time.Time `bun:"refresh_expires_at,notnull" json:"refresh_expires_at,omitempty"`
	DeviceInfo       string     `bun:"device_info" json:"device_info,omitempty"`
	IPAddress        string     `bun:"ip_address" json:"ip_address,omitempty"`
	IsActive         bool       `bun:"is_active,notnull,default:true" json:"is_active"`
	CreatedAt        *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Expired reports whether the session is past its refresh expiry
func (s *Session) Expired(now time.Time) bool {
	return s.RefreshExpiresAt != nil && !s.RefreshExpiresAt.After(now)
}
