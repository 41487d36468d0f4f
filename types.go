package credentials

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an identity
type Identity interface {
	ID() string
	Username() string
	Email() string
	Role() string
}

// Config holds the options every component reads at construction time
type Config interface {
	GetIssuer() string
	GetSigningSecret(purpose TokenPurpose) string
	GetTokenTTL(purpose TokenPurpose) time.Duration
	GetServiceKey() string
	GetServiceName() string
	GetAllowedServices() []string
	GetCookieName() string
	GetCookieSecure() bool
}

// TokenSigner issues and verifies purpose bound credentials
type TokenSigner interface {
	Sign(purpose TokenPurpose, identity Identity, opts ...SignOption) (string, error)
	Verify(purpose TokenPurpose, token string, opts ...SignOption) (*TokenClaims, error)
	TTL(purpose TokenPurpose) time.Duration
}

// Authenticator holds methods to deal with session lifecycle
type Authenticator interface {
	Login(ctx context.Context, email, password string, device DeviceInfo) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	ValidateAccess(token string) (*TokenClaims, error)
}

// Headers carrying the shared service credential on internal calls
const (
	HeaderServiceKey  = "X-Service-Key"
	HeaderServiceName = "X-Service-Name"
)

// DeviceInfo captures the client fingerprint persisted with a session
type DeviceInfo struct {
	UserAgent string
	IP        string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] CREDENTIALS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
