package credentials

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Machine readable text codes surfaced to API clients alongside the
// human message. Keep these stable, downstream services switch on them.
const (
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeTokenAlreadyUsed    = "TOKEN_ALREADY_USED"
	TextCodeTokenNotFound       = "TOKEN_NOT_FOUND"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeSessionRevoked      = "SESSION_REVOKED"
	TextCodeEmailTaken          = "EMAIL_TAKEN"
	TextCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	TextCodeMissingSecret       = "MISSING_SIGNING_SECRET"
	TextCodeUntrustedService    = "UNTRUSTED_SERVICE"
)

// ErrTokenExpired is returned when a credential is past its expiry
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed is returned for bad signatures, wrong purposes, and
// structurally invalid credentials alike so callers cannot tell them apart
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

// ErrTokenAlreadyUsed signals a single use token that was consumed before
var ErrTokenAlreadyUsed = errors.New("token has already been used", errors.CategoryConflict).
	WithCode(errors.CodeConflict).
	WithTextCode(TextCodeTokenAlreadyUsed)

// ErrTokenNotFound signals a token string with no matching stored record
var ErrTokenNotFound = errors.New("token not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound).
	WithTextCode(TextCodeTokenNotFound)

// ErrInvalidCredentials is the uniform login failure: unknown email and
// wrong password produce this same error so responses cannot leak which
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCredentials)

// ErrSessionRevoked is returned when a refresh credential verifies but no
// active session backs it, this is what makes revocation effective
var ErrSessionRevoked = errors.New("invalid or revoked refresh token", errors.CategoryAuthz).
	WithCode(errors.CodeForbidden).
	WithTextCode(TextCodeSessionRevoked)

// ErrEmailTaken is returned when registering an email the directory knows
var ErrEmailTaken = errors.New("user with this email already exists", errors.CategoryConflict).
	WithCode(errors.CodeConflict).
	WithTextCode(TextCodeEmailTaken)

// ErrEmailAlreadyVerified rejects a resend for a verified account
var ErrEmailAlreadyVerified = errors.New("email is already verified", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrNoEmptyString rejects hashing an empty password
var ErrNoEmptyString = errors.New("password can not be an empty string", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrWeakPassword is returned when a password fails the strength policy
var ErrWeakPassword = errors.New("password must be at least 8 characters long and contain a special character", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrUpstreamUnavailable is a retryable failure talking to a collaborator
var ErrUpstreamUnavailable = errors.New("upstream service unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeUpstreamUnavailable)

// ErrMissingSigningSecret is fatal at startup, operating with an unset
// purpose secret would mean signing with an empty key
var ErrMissingSigningSecret = errors.New("signing secret is not configured", errors.CategoryInternal).
	WithCode(errors.CodeInternal).
	WithTextCode(TextCodeMissingSecret)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// HTTPStatus maps a rich error to the response status code. Unknown or
// plain errors map to 500 so nothing internal leaks by accident.
func HTTPStatus(err error) int {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return 500
	}

	switch richErr.Category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return 400
	case errors.CategoryAuth:
		return 401
	case errors.CategoryAuthz:
		return 403
	case errors.CategoryNotFound:
		return 404
	case errors.CategoryConflict:
		return 409
	case errors.CategoryRateLimit:
		return 429
	case errors.CategoryOperation:
		return 503
	default:
		return 500
	}
}
