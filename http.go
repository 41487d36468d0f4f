package credentials

import (
	"context"
	"time"

	"github.com/goliatone/go-credentials/middleware/jwtware"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// APIResponse is the envelope every endpoint answers with
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func successResponse(message string, data any) APIResponse {
	return APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	}
}

// accessValidator adapts the signer to the middleware's validator
// interface
type accessValidator struct {
	signer TokenSigner
}

func (v accessValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	return v.signer.Verify(PurposeAccess, tokenString)
}

// ProtectedRoute guards a route with access token validation. Claims
// land in the router context under "claims" and in the standard
// context for downstream calls.
func ProtectedRoute(signer TokenSigner, errorHandler router.ErrorHandler) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler:   errorHandler,
		TokenValidator: accessValidator{signer: signer},
		ContextKey:     "claims",
		ContextEnricher: func(c context.Context, claims jwtware.AuthClaims) context.Context {
			if tc, ok := claims.(*TokenClaims); ok {
				return WithClaimsContext(c, tc)
			}
			return c
		},
	})
}

// setRefreshCookie stores the refresh credential where only the refresh
// and logout endpoints read it back
func setRefreshCookie(c router.Context, cfg Config, token string, expiresAt time.Time) {
	c.Cookie(&router.Cookie{
		Name:     cfg.GetCookieName(),
		Value:    token,
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   cfg.GetCookieSecure(),
		SameSite: "Strict",
	})
}

func clearRefreshCookie(c router.Context, cfg Config) {
	c.Cookie(&router.Cookie{
		Name:     cfg.GetCookieName(),
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   cfg.GetCookieSecure(),
		SameSite: "Strict",
	})
}

// respondError maps a rich error to the envelope. Metadata is logged
// but never serialized into the response.
func respondError(c router.Context, logger Logger, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	logger.Info(
		"Request error",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	status := HTTPStatus(richErr)

	body := APIResponse{
		Status:  "error",
		Message: richErr.Message,
	}
	if richErr.TextCode != "" {
		body.Data = map[string]string{"code": richErr.TextCode}
	}

	return c.JSON(status, body)
}
