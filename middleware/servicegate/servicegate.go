package servicegate

import (
	"crypto/subtle"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Headers carrying the shared service credential
const (
	HeaderServiceKey  = "X-Service-Key"
	HeaderServiceName = "X-Service-Name"
)

// DefaultContextKey is where the calling service's name lands in the
// router context after the gate admits a request
const DefaultContextKey = "caller_service"

type Config struct {
	Filter       func(router.Context) bool
	ErrorHandler router.ErrorHandler

	// Key is the shared secret every internal service presents
	Key string
	// AllowedServices lists the service names the gate admits. Empty
	// means any name passes as long as the key matches.
	AllowedServices []string
	// ContextKey is where the caller name is stored for handlers
	ContextKey string
}

// New builds the trust gate middleware. The key comparison is constant
// time, and an unknown service name fails even with a valid key.
func New(config ...Config) router.MiddlewareFunc {
	cfg := getDefaultConfig(config...)

	allowed := make(map[string]bool, len(cfg.AllowedServices))
	for _, name := range cfg.AllowedServices {
		allowed[strings.ToLower(strings.TrimSpace(name))] = true
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			key := ctx.GetString(HeaderServiceKey, "")
			name := strings.ToLower(strings.TrimSpace(ctx.GetString(HeaderServiceName, "")))

			if key == "" {
				return cfg.ErrorHandler(ctx, ErrServiceKeyMissing)
			}

			if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.Key)) != 1 {
				return cfg.ErrorHandler(ctx, ErrUntrustedService)
			}

			if len(allowed) > 0 && !allowed[name] {
				return cfg.ErrorHandler(ctx, ErrUntrustedService)
			}

			ctx.Locals(cfg.ContextKey, name)

			return ctx.Next()
		}
	}
}

// CallerService returns the name of the admitted calling service
func CallerService(ctx router.Context, key ...string) string {
	k := DefaultContextKey
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}
	raw := ctx.Locals(k)
	if raw == nil {
		return ""
	}
	name, _ := raw.(string)
	return name
}

func getDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Key == "" {
		panic("CREDENTIALS: service gate middleware configuration: Key is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			status := router.StatusForbidden
			if errors.Is(err, ErrServiceKeyMissing) {
				status = router.StatusUnauthorized
			}
			return c.Status(status).SendString(err.Error())
		}
	}

	return cfg
}
