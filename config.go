package credentials

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// EnvConfig is an environment backed Config implementation. Each token
// purpose carries its own signing secret so a leaked access secret
// cannot forge reset or verification credentials.
type EnvConfig struct {
	Issuer string `env:"AUTH_ISSUER" envDefault:"auth-service"`

	AccessSecret       string `env:"ACCESS_TOKEN_SECRET"`
	RefreshSecret      string `env:"REFRESH_TOKEN_SECRET"`
	VerificationSecret string `env:"EMAIL_VERIFICATION_SECRET"`
	ResetSecret        string `env:"RESET_TOKEN_SECRET"`

	AccessTTL       time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTTL      time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	VerificationTTL time.Duration `env:"EMAIL_VERIFICATION_TTL" envDefault:"1h"`
	ResetTTL        time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`

	ServiceKey      string   `env:"INTER_SERVICE_API_KEY"`
	ServiceName     string   `env:"SERVICE_NAME" envDefault:"auth-service"`
	AllowedServices []string `env:"ALLOWED_SERVICES" envDefault:"auth-service,post-service,notification-service"`

	CookieName   string `env:"REFRESH_COOKIE_NAME" envDefault:"refreshToken"`
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"false"`

	DirectoryURL string `env:"USER_SERVICE_URL"`
	NotifierURL  string `env:"NOTIFIER_URL"`
}

// LoadConfig reads configuration from the environment, after loading an
// optional .env file. A missing .env file is not an error.
func LoadConfig() (*EnvConfig, error) {
	_ = godotenv.Load()

	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to parse environment configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate fails fast on unset signing secrets
func (c *EnvConfig) Validate() error {
	missing := ""
	switch {
	case c.AccessSecret == "":
		missing = "ACCESS_TOKEN_SECRET"
	case c.RefreshSecret == "":
		missing = "REFRESH_TOKEN_SECRET"
	case c.VerificationSecret == "":
		missing = "EMAIL_VERIFICATION_SECRET"
	case c.ResetSecret == "":
		missing = "RESET_TOKEN_SECRET"
	}

	if missing != "" {
		return errors.Wrap(ErrMissingSigningSecret, errors.CategoryInternal, "incomplete configuration").
			WithMetadata(map[string]any{"variable": missing})
	}

	return nil
}

func (c *EnvConfig) GetIssuer() string { return c.Issuer }

func (c *EnvConfig) GetSigningSecret(purpose TokenPurpose) string {
	switch purpose {
	case PurposeAccess:
		return c.AccessSecret
	case PurposeRefresh:
		return c.RefreshSecret
	case PurposeEmailVerification:
		return c.VerificationSecret
	case PurposePasswordReset:
		return c.ResetSecret
	}
	return ""
}

func (c *EnvConfig) GetTokenTTL(purpose TokenPurpose) time.Duration {
	switch purpose {
	case PurposeAccess:
		return c.AccessTTL
	case PurposeRefresh:
		return c.RefreshTTL
	case PurposeEmailVerification:
		return c.VerificationTTL
	case PurposePasswordReset:
		return c.ResetTTL
	}
	return 0
}

func (c *EnvConfig) GetServiceKey() string        { return c.ServiceKey }
func (c *EnvConfig) GetServiceName() string       { return c.ServiceName }
func (c *EnvConfig) GetAllowedServices() []string { return c.AllowedServices }
func (c *EnvConfig) GetCookieName() string        { return c.CookieName }
func (c *EnvConfig) GetCookieSecure() bool        { return c.CookieSecure }
func (c *EnvConfig) GetDirectoryURL() string      { return c.DirectoryURL }
func (c *EnvConfig) GetNotifierURL() string       { return c.NotifierURL }
