package credentials_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-credentials"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setSecretEnv(t *testing.T) {
	t.Helper()

	t.Setenv("ACCESS_TOKEN_SECRET", "access-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret")
	t.Setenv("EMAIL_VERIFICATION_SECRET", "verification-secret")
	t.Setenv("RESET_TOKEN_SECRET", "reset-secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setSecretEnv(t)

	cfg, err := credentials.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "auth-service", cfg.GetIssuer())
	assert.Equal(t, "auth-service", cfg.GetServiceName())
	assert.Equal(t, "refreshToken", cfg.GetCookieName())
	assert.False(t, cfg.GetCookieSecure())

	assert.Equal(t, 15*time.Minute, cfg.GetTokenTTL(credentials.PurposeAccess))
	assert.Equal(t, 168*time.Hour, cfg.GetTokenTTL(credentials.PurposeRefresh))
	assert.Equal(t, time.Hour, cfg.GetTokenTTL(credentials.PurposeEmailVerification))
	assert.Equal(t, time.Hour, cfg.GetTokenTTL(credentials.PurposePasswordReset))

	assert.Equal(t, []string{"auth-service", "post-service", "notification-service"}, cfg.GetAllowedServices())
}

func TestLoadConfigOverrides(t *testing.T) {
	setSecretEnv(t)
	t.Setenv("AUTH_ISSUER", "identity-gateway")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("REFRESH_TOKEN_TTL", "720h")
	t.Setenv("ALLOWED_SERVICES", "gateway,billing")
	t.Setenv("INTER_SERVICE_API_KEY", "inter-service-key")
	t.Setenv("USER_SERVICE_URL", "http://users.internal")
	t.Setenv("NOTIFIER_URL", "http://notify.internal")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := credentials.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "identity-gateway", cfg.GetIssuer())
	assert.Equal(t, 5*time.Minute, cfg.GetTokenTTL(credentials.PurposeAccess))
	assert.Equal(t, 720*time.Hour, cfg.GetTokenTTL(credentials.PurposeRefresh))
	assert.Equal(t, []string{"gateway", "billing"}, cfg.GetAllowedServices())
	assert.Equal(t, "inter-service-key", cfg.GetServiceKey())
	assert.Equal(t, "http://users.internal", cfg.GetDirectoryURL())
	assert.Equal(t, "http://notify.internal", cfg.GetNotifierURL())
	assert.True(t, cfg.GetCookieSecure())
}

func TestConfigSecretsPerPurpose(t *testing.T) {
	setSecretEnv(t)

	cfg, err := credentials.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "access-secret", cfg.GetSigningSecret(credentials.PurposeAccess))
	assert.Equal(t, "refresh-secret", cfg.GetSigningSecret(credentials.PurposeRefresh))
	assert.Equal(t, "verification-secret", cfg.GetSigningSecret(credentials.PurposeEmailVerification))
	assert.Equal(t, "reset-secret", cfg.GetSigningSecret(credentials.PurposePasswordReset))

	assert.Empty(t, cfg.GetSigningSecret(credentials.TokenPurpose("bogus")))
	assert.Zero(t, cfg.GetTokenTTL(credentials.TokenPurpose("bogus")))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*credentials.EnvConfig)
		missing string
	}{
		{
			name:    "missing access secret",
			mutate:  func(c *credentials.EnvConfig) { c.AccessSecret = "" },
			missing: "ACCESS_TOKEN_SECRET",
		},
		{
			name:    "missing refresh secret",
			mutate:  func(c *credentials.EnvConfig) { c.RefreshSecret = "" },
			missing: "REFRESH_TOKEN_SECRET",
		},
		{
			name:    "missing verification secret",
			mutate:  func(c *credentials.EnvConfig) { c.VerificationSecret = "" },
			missing: "EMAIL_VERIFICATION_SECRET",
		},
		{
			name:    "missing reset secret",
			mutate:  func(c *credentials.EnvConfig) { c.ResetSecret = "" },
			missing: "RESET_TOKEN_SECRET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &credentials.EnvConfig{
				AccessSecret:       "access-secret",
				RefreshSecret:      "refresh-secret",
				VerificationSecret: "verification-secret",
				ResetSecret:        "reset-secret",
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var richErr *goerrors.Error
			require.ErrorAs(t, err, &richErr)
			assert.Equal(t, tt.missing, richErr.Metadata["variable"])
		})
	}

	t.Run("complete config passes", func(t *testing.T) {
		cfg := &credentials.EnvConfig{
			AccessSecret:       "access-secret",
			RefreshSecret:      "refresh-secret",
			VerificationSecret: "verification-secret",
			ResetSecret:        "reset-secret",
		}
		assert.NoError(t, cfg.Validate())
	})
}
