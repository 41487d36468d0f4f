package credentials_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-credentials"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateAuthTokens = `CREATE TABLE auth_tokens (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    token_type TEXT NOT NULL,
    token TEXT NOT NULL UNIQUE,
    expires_at TIMESTAMP NOT NULL,
    is_used BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
	sqliteCreateSessions = `CREATE TABLE sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    refresh_token TEXT NOT NULL UNIQUE,
    refresh_expires_at TIMESTAMP NOT NULL,
    device_info TEXT,
    ip_address TEXT,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec(sqliteCreateAuthTokens)
	require.NoError(t, err)
	_, err = db.Exec(sqliteCreateSessions)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// quietLogger drops everything, tests assert on behavior not log lines
type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

type testConfig struct {
	issuer       string
	secrets      map[credentials.TokenPurpose]string
	ttls         map[credentials.TokenPurpose]time.Duration
	serviceKey   string
	serviceName  string
	allowed      []string
	cookieName   string
	cookieSecure bool
}

func newTestConfig() *testConfig {
	return &testConfig{
		issuer: "test-issuer",
		secrets: map[credentials.TokenPurpose]string{
			credentials.PurposeAccess:            "access-secret",
			credentials.PurposeRefresh:           "refresh-secret",
			credentials.PurposeEmailVerification: "verification-secret",
			credentials.PurposePasswordReset:     "reset-secret",
		},
		ttls: map[credentials.TokenPurpose]time.Duration{
			credentials.PurposeAccess:            15 * time.Minute,
			credentials.PurposeRefresh:           7 * 24 * time.Hour,
			credentials.PurposeEmailVerification: time.Hour,
			credentials.PurposePasswordReset:     time.Hour,
		},
		serviceKey:  "inter-service-key",
		serviceName: "auth-service",
		allowed:     []string{"auth-service", "post-service"},
		cookieName:  "refreshToken",
	}
}

func (c *testConfig) GetIssuer() string { return c.issuer }
func (c *testConfig) GetSigningSecret(purpose credentials.TokenPurpose) string {
	return c.secrets[purpose]
}
func (c *testConfig) GetTokenTTL(purpose credentials.TokenPurpose) time.Duration {
	return c.ttls[purpose]
}
func (c *testConfig) GetServiceKey() string        { return c.serviceKey }
func (c *testConfig) GetServiceName() string       { return c.serviceName }
func (c *testConfig) GetAllowedServices() []string { return c.allowed }
func (c *testConfig) GetCookieName() string        { return c.cookieName }
func (c *testConfig) GetCookieSecure() bool        { return c.cookieSecure }

func mustSigner(t *testing.T, cfg credentials.Config) credentials.TokenSigner {
	t.Helper()
	signer, err := credentials.NewTokenSigner(cfg, quietLogger{})
	require.NoError(t, err)
	return signer
}

type directoryPatchCall struct {
	id    string
	patch credentials.DirectoryPatch
}

// memoryDirectory is an in-memory stand-in for the user service
type memoryDirectory struct {
	mu      sync.Mutex
	users   map[string]*credentials.DirectoryUser
	hashes  map[string]string
	patches []directoryPatchCall
	created []credentials.DirectoryNewUser

	createErr error
	updateErr error
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{
		users:  map[string]*credentials.DirectoryUser{},
		hashes: map[string]string{},
	}
}

func (d *memoryDirectory) seed(user credentials.DirectoryUser, passwordHash string) *credentials.DirectoryUser {
	d.mu.Lock()
	defer d.mu.Unlock()

	if user.UID == "" {
		user.UID = uuid.NewString()
	}
	record := user
	d.users[record.UID] = &record
	if passwordHash != "" {
		d.hashes[record.EmailAddr] = passwordHash
	}
	return &record
}

func userNotFound() error {
	return goerrors.New("user not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound)
}

func (d *memoryDirectory) EmailExists(_ context.Context, email string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, user := range d.users {
		if user.EmailAddr == email {
			return true, nil
		}
	}
	return false, nil
}

func (d *memoryDirectory) GetByEmail(_ context.Context, email string) (*credentials.DirectoryUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, user := range d.users {
		if user.EmailAddr == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, userNotFound()
}

func (d *memoryDirectory) GetByID(_ context.Context, id string) (*credentials.DirectoryUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.users[id]
	if !ok {
		return nil, userNotFound()
	}
	clone := *user
	return &clone, nil
}

func (d *memoryDirectory) GetPasswordHash(_ context.Context, email string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	hash, ok := d.hashes[email]
	if !ok {
		return "", userNotFound()
	}
	return hash, nil
}

func (d *memoryDirectory) Create(_ context.Context, user credentials.DirectoryNewUser) (*credentials.DirectoryUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.createErr != nil {
		return nil, d.createErr
	}

	role := user.RoleName
	if role == "" {
		role = "user"
	}

	record := &credentials.DirectoryUser{
		UID:           uuid.NewString(),
		Name:          user.Username,
		FullName:      user.FullName,
		EmailAddr:     user.Email,
		UserRole:      role,
		EmailVerified: user.IsVerified,
	}

	d.users[record.UID] = record
	d.hashes[record.EmailAddr] = user.PasswordHash
	d.created = append(d.created, user)

	clone := *record
	return &clone, nil
}

func (d *memoryDirectory) Update(_ context.Context, id string, patch credentials.DirectoryPatch) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.updateErr != nil {
		return d.updateErr
	}

	user, ok := d.users[id]
	if !ok {
		return userNotFound()
	}

	if patch.PasswordHash != nil {
		d.hashes[user.EmailAddr] = *patch.PasswordHash
	}
	if patch.EmailVerified != nil {
		user.EmailVerified = *patch.EmailVerified
	}
	if patch.LastLogin != nil {
		user.LastLogin = patch.LastLogin
	}

	d.patches = append(d.patches, directoryPatchCall{id: id, patch: patch})
	return nil
}

func (d *memoryDirectory) patchCalls() []directoryPatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]directoryPatchCall(nil), d.patches...)
}

type sentEmail struct {
	email    string
	username string
	token    string
}

// recordingNotifier captures deliveries instead of sending them
type recordingNotifier struct {
	mu            sync.Mutex
	verifications []sentEmail
	resets        []sentEmail

	verificationErr error
	resetErr        error
}

func (n *recordingNotifier) SendVerification(_ context.Context, email, username, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.verificationErr != nil {
		return n.verificationErr
	}
	n.verifications = append(n.verifications, sentEmail{email: email, username: username, token: token})
	return nil
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, user *credentials.DirectoryUser, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.resetErr != nil {
		return n.resetErr
	}
	n.resets = append(n.resets, sentEmail{email: user.EmailAddr, username: user.Name, token: token})
	return nil
}

func (n *recordingNotifier) sentVerifications() []sentEmail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEmail(nil), n.verifications...)
}

func (n *recordingNotifier) sentResets() []sentEmail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEmail(nil), n.resets...)
}

// identityStub is a fixed identity for signing tests
type identityStub struct {
	id       string
	username string
	email    string
	role     string
}

func (i identityStub) ID() string       { return i.id }
func (i identityStub) Username() string { return i.username }
func (i identityStub) Email() string    { return i.email }
func (i identityStub) Role() string     { return i.role }
