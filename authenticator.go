package credentials

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// lastLoginTimeout bounds the detached last-login write so a hung
// directory cannot leak goroutines.
const lastLoginTimeout = 5 * time.Second

// LoginResult carries everything a transport needs to answer a
// successful login
type LoginResult struct {
	User             *DirectoryUser
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Auther implements the Authenticator interface on top of the user
// directory, the session store, and the token signer
type Auther struct {
	directory    Directory
	sessions     Sessions
	signer       TokenSigner
	logger       Logger
	activitySink ActivitySink
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(directory Directory, sessions Sessions, signer TokenSigner) *Auther {
	return &Auther{
		directory:    directory,
		sessions:     sessions,
		signer:       signer,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	recordActivity(ctx, s.activitySink, s.logger, eventType, userID, metadata)
}

// Login verifies credentials against the directory and opens a refresh
// session. Unknown emails, missing hashes, and wrong passwords all
// produce the same ErrInvalidCredentials, responses never reveal
// whether an account exists.
func (s *Auther) Login(ctx context.Context, email, password string, device DeviceInfo) (*LoginResult, error) {
	email = NormalizeEmail(email)

	user, err := s.directory.GetByEmail(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Warn("Login attempt for unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	hash, err := s.directory.GetPasswordHash(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Warn("Login user has no password hash", "user_id", user.UID)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := ComparePasswordAndHash(password, hash); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.emitAuthEvent(ctx, ActivityEventLoginFailure, user.UID, map[string]any{
				"reason": "password_mismatch",
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	identity := IdentityFromDirectory(user)

	accessToken, err := s.signer.Sign(PurposeAccess, identity)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.signer.Sign(PurposeRefresh, identity)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(user.UID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "directory returned a malformed user id")
	}

	refreshExpiresAt := time.Now().Add(s.signer.TTL(PurposeRefresh))

	session := &Session{
		UserID:           userID,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: &refreshExpiresAt,
		DeviceInfo:       device.UserAgent,
		IPAddress:        device.IP,
	}

	if _, err := s.sessions.Start(ctx, session); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to persist session")
	}

	// Last login is best effort and off the hot path, a directory
	// hiccup must neither fail nor slow the login. The goroutine gets
	// its own deadline, the request context dies with the response.
	now := time.Now()
	go func() {
		patchCtx, cancel := context.WithTimeout(context.Background(), lastLoginTimeout)
		defer cancel()

		if err := s.directory.Update(patchCtx, user.UID, DirectoryPatch{LastLogin: &now}); err != nil {
			s.logger.Warn("Failed to record last login", "user_id", user.UID, "error", err)
		}
	}()
	user.LastLogin = &now

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, user.UID, map[string]any{
		"ip": device.IP,
	})

	return &LoginResult{
		User:             user,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// Refresh trades a refresh credential for a new access credential. The
// signature check alone is not enough, an active session row must still
// back the token. The refresh token itself is not rotated, it stays
// valid until logout or expiry.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.signer.Verify(PurposeRefresh, refreshToken)
	if err != nil {
		return "", err
	}

	session, err := s.sessions.FindActiveByRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	if session.UserID.String() != claims.Subject() {
		s.logger.Error("Refresh session subject mismatch", "session", session.ID)
		return "", ErrSessionRevoked
	}

	// Re-read the directory so a role change or deactivation since
	// login lands in the new access token
	user, err := s.directory.GetByID(ctx, claims.Subject())
	if err != nil {
		if errors.IsNotFound(err) {
			return "", ErrSessionRevoked
		}
		return "", err
	}

	token, err := s.signer.Sign(PurposeAccess, IdentityFromDirectory(user))
	if err != nil {
		return "", err
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefresh, user.UID, nil)

	return token, nil
}

// Logout revokes the session backing a refresh credential. Unknown and
// already revoked tokens succeed too, logout is idempotent.
func (s *Auther) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	if err := s.sessions.RevokeByRefreshToken(ctx, refreshToken); err != nil {
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventLogout, "", nil)
	return nil
}

// ValidateAccess checks an access credential and returns its claims.
// This is pure signature and expiry verification, no store lookup, so
// sibling services can call it on every request.
func (s *Auther) ValidateAccess(token string) (*TokenClaims, error) {
	return s.signer.Verify(PurposeAccess, token)
}
