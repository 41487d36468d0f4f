package credentials

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenSignerImpl implements the TokenSigner interface
type TokenSignerImpl struct {
	issuer  string
	secrets map[TokenPurpose][]byte
	ttls    map[TokenPurpose]time.Duration
	logger  Logger
}

type signOptions struct {
	salt string
	ttl  time.Duration
}

// SignOption tweaks a single Sign or Verify call
type SignOption func(*signOptions)

// WithSubjectSalt mixes a per subject salt into the signing key. The
// password reset flow salts with the current password hash, so changing
// the password invalidates every outstanding reset credential without a
// blacklist. The same salt must be supplied at verify time.
func WithSubjectSalt(salt string) SignOption {
	return func(o *signOptions) {
		o.salt = salt
	}
}

// WithTTL overrides the configured TTL for this call
func WithTTL(ttl time.Duration) SignOption {
	return func(o *signOptions) {
		o.ttl = ttl
	}
}

// NewTokenSigner creates a signer holding one secret per purpose. It
// fails fast when any purpose secret is unset: operating without one
// would mean signing with an empty key.
func NewTokenSigner(cfg Config, logger Logger) (TokenSigner, error) {
	if logger == nil {
		logger = defLogger{}
	}

	secrets := map[TokenPurpose][]byte{}
	ttls := map[TokenPurpose]time.Duration{}

	for _, purpose := range Purposes() {
		secret := cfg.GetSigningSecret(purpose)
		if secret == "" {
			return nil, errors.Wrap(ErrMissingSigningSecret, errors.CategoryInternal, "token signer configuration error").
				WithMetadata(map[string]any{"purpose": string(purpose)})
		}
		secrets[purpose] = []byte(secret)
		ttls[purpose] = cfg.GetTokenTTL(purpose)
	}

	return &TokenSignerImpl{
		issuer:  cfg.GetIssuer(),
		secrets: secrets,
		ttls:    ttls,
		logger:  logger,
	}, nil
}

// Sign issues a credential for the given purpose and identity
func (ts *TokenSignerImpl) Sign(purpose TokenPurpose, identity Identity, opts ...SignOption) (string, error) {
	if identity == nil || identity.ID() == "" {
		return "", errors.New("identity with a subject is required", errors.CategoryBadInput)
	}

	options := ts.applyOptions(purpose, opts)
	if options.ttl <= 0 {
		return "", errors.New("token TTL must be positive", errors.CategoryBadInput).
			WithMetadata(map[string]any{"purpose": string(purpose)})
	}

	key, err := ts.signingKey(purpose, options.salt)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(options.ttl)),
		},
		UID:      identity.ID(),
		Email:    identity.Email(),
		UserRole: identity.Role(),
		Purpose:  purpose,
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Verify parses and validates a token string, returning structured
// claims. Signature comparison is constant time (HMAC through the jwt
// library). Purpose mismatches report as malformed, callers never learn
// which purpose a foreign token was minted for.
func (ts *TokenSignerImpl) Verify(purpose TokenPurpose, tokenString string, opts ...SignOption) (*TokenClaims, error) {
	options := ts.applyOptions(purpose, opts)

	key, err := ts.signingKey(purpose, options.salt)
	if err != nil {
		return nil, err
	}

	parserOptions := make([]jwt.ParserOption, 0, 1)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenSigner verify encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenSigner verify could not decode or validate claims")
		return nil, ErrTokenMalformed
	}

	if claims.Purpose != purpose {
		ts.logger.Warn("TokenSigner verify purpose mismatch", "want", string(purpose), "got", string(claims.Purpose))
		return nil, ErrTokenMalformed
	}

	if claims.Subject() == "" {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// TTL returns the configured lifetime for a purpose
func (ts *TokenSignerImpl) TTL(purpose TokenPurpose) time.Duration {
	return ts.ttls[purpose]
}

func (ts *TokenSignerImpl) applyOptions(purpose TokenPurpose, opts []SignOption) signOptions {
	options := signOptions{ttl: ts.ttls[purpose]}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// signingKey derives the per call HMAC key: the purpose secret, plus
// the subject salt when one is given
func (ts *TokenSignerImpl) signingKey(purpose TokenPurpose, salt string) ([]byte, error) {
	secret, ok := ts.secrets[purpose]
	if !ok {
		return nil, errors.Wrap(ErrMissingSigningSecret, errors.CategoryInternal, "unknown token purpose").
			WithMetadata(map[string]any{"purpose": string(purpose)})
	}

	if salt == "" {
		return secret, nil
	}

	key := make([]byte, 0, len(secret)+len(salt))
	key = append(key, secret...)
	key = append(key, salt...)
	return key, nil
}
