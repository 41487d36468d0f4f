package credentials

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Tokens stores single use purpose tokens
type Tokens interface {
	repository.Repository[*PurposeToken]

	Issue(ctx context.Context, userID uuid.UUID, tokenType TokenType, token string, expiresAt time.Time) (*PurposeToken, error)
	IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenType TokenType, token string, expiresAt time.Time) (*PurposeToken, error)
	Consume(ctx context.Context, tokenType TokenType, token string) (*PurposeToken, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, tokenType TokenType, token string) (*PurposeToken, error)
	FindByToken(ctx context.Context, tokenType TokenType, token string) (*PurposeToken, error)
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type tokens struct {
	repository.Repository[*PurposeToken]
	db *bun.DB
}

var (
	_ Tokens                               = (*tokens)(nil)
	_ repository.Repository[*PurposeToken] = (*tokens)(nil)
)

func NewTokensRepository(db *bun.DB) Tokens {
	repo := repository.NewRepository[*PurposeToken](db, repository.ModelHandlers[*PurposeToken]{
		NewRecord: func() *PurposeToken { return &PurposeToken{} },
		GetID: func(t *PurposeToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *PurposeToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &tokens{
		Repository: repo,
		db:         db,
	}
}

func (r *tokens) Issue(ctx context.Context, userID uuid.UUID, tokenType TokenType, token string, expiresAt time.Time) (*PurposeToken, error) {
	return r.IssueTx(ctx, r.db, userID, tokenType, token, expiresAt)
}

func (r *tokens) IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenType TokenType, token string, expiresAt time.Time) (*PurposeToken, error) {
	record := &PurposeToken{
		UserID:    userID,
		TokenType: tokenType,
		Token:     token,
		ExpiresAt: &expiresAt,
	}

	// Deterministic ID derived from the token string, reissuing the
	// same credential can never mint a second row
	if id, err := hashid.NewUUID(token); err == nil {
		record.ID = id
	}

	return r.Repository.CreateTx(ctx, tx, record)
}

func (r *tokens) Consume(ctx context.Context, tokenType TokenType, token string) (*PurposeToken, error) {
	return r.ConsumeTx(ctx, r.db, tokenType, token)
}

// ConsumeTx marks a token used with a single conditional UPDATE so two
// concurrent consumers cannot both win. The row is only touched while it
// is unused and unexpired, the losing caller gets a classification of
// what actually happened: missing, already used, or expired.
func (r *tokens) ConsumeTx(ctx context.Context, tx bun.IDB, tokenType TokenType, token string) (*PurposeToken, error) {
	now := time.Now()
	record := &PurposeToken{}

	res, err := tx.NewUpdate().
		Model(record).
		Set("is_used = TRUE").
		Set("updated_at = ?", now).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.token_type = ?", tokenType).
		Where("?TableAlias.is_used = FALSE").
		Where("?TableAlias.expires_at > ?", now).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if affected == 0 {
		return nil, r.classifyConsumeFailure(ctx, tx, tokenType, token, now)
	}

	return record, nil
}

// classifyConsumeFailure runs after a consume matched no row, it tells
// the caller apart missing, spent, and expired tokens
func (r *tokens) classifyConsumeFailure(ctx context.Context, tx bun.IDB, tokenType TokenType, token string, now time.Time) error {
	record := &PurposeToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.token_type = ?", tokenType).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrTokenNotFound
		}
		return err
	}

	if record.IsUsed {
		return ErrTokenAlreadyUsed
	}

	if record.Expired(now) {
		return ErrTokenExpired
	}

	return ErrTokenNotFound
}

func (r *tokens) FindByToken(ctx context.Context, tokenType TokenType, token string) (*PurposeToken, error) {
	record := &PurposeToken{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.token_type = ?", tokenType).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"token_type": tokenType,
				})
		}
		return nil, err
	}

	return record, nil
}

// PurgeExpired deletes tokens whose expiry is before the given cutoff
func (r *tokens) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*PurposeToken)(nil)).
		Where("expires_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// issueStoredToken persists a freshly signed single use token for a
// directory user, expiry follows the signer's TTL for the purpose
func issueStoredToken(ctx context.Context, tx bun.IDB, tokens Tokens, signer TokenSigner, user *DirectoryUser, purpose TokenPurpose, token string) error {
	userID, err := uuid.Parse(user.UID)
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(signer.TTL(purpose))
	_, err = tokens.IssueTx(ctx, tx, userID, TokenTypeFor(purpose), token, expiresAt)
	return err
}
