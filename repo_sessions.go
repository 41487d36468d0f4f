package credentials

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sessions stores refresh sessions
type Sessions interface {
	repository.Repository[*Session]

	Start(ctx context.Context, session *Session) (*Session, error)
	StartTx(ctx context.Context, tx bun.IDB, session *Session) (*Session, error)
	FindActiveByRefreshToken(ctx context.Context, refreshToken string) (*Session, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	RevokeByRefreshToken(ctx context.Context, refreshToken string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ActiveForUser(ctx context.Context, userID uuid.UUID) ([]*Session, error)
}

type sessions struct {
	repository.Repository[*Session]
	db *bun.DB
}

var (
	_ Sessions                        = (*sessions)(nil)
	_ repository.Repository[*Session] = (*sessions)(nil)
)

func NewSessionsRepository(db *bun.DB) Sessions {
	repo := repository.NewRepository[*Session](db, repository.ModelHandlers[*Session]{
		NewRecord: func() *Session { return &Session{} },
		GetID: func(s *Session) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Session, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
		GetIdentifier: func() string {
			return "refresh_token"
		},
	})

	return &sessions{
		Repository: repo,
		db:         db,
	}
}

func (r *sessions) Start(ctx context.Context, session *Session) (*Session, error) {
	return r.StartTx(ctx, r.db, session)
}

func (r *sessions) StartTx(ctx context.Context, tx bun.IDB, session *Session) (*Session, error) {
	session.IsActive = true
	return r.Repository.CreateTx(ctx, tx, session)
}

// FindActiveByRefreshToken returns the session backing a refresh
// credential, only while it is active and unexpired. A verified token
// with no row here was revoked.
func (r *sessions) FindActiveByRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	record := &Session{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.refresh_token = ?", refreshToken).
		Where("?TableAlias.is_active = TRUE").
		Where("?TableAlias.refresh_expires_at > ?", time.Now()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrSessionRevoked
		}
		return nil, err
	}

	return record, nil
}

func (r *sessions) Revoke(ctx context.Context, id uuid.UUID) error {
	return r.RevokeTx(ctx, r.db, id)
}

// RevokeTx deactivates a session. Revoking an already revoked or
// missing session is a no op, logout stays idempotent.
func (r *sessions) RevokeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewUpdate().
		Model((*Session)(nil)).
		Set("is_active = FALSE").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (r *sessions) RevokeByRefreshToken(ctx context.Context, refreshToken string) error {
	_, err := r.db.NewUpdate().
		Model((*Session)(nil)).
		Set("is_active = FALSE").
		Set("updated_at = ?", time.Now()).
		Where("refresh_token = ?", refreshToken).
		Exec(ctx)
	return err
}

// RevokeAllForUser deactivates every active session a user holds, used
// after a password reset so stolen refresh tokens die with the password
func (r *sessions) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*Session)(nil)).
		Set("is_active = FALSE").
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Where("is_active = TRUE").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessions) ActiveForUser(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	var records []*Session
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.is_active = TRUE").
		Where("?TableAlias.refresh_expires_at > ?", time.Now()).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
