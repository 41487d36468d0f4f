package credentials_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-credentials"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokensIssueAndFind(t *testing.T) {
	db := newTestDB(t)
	repo := credentials.NewTokensRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	expiresAt := time.Now().Add(time.Hour)

	issued, err := repo.Issue(ctx, userID, credentials.TokenTypeEmailVerification, "signed-token-1", expiresAt)
	require.NoError(t, err)
	require.NotNil(t, issued)
	assert.NotEqual(t, uuid.Nil, issued.ID)
	assert.Equal(t, userID, issued.UserID)
	assert.False(t, issued.IsUsed)

	found, err := repo.FindByToken(ctx, credentials.TokenTypeEmailVerification, "signed-token-1")
	require.NoError(t, err)
	assert.Equal(t, issued.ID, found.ID)
	assert.Equal(t, credentials.TokenTypeEmailVerification, found.TokenType)

	t.Run("find misses for the wrong type", func(t *testing.T) {
		_, err := repo.FindByToken(ctx, credentials.TokenTypePasswordReset, "signed-token-1")
		require.Error(t, err)
		assert.True(t, goerrors.IsNotFound(err))
	})

	t.Run("find misses for an unknown token", func(t *testing.T) {
		_, err := repo.FindByToken(ctx, credentials.TokenTypeEmailVerification, "never-issued")
		require.Error(t, err)
		assert.True(t, goerrors.IsNotFound(err))
	})
}

func TestTokensConsume(t *testing.T) {
	ctx := context.Background()

	t.Run("consume marks the token used", func(t *testing.T) {
		db := newTestDB(t)
		repo := credentials.NewTokensRepository(db)

		_, err := repo.Issue(ctx, uuid.New(), credentials.TokenTypePasswordReset, "reset-token", time.Now().Add(time.Hour))
		require.NoError(t, err)

		consumed, err := repo.Consume(ctx, credentials.TokenTypePasswordReset, "reset-token")
		require.NoError(t, err)
		assert.True(t, consumed.IsUsed)

		stored, err := repo.FindByToken(ctx, credentials.TokenTypePasswordReset, "reset-token")
		require.NoError(t, err)
		assert.True(t, stored.IsUsed)
	})

	t.Run("second consume reports already used", func(t *testing.T) {
		db := newTestDB(t)
		repo := credentials.NewTokensRepository(db)

		_, err := repo.Issue(ctx, uuid.New(), credentials.TokenTypePasswordReset, "reset-token", time.Now().Add(time.Hour))
		require.NoError(t, err)

		_, err = repo.Consume(ctx, credentials.TokenTypePasswordReset, "reset-token")
		require.NoError(t, err)

		_, err = repo.Consume(ctx, credentials.TokenTypePasswordReset, "reset-token")
		require.Error(t, err)
		assert.ErrorIs(t, err, credentials.ErrTokenAlreadyUsed)
	})

	t.Run("expired token cannot be consumed", func(t *testing.T) {
		db := newTestDB(t)
		repo := credentials.NewTokensRepository(db)

		_, err := repo.Issue(ctx, uuid.New(), credentials.TokenTypeEmailVerification, "stale-token", time.Now().Add(-time.Minute))
		require.NoError(t, err)

		_, err = repo.Consume(ctx, credentials.TokenTypeEmailVerification, "stale-token")
		require.Error(t, err)
		assert.ErrorIs(t, err, credentials.ErrTokenExpired)
	})

	t.Run("unknown token reports not found", func(t *testing.T) {
		db := newTestDB(t)
		repo := credentials.NewTokensRepository(db)

		_, err := repo.Consume(ctx, credentials.TokenTypeEmailVerification, "never-issued")
		require.Error(t, err)
		assert.ErrorIs(t, err, credentials.ErrTokenNotFound)
	})

	t.Run("consume honors the token type", func(t *testing.T) {
		db := newTestDB(t)
		repo := credentials.NewTokensRepository(db)

		_, err := repo.Issue(ctx, uuid.New(), credentials.TokenTypeEmailVerification, "typed-token", time.Now().Add(time.Hour))
		require.NoError(t, err)

		_, err = repo.Consume(ctx, credentials.TokenTypePasswordReset, "typed-token")
		require.Error(t, err)
		assert.ErrorIs(t, err, credentials.ErrTokenNotFound)
	})
}

func TestTokensConcurrentConsume(t *testing.T) {
	db := newTestDB(t)
	repo := credentials.NewTokensRepository(db)
	ctx := context.Background()

	_, err := repo.Issue(ctx, uuid.New(), credentials.TokenTypeEmailVerification, "contended-token", time.Now().Add(time.Hour))
	require.NoError(t, err)

	const attempts = 8
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = repo.Consume(ctx, credentials.TokenTypeEmailVerification, "contended-token")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, credentials.ErrTokenAlreadyUsed)
	}
	assert.Equal(t, 1, winners, "exactly one consumer wins the token")
}

func TestTokensPurgeExpired(t *testing.T) {
	db := newTestDB(t)
	repo := credentials.NewTokensRepository(db)
	ctx := context.Background()

	_, err := repo.Issue(ctx, uuid.New(), credentials.TokenTypeEmailVerification, "old-token", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = repo.Issue(ctx, uuid.New(), credentials.TokenTypeEmailVerification, "fresh-token", time.Now().Add(time.Hour))
	require.NoError(t, err)

	purged, err := repo.PurgeExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = repo.FindByToken(ctx, credentials.TokenTypeEmailVerification, "old-token")
	require.Error(t, err)

	_, err = repo.FindByToken(ctx, credentials.TokenTypeEmailVerification, "fresh-token")
	assert.NoError(t, err)
}

func TestPurposeTokenExpired(t *testing.T) {
	now := time.Now()

	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, (&credentials.PurposeToken{ExpiresAt: &past}).Expired(now))
	assert.False(t, (&credentials.PurposeToken{ExpiresAt: &future}).Expired(now))
	assert.False(t, (&credentials.PurposeToken{}).Expired(now))
}
