package credentials_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-credentials"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimsContextRoundTrip(t *testing.T) {
	claims := &credentials.TokenClaims{
		UID:     "user-1",
		Purpose: credentials.PurposeAccess,
	}

	ctx := credentials.WithClaimsContext(context.Background(), claims)

	got, ok := credentials.GetClaims(ctx)
	require.True(t, ok)
	assert.Same(t, claims, got)
}

func TestGetClaimsMissing(t *testing.T) {
	got, ok := credentials.GetClaims(context.Background())
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestGetRouterClaims(t *testing.T) {
	claims := &credentials.TokenClaims{UID: "user-1"}

	t.Run("default key", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.LocalsMock["claims"] = claims

		got, ok := credentials.GetRouterClaims(ctx, "")
		require.True(t, ok)
		assert.Same(t, claims, got)
	})

	t.Run("custom key", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.LocalsMock["identity"] = claims

		got, ok := credentials.GetRouterClaims(ctx, "identity")
		require.True(t, ok)
		assert.Same(t, claims, got)
	})

	t.Run("missing claims", func(t *testing.T) {
		ctx := router.NewMockContext()

		got, ok := credentials.GetRouterClaims(ctx, "claims")
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("wrong type under key", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.LocalsMock["claims"] = "not claims"

		got, ok := credentials.GetRouterClaims(ctx, "claims")
		assert.False(t, ok)
		assert.Nil(t, got)
	})
}
