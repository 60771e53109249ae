package repofake_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/issue-tracker-client/tokens"
	"github.com/jrsteele09/issue-tracker-client/tokens/repofake"
	"github.com/stretchr/testify/require"
)

func TestFakeTokenRepo(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := repofake.NewFakeTokenRepo().WithNowFunc(func() time.Time { return now })

	_, err := repo.Get(ctx, "k")
	require.ErrorIs(t, err, tokens.ErrNotFound)

	require.NoError(t, repo.Set(ctx, "k", "v", tokens.SetOptions{TTL: time.Minute}))
	v, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", v)

	now = now.Add(time.Minute)
	_, err = repo.Get(ctx, "k")
	require.ErrorIs(t, err, tokens.ErrNotFound)

	require.NoError(t, repo.Set(ctx, "forever", "v", tokens.SetOptions{}))
	now = now.Add(365 * 24 * time.Hour)
	_, err = repo.Get(ctx, "forever")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "forever"))
	require.NoError(t, repo.Delete(ctx, "missing"))
	_, err = repo.Get(ctx, "forever")
	require.ErrorIs(t, err, tokens.ErrNotFound)
}
