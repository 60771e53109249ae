package filerepo_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/issue-tracker-client/tokens"
	"github.com/jrsteele09/issue-tracker-client/tokens/filerepo"
	"github.com/stretchr/testify/require"
)

func TestFileRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("Values survive a new repo instance", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "tokens.json")
		repo := filerepo.New(path)
		require.NoError(t, repo.Set(ctx, tokens.AccessTokenKey, "a1", tokens.SetOptions{TTL: time.Hour}))
		require.NoError(t, repo.Set(ctx, tokens.RefreshTokenKey, "r1", tokens.SetOptions{}))

		reopened := filerepo.New(path)
		v, err := reopened.Get(ctx, tokens.AccessTokenKey)
		require.NoError(t, err)
		require.Equal(t, "a1", v)

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("Missing file reads as empty", func(t *testing.T) {
		repo := filerepo.New(filepath.Join(t.TempDir(), "tokens.json"))
		_, err := repo.Get(ctx, tokens.AccessTokenKey)
		require.ErrorIs(t, err, tokens.ErrNotFound)
		require.NoError(t, repo.Delete(ctx, tokens.AccessTokenKey))
	})

	t.Run("Expired values are not returned", func(t *testing.T) {
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		path := filepath.Join(t.TempDir(), "tokens.json")
		repo := filerepo.New(path, filerepo.WithNowFunc(func() time.Time { return now }))
		require.NoError(t, repo.Set(ctx, tokens.AccessTokenKey, "a1", tokens.SetOptions{TTL: time.Minute}))

		now = now.Add(2 * time.Minute)
		_, err := repo.Get(ctx, tokens.AccessTokenKey)
		require.ErrorIs(t, err, tokens.ErrNotFound)

		// Saving again drops the dead record from disk
		require.NoError(t, repo.Set(ctx, tokens.RefreshTokenKey, "r1", tokens.SetOptions{}))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NotContains(t, string(data), tokens.AccessTokenKey)
	})

	t.Run("Delete", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tokens.json")
		repo := filerepo.New(path)
		require.NoError(t, repo.Set(ctx, tokens.AccessTokenKey, "a1", tokens.SetOptions{}))
		require.NoError(t, repo.Delete(ctx, tokens.AccessTokenKey))

		_, err := filerepo.New(path).Get(ctx, tokens.AccessTokenKey)
		require.ErrorIs(t, err, tokens.ErrNotFound)
	})

	t.Run("Secure values need a passphrase", func(t *testing.T) {
		repo := filerepo.New(filepath.Join(t.TempDir(), "tokens.json"))
		err := repo.Set(ctx, tokens.AccessTokenKey, "a1", tokens.SetOptions{Secure: true})
		require.ErrorIs(t, err, tokens.ErrInsecureStore)
	})
}

func TestFileRepoEncrypted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	repo := filerepo.New(path, filerepo.WithPassphrase("open sesame"))
	require.NoError(t, repo.Set(ctx, tokens.AccessTokenKey, "secret-access", tokens.SetOptions{Secure: true}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.False(t, strings.Contains(string(data), "secret-access"))

	t.Run("Same passphrase", func(t *testing.T) {
		v, err := filerepo.New(path, filerepo.WithPassphrase("open sesame")).Get(ctx, tokens.AccessTokenKey)
		require.NoError(t, err)
		require.Equal(t, "secret-access", v)
	})

	t.Run("Wrong passphrase", func(t *testing.T) {
		_, err := filerepo.New(path, filerepo.WithPassphrase("guess")).Get(ctx, tokens.AccessTokenKey)
		require.ErrorIs(t, err, filerepo.ErrDecrypt)
	})

	t.Run("No passphrase", func(t *testing.T) {
		_, err := filerepo.New(path).Get(ctx, tokens.AccessTokenKey)
		require.Error(t, err)
	})
}
