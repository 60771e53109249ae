package teams_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/issue-tracker-client/apiclient"
	"github.com/jrsteele09/issue-tracker-client/internal/config"
	"github.com/jrsteele09/issue-tracker-client/internal/errors"
	"github.com/jrsteele09/issue-tracker-client/internal/fakebackend"
	"github.com/jrsteele09/issue-tracker-client/session"
	"github.com/jrsteele09/issue-tracker-client/teams"
	"github.com/jrsteele09/issue-tracker-client/tokens"
	"github.com/jrsteele09/issue-tracker-client/tokens/repofake"
	"github.com/jrsteele09/issue-tracker-client/users"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*teams.Service, *fakebackend.Backend, users.User) {
	t.Helper()
	backend := fakebackend.New()
	t.Cleanup(backend.Close)
	alice := backend.AddUser("alice", "alice-password", false)
	bob := backend.AddUser("bob", "bob-password", false)

	m, err := session.New(backend.URL(), tokens.NewStore(repofake.NewFakeTokenRepo(), config.Session{}))
	require.NoError(t, err)
	t.Cleanup(m.Close)
	require.NoError(t, m.Login(context.Background(), alice.Username, "alice-password"))
	_, err = m.WaitIdentity(context.Background())
	require.NoError(t, err)
	return teams.NewService(m.Client()), backend, bob
}

func TestTeams(t *testing.T) {
	svc, backend, bob := setupService(t)
	ctx := context.Background()

	t.Run("Empty list", func(t *testing.T) {
		list, err := svc.List(ctx)
		require.NoError(t, err)
		require.NotNil(t, list)
		require.Empty(t, list)
	})

	t.Run("Create and list", func(t *testing.T) {
		created, err := svc.Create(ctx, teams.Input{Name: "Platform", Description: "Infra", MemberIDs: []int{bob.ID}})
		require.NoError(t, err)
		require.Equal(t, "Platform", created.Name)
		require.Len(t, created.Members, 2)

		list, err := svc.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, created.ID, list[0].ID)
		require.Equal(t, 2, backend.Calls(fakebackend.KeyTeams))
	})

	t.Run("Name too short", func(t *testing.T) {
		_, err := svc.Create(ctx, teams.Input{Name: "ab"})
		var ve *errors.ValidationError
		require.True(t, errors.As(err, &ve))
		require.Contains(t, ve.Fields, "name")
	})

	t.Run("Invite creates an account", func(t *testing.T) {
		u, err := svc.Invite(ctx, users.RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "temporary-pass"})
		require.NoError(t, err)
		require.Equal(t, "carol", u.Username)
	})

	t.Run("Invite an existing username", func(t *testing.T) {
		_, err := svc.Invite(ctx, users.RegisterRequest{Username: "bob", Email: "bob2@example.com", Password: "temporary-pass"})
		require.ErrorIs(t, err, errors.ErrValidation)
		var apiErr *apiclient.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Contains(t, apiErr.Fields, "username")
	})
}
