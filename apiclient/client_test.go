package apiclient_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jrsteele09/issue-tracker-client/apiclient"
	"github.com/jrsteele09/issue-tracker-client/internal/config"
	"github.com/jrsteele09/issue-tracker-client/internal/errors"
	"github.com/jrsteele09/issue-tracker-client/internal/fakebackend"
	"github.com/jrsteele09/issue-tracker-client/tokens"
	"github.com/jrsteele09/issue-tracker-client/tokens/repofake"
	"github.com/jrsteele09/issue-tracker-client/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testUsername = "alice"
	testPassword = "correct-horse"
)

type testFixture struct {
	backend *fakebackend.Backend
	store   *tokens.Store
	client  *apiclient.Client
	user    users.User

	mu           sync.Mutex
	terminations []error
}

func setupTestFixture(t *testing.T, opts ...fakebackend.Option) *testFixture {
	t.Helper()

	f := &testFixture{backend: fakebackend.New(opts...)}
	t.Cleanup(f.backend.Close)
	f.user = f.backend.AddUser(testUsername, testPassword, false)
	f.store = tokens.NewStore(repofake.NewFakeTokenRepo(), config.Session{})

	client, err := apiclient.New(f.backend.URL(), f.store,
		apiclient.WithRegisterer(prometheus.NewRegistry()),
		apiclient.WithTerminationHandler(func(_ context.Context, reason error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.terminations = append(f.terminations, reason)
		}),
	)
	require.NoError(t, err)
	f.client = client
	return f
}

// login obtains a token pair from the backend and stores it
func (f *testFixture) login(t *testing.T) *oauth2.Token {
	t.Helper()

	var pair struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	err := f.client.Post(context.Background(), apiclient.RouteJWTCreate,
		map[string]string{"username": testUsername, "password": testPassword}, &pair)
	require.NoError(t, err)
	tok := &oauth2.Token{AccessToken: pair.Access, RefreshToken: pair.Refresh}
	require.NoError(t, f.store.SetTokens(context.Background(), tok))
	return tok
}

func (f *testFixture) terminationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.terminations)
}

func (f *testFixture) me(t *testing.T) (*users.User, error) {
	t.Helper()
	var u users.User
	err := f.client.Get(context.Background(), apiclient.RouteUsersMe, nil, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func TestNew(t *testing.T) {
	store := tokens.NewStore(repofake.NewFakeTokenRepo(), config.Session{})

	t.Run("Relative base URL", func(t *testing.T) {
		_, err := apiclient.New("/api/", store)
		require.Error(t, err)
	})

	t.Run("Missing token store", func(t *testing.T) {
		_, err := apiclient.New("http://localhost:8000/api/", nil)
		require.Error(t, err)
	})

	t.Run("Base URL without trailing slash", func(t *testing.T) {
		f := setupTestFixture(t)
		client, err := apiclient.New(f.backend.URL()[:len(f.backend.URL())-1], f.store)
		require.NoError(t, err)

		f.client = client
		f.login(t)
		u, err := f.me(t)
		require.NoError(t, err)
		require.Equal(t, testUsername, u.Username)
	})
}

func TestAuthorize(t *testing.T) {
	t.Run("Bearer header on protected routes", func(t *testing.T) {
		f := setupTestFixture(t)
		tok := f.login(t)

		u, err := f.me(t)
		require.NoError(t, err)
		require.Equal(t, f.user.ID, u.ID)
		require.Equal(t, "Bearer "+tok.AccessToken, f.backend.LastAuthorization(fakebackend.KeyMe))
	})

	t.Run("No header without a stored token", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.me(t)
		require.ErrorIs(t, err, errors.ErrAuthExpired)
		require.Empty(t, f.backend.LastAuthorization(fakebackend.KeyMe))
	})

	t.Run("Credential routes are never authorised", func(t *testing.T) {
		f := setupTestFixture(t)
		tok := f.login(t)

		err := f.client.Post(context.Background(), apiclient.RouteJWTVerify, map[string]string{"token": tok.AccessToken}, nil)
		require.NoError(t, err)
		require.Empty(t, f.backend.LastAuthorization(fakebackend.KeyVerify))

		f.login(t)
		require.Empty(t, f.backend.LastAuthorization(fakebackend.KeyLogin))
	})
}

func TestRefreshProtocol(t *testing.T) {
	t.Run("Expired access token is refreshed once and the request resent once", func(t *testing.T) {
		f := setupTestFixture(t)
		old := f.login(t)
		f.backend.ExpireAccessTokens()

		u, err := f.me(t)
		require.NoError(t, err)
		require.Equal(t, testUsername, u.Username)

		require.Equal(t, 1, f.backend.Calls(fakebackend.KeyRefresh))
		require.Equal(t, 2, f.backend.Calls(fakebackend.KeyMe))
		require.Empty(t, f.backend.LastAuthorization(fakebackend.KeyRefresh))

		stored := f.store.Token(context.Background())
		require.NotNil(t, stored)
		require.NotEqual(t, old.AccessToken, stored.AccessToken)
		require.Equal(t, "Bearer "+stored.AccessToken, f.backend.LastAuthorization(fakebackend.KeyMe))
		require.Equal(t, old.RefreshToken, stored.RefreshToken)

		m := f.client.Metrics()
		require.Equal(t, float64(1), testutil.ToFloat64(m.Retries))
		require.Equal(t, float64(1), testutil.ToFloat64(m.Refreshes.WithLabelValues(apiclient.RefreshSucceeded)))
		require.Zero(t, f.terminationCount())
	})

	t.Run("Rotated refresh token is stored", func(t *testing.T) {
		f := setupTestFixture(t, fakebackend.WithRotation(true))
		old := f.login(t)
		f.backend.ExpireAccessTokens()

		_, err := f.me(t)
		require.NoError(t, err)

		stored := f.store.Token(context.Background())
		require.NotEqual(t, old.RefreshToken, stored.RefreshToken)

		// The rotated token keeps working
		f.backend.ExpireAccessTokens()
		_, err = f.me(t)
		require.NoError(t, err)
		require.Equal(t, 2, f.backend.Calls(fakebackend.KeyRefresh))
	})

	t.Run("Rejected resend is returned without a second refresh", func(t *testing.T) {
		f := setupTestFixture(t)
		tok := f.login(t)
		f.backend.FailNext(fakebackend.KeyMe, http.StatusUnauthorized)
		f.backend.FailNext(fakebackend.KeyMe, http.StatusUnauthorized)

		_, err := f.me(t)
		require.ErrorIs(t, err, errors.ErrUnauthorized)
		require.NotErrorIs(t, err, errors.ErrAuthExpired)
		require.Equal(t, http.StatusUnauthorized, apiclient.StatusCode(err))
		require.Equal(t, 1, f.backend.Calls(fakebackend.KeyRefresh))
		require.Equal(t, 2, f.backend.Calls(fakebackend.KeyMe))
		require.Zero(t, f.terminationCount())

		stored := f.store.Token(context.Background())
		require.NotNil(t, stored)
		require.Equal(t, tok.RefreshToken, stored.RefreshToken)
	})

	t.Run("Missing refresh token clears the access token and terminates", func(t *testing.T) {
		f := setupTestFixture(t)
		tok := f.login(t)
		require.NoError(t, f.store.Clear(context.Background()))
		require.NoError(t, f.store.SetTokens(context.Background(), &oauth2.Token{AccessToken: tok.AccessToken}))
		f.backend.ExpireAccessTokens()

		_, err := f.me(t)
		require.ErrorIs(t, err, errors.ErrAuthExpired)
		require.Equal(t, http.StatusUnauthorized, apiclient.StatusCode(err))
		require.Zero(t, f.backend.Calls(fakebackend.KeyRefresh))
		require.Nil(t, f.store.Token(context.Background()))
		require.Equal(t, 1, f.terminationCount())
		require.Equal(t, float64(1), testutil.ToFloat64(f.client.Metrics().Terminations.WithLabelValues(apiclient.ReasonNoRefreshToken)))
	})

	t.Run("Failed refresh clears both tokens and terminates", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		f.backend.ExpireAccessTokens()
		f.backend.RevokeRefreshTokens()

		_, err := f.me(t)
		require.ErrorIs(t, err, errors.ErrAuthExpired)
		require.Equal(t, 1, f.backend.Calls(fakebackend.KeyRefresh))
		require.Equal(t, 1, f.backend.Calls(fakebackend.KeyMe))
		require.Nil(t, f.store.Token(context.Background()))
		require.Equal(t, 1, f.terminationCount())

		m := f.client.Metrics()
		require.Equal(t, float64(1), testutil.ToFloat64(m.Refreshes.WithLabelValues(apiclient.RefreshFailed)))
		require.Equal(t, float64(1), testutil.ToFloat64(m.Terminations.WithLabelValues(apiclient.ReasonRefreshFailed)))
		require.Zero(t, testutil.ToFloat64(m.Retries))
	})

	t.Run("Rejected credentials are not refreshed", func(t *testing.T) {
		f := setupTestFixture(t)
		tok := f.login(t)

		err := f.client.Post(context.Background(), apiclient.RouteJWTCreate,
			map[string]string{"username": testUsername, "password": "wrong"}, nil)
		require.Equal(t, http.StatusUnauthorized, apiclient.StatusCode(err))
		require.ErrorIs(t, err, errors.ErrUnauthorized)
		require.NotErrorIs(t, err, errors.ErrAuthExpired)
		require.Zero(t, f.backend.Calls(fakebackend.KeyRefresh))
		require.Zero(t, f.terminationCount())
		require.Equal(t, tok.AccessToken, f.store.Token(context.Background()).AccessToken)
	})

	t.Run("Rejected refresh request is not refreshed again", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		f.backend.RevokeRefreshTokens()

		err := f.client.Refresh(context.Background())
		require.ErrorIs(t, err, errors.ErrAuthExpired)
		require.Equal(t, 1, f.backend.Calls(fakebackend.KeyRefresh))
		require.Zero(t, f.terminationCount())
		require.NotNil(t, f.store.Token(context.Background()))
	})

	t.Run("Request is not mutated by a retry", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		f.backend.ExpireAccessTokens()

		req := &apiclient.Request{Method: http.MethodGet, Path: apiclient.RouteUsersMe}
		var u users.User
		require.NoError(t, f.client.Do(context.Background(), req, &u))
		require.Equal(t, apiclient.Request{Method: http.MethodGet, Path: apiclient.RouteUsersMe}, *req)

		// A second send of the same request gets its own retry budget
		f.backend.ExpireAccessTokens()
		require.NoError(t, f.client.Do(context.Background(), req, &u))
		require.Equal(t, 2, f.backend.Calls(fakebackend.KeyRefresh))
	})
}

func TestNetworkFailure(t *testing.T) {
	f := setupTestFixture(t)
	tok := f.login(t)
	f.backend.Close()

	_, err := f.me(t)
	require.ErrorIs(t, err, errors.ErrNetworkFailure)
	require.Zero(t, apiclient.StatusCode(err))
	require.Zero(t, f.terminationCount())
	require.Equal(t, tok.AccessToken, f.store.Token(context.Background()).AccessToken)
	require.Equal(t, float64(1), testutil.ToFloat64(f.client.Metrics().Requests.WithLabelValues(http.MethodGet, "error")))
}

func TestAPIError(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	t.Run("Field errors", func(t *testing.T) {
		_, err := f.me(t)
		require.NoError(t, err)

		err = f.client.Post(context.Background(), apiclient.RouteUsers,
			map[string]string{"username": testUsername, "email": "a@example.com", "password": "whatever1"}, nil)
		require.ErrorIs(t, err, errors.ErrValidation)

		var apiErr *apiclient.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		require.Equal(t, []string{"A user with that username already exists."}, apiErr.Fields["username"])
	})

	t.Run("Detail", func(t *testing.T) {
		err := f.client.Patch(context.Background(), apiclient.IssuePath(999), map[string]string{"status": "CLOSED"}, nil)
		require.ErrorIs(t, err, errors.ErrNotFound)

		var apiErr *apiclient.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, "No Issue matches the given query.", apiErr.Detail)
	})

	t.Run("Forbidden", func(t *testing.T) {
		f.backend.FailNext(fakebackend.KeyTeams, http.StatusForbidden)
		err := f.client.Get(context.Background(), apiclient.RouteTeams, nil, nil)
		require.ErrorIs(t, err, errors.ErrForbidden)
	})
}

type recordingTransport struct {
	mu      sync.Mutex
	headers []http.Header
}

func (rt *recordingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	rt.headers = append(rt.headers, r.Header.Clone())
	rt.mu.Unlock()
	return http.DefaultTransport.RoundTrip(r)
}

func TestRequestID(t *testing.T) {
	f := setupTestFixture(t)
	rt := &recordingTransport{}
	client, err := apiclient.New(f.backend.URL(), f.store, apiclient.WithTransport(rt))
	require.NoError(t, err)
	f.client = client
	f.login(t)

	_, err = f.me(t)
	require.NoError(t, err)

	require.Len(t, rt.headers, 2)
	seen := map[string]bool{}
	for _, h := range rt.headers {
		id := h.Get(apiclient.HeaderRequestID)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		require.False(t, seen[id])
		seen[id] = true
	}
}
