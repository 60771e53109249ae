package session

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/jrsteele09/issue-tracker-client/apiclient"
	"github.com/jrsteele09/issue-tracker-client/internal/errors"
	"github.com/jrsteele09/issue-tracker-client/internal/validator"
	"github.com/jrsteele09/issue-tracker-client/tokens"
	"github.com/jrsteele09/issue-tracker-client/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// TokenStore is the credential store a Manager owns
type TokenStore interface {
	apiclient.TokenStore
	OnChange(fn func(*oauth2.Token)) (cancel func())
}

// State is a snapshot of the session
type State struct {
	Authenticated bool
	CurrentUser   *users.User
	// Loading is set until the startup verification has resolved
	Loading bool
}

type identityFetch struct {
	done chan struct{}
	user *users.User
	err  error
}

// Manager is the single owner of the session. Other components read it through
// State and issue API calls through Client.
type Manager struct {
	store  TokenStore
	client *apiclient.Client

	mu         sync.RWMutex
	state      State
	generation int
	live       bool
	identity   *identityFetch

	subsMu  sync.Mutex
	subs    map[int]func(Event)
	nextSub int

	cancelWatch func()
}

type Option func(*options)

type options struct {
	clientOptions []apiclient.Option
}

// WithClientOptions passes options through to the underlying API client
func WithClientOptions(opts ...apiclient.Option) Option {
	return func(o *options) {
		o.clientOptions = append(o.clientOptions, opts...)
	}
}

// New creates a manager for the API rooted at baseURL. The session starts
// unauthenticated and loading until VerifySession runs.
func New(baseURL string, store TokenStore, opts ...Option) (*Manager, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{
		store: store,
		state: State{Loading: true},
		subs:  make(map[int]func(Event)),
	}

	clientOptions := append(o.clientOptions, apiclient.WithTerminationHandler(m.terminated))
	client, err := apiclient.New(baseURL, store, clientOptions...)
	if err != nil {
		return nil, errors.Wrapf(err, "[session New]")
	}
	m.client = client
	m.cancelWatch = store.OnChange(m.tokensChanged)
	return m, nil
}

// Close detaches the manager from its token store
func (m *Manager) Close() {
	if m.cancelWatch != nil {
		m.cancelWatch()
	}
}

func (m *Manager) Client() *apiclient.Client {
	return m.client
}

// State returns a copy of the current session
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.state
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		s.CurrentUser = &u
	}
	return s
}

// CurrentUser returns the loaded identity or errors.ErrNotAuthenticated
func (m *Manager) CurrentUser() (*users.User, error) {
	s := m.State()
	if !s.Authenticated || s.CurrentUser == nil {
		return nil, errors.ErrNotAuthenticated
	}
	return s.CurrentUser, nil
}

// WaitIdentity blocks until the identity fetch started by Login has finished
func (m *Manager) WaitIdentity(ctx context.Context) (*users.User, error) {
	m.mu.RLock()
	f := m.identity
	m.mu.RUnlock()
	if f == nil {
		return m.CurrentUser()
	}

	select {
	case <-f.done:
		if f.err != nil {
			return nil, f.err
		}
		return m.CurrentUser()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Login exchanges credentials for a token pair. EventAuthenticated is published as
// soon as the pair is stored; the identity follows asynchronously.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	var pair tokenPair
	err := m.client.Post(ctx, apiclient.RouteJWTCreate, credentials{Username: username, Password: password}, &pair)
	if err == nil && pair.Access == "" {
		err = errors.New("response has no access token")
	}
	if err != nil {
		m.setUnauthenticated()
		if apiclient.StatusCode(err) == http.StatusUnauthorized {
			return fmt.Errorf("[Manager Login] %w: %w", errors.ErrInvalidCredentials, err)
		}
		return fmt.Errorf("[Manager Login] %w: %w", errors.ErrUnknownLoginFailure, err)
	}

	if err := m.store.SetTokens(ctx, &oauth2.Token{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		TokenType:    "Bearer",
	}); err != nil {
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			log.Err(clearErr).Msg("failed to clear partially stored tokens")
		}
		return fmt.Errorf("[Manager Login] %w: %w", errors.ErrUnknownLoginFailure, err)
	}

	f := &identityFetch{done: make(chan struct{})}
	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.live = true
	m.state = State{Authenticated: true}
	m.identity = f
	m.mu.Unlock()

	log.Info().Str("username", username).Msg("logged in")
	m.publish(Event{Kind: EventAuthenticated, View: ViewLanding})

	go m.loadIdentity(context.WithoutCancel(ctx), gen, f)
	return nil
}

func (m *Manager) loadIdentity(ctx context.Context, gen int, f *identityFetch) {
	defer close(f.done)

	user, err := m.me(ctx)
	if err != nil {
		f.err = fmt.Errorf("[Manager loadIdentity] %w", err)
		log.Err(err).Msg("failed to load identity")
		m.end(ctx, gen, Event{Kind: EventSessionTerminated, View: ViewEntry, Err: f.err})
		return
	}

	m.mu.Lock()
	if m.generation != gen || !m.live {
		m.mu.Unlock()
		f.err = errors.ErrNotAuthenticated
		return
	}
	m.state.CurrentUser = user
	m.mu.Unlock()

	f.user = user
	m.publish(Event{Kind: EventIdentityLoaded, View: ViewLanding, User: user})
}

// VerifySession restores a persisted session at startup. When an access token is
// stored it is verified and the identity loaded; any failure logs the session out.
// A stored refresh token without an access token is exchanged first. Loading is
// always cleared on return.
func (m *Manager) VerifySession(ctx context.Context) error {
	defer func() {
		m.mu.Lock()
		m.state.Loading = false
		m.mu.Unlock()
	}()

	tok := m.store.Token(ctx)
	if tok == nil {
		return nil
	}
	if tok.AccessToken == "" {
		if err := m.client.Refresh(ctx); err != nil {
			m.Logout(ctx)
			return errors.Wrapf(err, "[Manager VerifySession]")
		}
		if tok = m.store.Token(ctx); tok == nil || tok.AccessToken == "" {
			m.Logout(ctx)
			return fmt.Errorf("[Manager VerifySession] %w", errors.ErrNotAuthenticated)
		}
	}

	if err := m.client.Post(ctx, apiclient.RouteJWTVerify, map[string]string{"token": tok.AccessToken}, nil); err != nil {
		log.Warn().Err(err).Msg("stored session failed verification")
		m.Logout(ctx)
		return fmt.Errorf("[Manager VerifySession] %w: %w", errors.ErrAuthExpired, err)
	}

	user, err := m.me(ctx)
	if err != nil {
		m.Logout(ctx)
		return errors.Wrapf(err, "[Manager VerifySession]")
	}
	// The identity must be the account the stored token was issued to
	if id := tokens.UserID(tok.AccessToken); id != "" && id != strconv.Itoa(user.ID) {
		log.Warn().Str("token_user", id).Int("user", user.ID).Msg("stored token belongs to another account")
		m.Logout(ctx)
		return fmt.Errorf("[Manager VerifySession] %w: token issued to user %s, identity is user %d", errors.ErrAuthExpired, id, user.ID)
	}

	m.mu.Lock()
	m.generation++
	m.live = true
	m.state.Authenticated = true
	m.state.CurrentUser = user
	m.identity = nil
	m.mu.Unlock()

	log.Debug().Str("username", user.Username).Msg("session restored")
	m.publish(Event{Kind: EventIdentityLoaded, View: ViewLanding, User: user})
	return nil
}

// Logout clears both tokens and the identity. Calling it when already logged out
// is harmless and still publishes EventLoggedOut.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		log.Err(err).Msg("failed to clear tokens on logout")
	}
	m.setUnauthenticated()
	m.publish(Event{Kind: EventLoggedOut, View: ViewEntry})
}

// Register creates an account. The session is left untouched; backend rejections
// are returned as *apiclient.APIError.
func (m *Manager) Register(ctx context.Context, req users.RegisterRequest) (*users.User, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	var created users.User
	if err := m.client.Post(ctx, apiclient.RouteUsers, req, &created); err != nil {
		return nil, errors.Wrapf(err, "[Manager Register]")
	}
	return &created, nil
}

func (m *Manager) me(ctx context.Context) (*users.User, error) {
	var u users.User
	if err := m.client.Get(ctx, apiclient.RouteUsersMe, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// terminated is called by the client after the refresh protocol has cleared the
// tokens
func (m *Manager) terminated(ctx context.Context, reason error) {
	m.mu.RLock()
	gen := m.generation
	m.mu.RUnlock()
	m.end(ctx, gen, Event{Kind: EventSessionTerminated, View: ViewEntry, Err: reason})
}

// end drops an authenticated session of generation gen and publishes e. Nothing
// happens when that session is already gone.
func (m *Manager) end(ctx context.Context, gen int, e Event) {
	m.mu.Lock()
	if m.generation != gen || !m.live {
		m.mu.Unlock()
		return
	}
	m.generation++
	m.live = false
	m.state.Authenticated = false
	m.state.CurrentUser = nil
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		log.Err(err).Msg("failed to clear tokens on termination")
	}
	log.Warn().Err(e.Err).Msg("session terminated")
	m.publish(e)
}

func (m *Manager) setUnauthenticated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.live = false
	m.state.Authenticated = false
	m.state.CurrentUser = nil
	m.identity = nil
}

// tokensChanged keeps authenticated implying a stored access token. Events for a
// dropped session are published by end.
func (m *Manager) tokensChanged(tok *oauth2.Token) {
	if tok != nil && tok.AccessToken != "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Authenticated = false
	m.state.CurrentUser = nil
}
