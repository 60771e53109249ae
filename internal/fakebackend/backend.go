// Package fakebackend is an in-process issue tracker API for tests. It speaks the
// same JWT and REST dialect as the real backend and records every call so tests
// can assert on the refresh protocol.
package fakebackend

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/jrsteele09/issue-tracker-client/issues"
	"github.com/jrsteele09/issue-tracker-client/teams"
	"github.com/jrsteele09/issue-tracker-client/users"
)

// Route keys used by Calls, FailNext and LastAuthorization. A key is the method
// and the request path; see IssueKey for the per-issue routes.
const (
	KeyLogin    = "POST /api/auth/jwt/create/"
	KeyRefresh  = "POST /api/auth/jwt/refresh/"
	KeyVerify   = "POST /api/auth/jwt/verify/"
	KeyRegister = "POST /api/auth/users/"
	KeyMe       = "GET /api/auth/users/me/"
	KeyIssues   = "GET /api/issues/"
	KeyMyIssues = "GET /api/issues/my_issues/"
	KeyAllUsers = "GET /api/issues/all_users/"
	KeyTeams    = "GET /api/teams/"
)

type account struct {
	user     users.User
	password string
}

type Backend struct {
	server *httptest.Server
	secret []byte

	mu            sync.Mutex
	accounts      map[string]*account
	issues        map[int]*issues.Issue
	teams         map[int]*teams.Team
	nextID        int
	validAccess   map[string]bool
	revoked       map[string]bool
	rotate        bool
	accessTTL     time.Duration
	refreshTTL    time.Duration
	failNext      map[string][]int
	calls         map[string]int
	authorization map[string]string
	meAs          *users.User
	now           func() time.Time
}

type Option func(*Backend)

// WithRotation makes the refresh endpoint issue a new refresh token too
func WithRotation(rotate bool) Option {
	return func(b *Backend) {
		b.rotate = rotate
	}
}

func WithAccessTTL(d time.Duration) Option {
	return func(b *Backend) {
		b.accessTTL = d
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// New starts a backend. The API is rooted at URL().
func New(options ...Option) *Backend {
	b := &Backend{
		secret:        []byte("fakebackend-signing-key"),
		accounts:      make(map[string]*account),
		issues:        make(map[int]*issues.Issue),
		teams:         make(map[int]*teams.Team),
		nextID:        1,
		validAccess:   make(map[string]bool),
		revoked:       make(map[string]bool),
		accessTTL:     time.Hour,
		refreshTTL:    7 * 24 * time.Hour,
		failNext:      make(map[string][]int),
		calls:         make(map[string]int),
		authorization: make(map[string]string),
		now:           time.Now,
	}
	for _, opt := range options {
		opt(b)
	}
	b.server = httptest.NewServer(b.Router())
	return b
}

// URL is the API base URL, ending in /api/
func (b *Backend) URL() string {
	return b.server.URL + "/api/"
}

func (b *Backend) Close() {
	b.server.Close()
}

// AddUser creates an account and returns it
func (b *Backend) AddUser(username, password string, staff bool) users.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(username, username+"@example.com", password, staff)
}

func (b *Backend) addUserLocked(username, email, password string, staff bool) users.User {
	u := users.User{ID: b.nextID, Username: username, Email: email, IsStaff: staff}
	b.nextID++
	b.accounts[username] = &account{user: u, password: password}
	return u
}

// AddIssue stores an issue owned by owner and returns it with its ID
func (b *Backend) AddIssue(owner users.User, title string, status issues.Status) issues.Issue {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := owner.Simple()
	now := b.now()
	is := &issues.Issue{
		ID:        b.nextID,
		Title:     title,
		Status:    status,
		Owner:     &o,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.nextID++
	b.issues[is.ID] = is
	return *is
}

// Issue returns the stored copy of an issue
func (b *Backend) Issue(id int) (issues.Issue, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	is, ok := b.issues[id]
	if !ok {
		return issues.Issue{}, false
	}
	return *is, true
}

// ExpireAccessTokens rejects every access token issued so far
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.validAccess = make(map[string]bool)
}

// RevokeRefreshTokens rejects every refresh token issued so far
func (b *Backend) RevokeRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked["*"] = true
}

// FailNext queues a status for the next call to key. Queued statuses are used
// one call at a time, in order.
func (b *Backend) FailNext(key string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext[key] = append(b.failNext[key], status)
}

// AnswerMeAs makes auth/users/me/ describe u whatever token the request carries
func (b *Backend) AnswerMeAs(u users.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meAs = &u
}

// Calls returns how many requests key has received
func (b *Backend) Calls(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key]
}

// LastAuthorization is the Authorization header of the latest request to key
func (b *Backend) LastAuthorization(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.authorization[key]
}

// IssueKey is the key of a request to one issue, e.g. IssueKey("PATCH", 3)
func IssueKey(method string, id int) string {
	return fmt.Sprintf("%s /api/issues/%d/", method, id)
}

// record counts every call before routing and answers scripted failures
func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		b.mu.Lock()
		b.calls[key]++
		b.authorization[key] = r.Header.Get("Authorization")
		var status int
		queued := b.failNext[key]
		fail := len(queued) > 0
		if fail {
			status = queued[0]
			b.failNext[key] = queued[1:]
		}
		b.mu.Unlock()

		if fail {
			writeDetail(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}
