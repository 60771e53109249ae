package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/issue-tracker-client/tokens"
)

var _ tokens.Repo = (*FakeTokenRepo)(nil)

type entry struct {
	value     string
	expiresAt time.Time
	secure    bool
}

// FakeTokenRepo keeps credentials in memory only; used by tests and TOKEN_STORE=memory.
type FakeTokenRepo struct {
	entries map[string]entry
	lock    sync.RWMutex
	nowFunc func() time.Time
}

func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{
		entries: make(map[string]entry),
		nowFunc: time.Now,
	}
}

// WithNowFunc replaces the clock used for expiry checks
func (r *FakeTokenRepo) WithNowFunc(now func() time.Time) *FakeTokenRepo {
	r.nowFunc = now
	return r
}

func (r *FakeTokenRepo) Get(_ context.Context, key string) (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	e, ok := r.entries[key]
	if !ok {
		return "", tokens.ErrNotFound
	}
	if !e.expiresAt.IsZero() && !r.nowFunc().Before(e.expiresAt) {
		return "", tokens.ErrNotFound
	}
	return e.value, nil
}

func (r *FakeTokenRepo) Set(_ context.Context, key, value string, opts tokens.SetOptions) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	e := entry{value: value, secure: opts.Secure}
	if opts.TTL > 0 {
		e.expiresAt = r.nowFunc().Add(opts.TTL)
	}
	r.entries[key] = e
	return nil
}

func (r *FakeTokenRepo) Delete(_ context.Context, key string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.entries, key)
	return nil
}

// ExpiresAt exposes the stored expiry of a key for assertions
func (r *FakeTokenRepo) ExpiresAt(key string) (time.Time, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	e, ok := r.entries[key]
	return e.expiresAt, ok
}

// IsSecure exposes the stored secure flag of a key for assertions
func (r *FakeTokenRepo) IsSecure(key string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.entries[key].secure
}

// Len returns the number of stored keys, expired or not
func (r *FakeTokenRepo) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.entries)
}
