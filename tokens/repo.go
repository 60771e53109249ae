package tokens

import (
	"context"
	"time"

	"github.com/jrsteele09/issue-tracker-client/internal/errors"
)

var (
	// ErrNotFound is returned by a Repo for a missing or expired key
	ErrNotFound = errors.ErrNotFound
	// ErrInsecureStore is returned when a Secure value is written to a repo that
	// cannot protect it (no encryption, no TLS)
	ErrInsecureStore = errors.New("token repo cannot store secure values")
)

// SetOptions mirror the attributes of a browser cookie that matter for a credential:
// how long it lives and whether it may only travel/rest protected.
type SetOptions struct {
	TTL    time.Duration // Zero means no expiry
	Secure bool
}

// Repo is a cookie-like persisted key/value store for credentials.
// Expired keys behave exactly like missing keys.
type Repo interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, opts SetOptions) error
	Delete(ctx context.Context, key string) error
}
