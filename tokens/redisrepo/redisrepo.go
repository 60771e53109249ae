package redisrepo

import (
	"context"
	"fmt"

	"github.com/jrsteele09/issue-tracker-client/internal/errors"
	"github.com/jrsteele09/issue-tracker-client/tokens"
	"github.com/redis/go-redis/v9"
)

var _ tokens.Repo = (*RedisRepo)(nil)

const defaultPrefix = "issuectl:session:"

// RedisRepo stores credentials in Redis with native key expiry, letting several
// processes on one machine or cluster share a login.
type RedisRepo struct {
	client *redis.Client
	prefix string
	tls    bool
}

type Option func(*RedisRepo)

// WithPrefix namespaces the keys, e.g. per user profile
func WithPrefix(prefix string) Option {
	return func(r *RedisRepo) {
		r.prefix = prefix
	}
}

// New wraps an existing client
func New(client *redis.Client, options ...Option) *RedisRepo {
	r := &RedisRepo{
		client: client,
		prefix: defaultPrefix,
		tls:    client.Options().TLSConfig != nil,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// NewFromURL parses a redis:// or rediss:// URL
func NewFromURL(url string, options ...Option) (*RedisRepo, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("[redisrepo NewFromURL] %w", err)
	}
	return New(redis.NewClient(opts), options...), nil
}

func (r *RedisRepo) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", tokens.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("[RedisRepo Get] %s: %w", key, err)
	}
	return v, nil
}

// Set writes the value with its TTL. Secure values require a TLS connection.
func (r *RedisRepo) Set(ctx context.Context, key, value string, opts tokens.SetOptions) error {
	if opts.Secure && !r.tls {
		return errors.Wrapf(tokens.ErrInsecureStore, "[RedisRepo Set] %s", key)
	}
	if err := r.client.Set(ctx, r.prefix+key, value, opts.TTL).Err(); err != nil {
		return fmt.Errorf("[RedisRepo Set] %s: %w", key, err)
	}
	return nil
}

func (r *RedisRepo) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("[RedisRepo Delete] %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool
func (r *RedisRepo) Close() error {
	return r.client.Close()
}
