package filerepo

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jrsteele09/issue-tracker-client/internal/errors"
	"github.com/jrsteele09/issue-tracker-client/tokens"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

var _ tokens.Repo = (*FileRepo)(nil)

var ErrDecrypt = errors.New("cannot decrypt token file (wrong passphrase?)")

const (
	fileMode = 0o600
	dirMode  = 0o700

	// scrypt parameters recommended for interactive logins
	scryptN   = 1 << 15
	scryptR   = 8
	scryptP   = 1
	keyLength = 32
	saltSize  = 16
	nonceSize = 24
)

type record struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Secure    bool      `json:"secure,omitempty"`
}

// envelope is the on-disk format when a passphrase is configured
type envelope struct {
	Salt []byte `json:"salt"`
	Box  []byte `json:"box"` // nonce || secretbox(records)
}

// FileRepo persists credentials in a single JSON file, optionally sealed with a
// passphrase-derived key. Secure values are only accepted when sealed.
type FileRepo struct {
	path       string
	passphrase string
	nowFunc    func() time.Time

	mu      sync.Mutex
	records map[string]record
	loaded  bool
}

type Option func(*FileRepo)

// WithPassphrase enables at-rest encryption
func WithPassphrase(passphrase string) Option {
	return func(r *FileRepo) {
		r.passphrase = passphrase
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(r *FileRepo) {
		r.nowFunc = now
	}
}

func New(path string, options ...Option) *FileRepo {
	r := &FileRepo{
		path:    path,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *FileRepo) Get(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return "", err
	}
	rec, ok := r.records[key]
	if !ok {
		return "", tokens.ErrNotFound
	}
	if !rec.ExpiresAt.IsZero() && !r.nowFunc().Before(rec.ExpiresAt) {
		return "", tokens.ErrNotFound
	}
	return rec.Value, nil
}

func (r *FileRepo) Set(_ context.Context, key, value string, opts tokens.SetOptions) error {
	if opts.Secure && r.passphrase == "" {
		return errors.Wrapf(tokens.ErrInsecureStore, "[FileRepo Set] %s", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return err
	}
	rec := record{Value: value, Secure: opts.Secure}
	if opts.TTL > 0 {
		rec.ExpiresAt = r.nowFunc().Add(opts.TTL)
	}
	r.records[key] = rec
	return r.save()
}

func (r *FileRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return err
	}
	if _, ok := r.records[key]; !ok {
		return nil
	}
	delete(r.records, key)
	return r.save()
}

func (r *FileRepo) load() error {
	if r.loaded {
		return nil
	}
	r.records = make(map[string]record)

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		r.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("[FileRepo load] %w", err)
	}

	if r.passphrase != "" {
		if data, err = r.open(data); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(data, &r.records); err != nil {
		return fmt.Errorf("[FileRepo load] decode %s: %w", r.path, err)
	}
	r.loaded = true
	return nil
}

func (r *FileRepo) save() error {
	// Drop expired records so the file does not accumulate dead credentials
	now := r.nowFunc()
	for k, rec := range r.records {
		if !rec.ExpiresAt.IsZero() && !now.Before(rec.ExpiresAt) {
			delete(r.records, k)
		}
	}

	data, err := json.Marshal(r.records)
	if err != nil {
		return fmt.Errorf("[FileRepo save] encode: %w", err)
	}
	if r.passphrase != "" {
		if data, err = r.seal(data); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(r.path), dirMode); err != nil {
		return fmt.Errorf("[FileRepo save] %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".tokens-*")
	if err != nil {
		return fmt.Errorf("[FileRepo save] %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileRepo save] write: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileRepo save] chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[FileRepo save] close: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("[FileRepo save] rename: %w", err)
	}
	return nil
}

func (r *FileRepo) key(salt []byte) (*[keyLength]byte, error) {
	k, err := scrypt.Key([]byte(r.passphrase), salt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("[FileRepo key] %w", err)
	}
	var key [keyLength]byte
	copy(key[:], k)
	return &key, nil
}

func (r *FileRepo) seal(plain []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("[FileRepo seal] salt: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("[FileRepo seal] nonce: %w", err)
	}
	key, err := r.key(salt)
	if err != nil {
		return nil, err
	}
	box := secretbox.Seal(nonce[:], plain, &nonce, key)
	return json.Marshal(envelope{Salt: salt, Box: box})
}

func (r *FileRepo) open(data []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || len(env.Box) < nonceSize {
		return nil, ErrDecrypt
	}
	key, err := r.key(env.Salt)
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], env.Box[:nonceSize])
	plain, ok := secretbox.Open(nil, env.Box[nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plain, nil
}
