package fakebackend

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/issue-tracker-client/users"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type claims struct {
	TokenType string `json:"token_type"`
	UserID    int    `json:"user_id"`
	jwt.RegisteredClaims
}

type contextKey string

const contextKeyUser contextKey = "user"

func (b *Backend) mint(u users.User, tokenType string, ttl time.Duration) (string, string, error) {
	jti := uuid.NewString()
	now := b.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		TokenType: tokenType,
		UserID:    u.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.Itoa(u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := tok.SignedString(b.secret)
	if err != nil {
		return "", "", fmt.Errorf("[Backend mint] %w", err)
	}
	return signed, jti, nil
}

// issueAccess mints an access token and marks it valid. b.mu must be held.
func (b *Backend) issueAccess(u users.User) (string, error) {
	signed, jti, err := b.mint(u, tokenTypeAccess, b.accessTTL)
	if err != nil {
		return "", err
	}
	b.validAccess[jti] = true
	return signed, nil
}

func (b *Backend) issueRefresh(u users.User) (string, error) {
	signed, _, err := b.mint(u, tokenTypeRefresh, b.refreshTTL)
	return signed, err
}

// parse validates raw and returns its claims. b.mu must be held.
func (b *Backend) parse(raw, tokenType string) (*claims, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(raw, c, func(t *jwt.Token) (interface{}, error) {
		return b.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(b.now),
	)
	if err != nil {
		return nil, err
	}
	if c.TokenType != tokenType {
		return nil, fmt.Errorf("wrong token type %q", c.TokenType)
	}
	switch tokenType {
	case tokenTypeAccess:
		if !b.validAccess[c.ID] {
			return nil, fmt.Errorf("access token expired")
		}
	case tokenTypeRefresh:
		if b.revoked["*"] || b.revoked[c.ID] {
			return nil, fmt.Errorf("refresh token revoked")
		}
	}
	return c, nil
}

func (b *Backend) userByID(id int) (users.User, bool) {
	for _, a := range b.accounts {
		if a.user.ID == id {
			return a.user, true
		}
	}
	return users.User{}, false
}

// requireAuth validates the bearer access token and puts the user in the context
func (b *Backend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}

		b.mu.Lock()
		c, err := b.parse(parts[1], tokenTypeAccess)
		var u users.User
		ok := false
		if err == nil {
			u, ok = b.userByID(c.UserID)
		}
		b.mu.Unlock()
		if !ok {
			writeTokenInvalid(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKeyUser, u)))
	})
}

func currentUser(r *http.Request) users.User {
	u, _ := r.Context().Value(contextKeyUser).(users.User)
	return u
}
