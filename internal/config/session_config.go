package config

import "time"

type SessionConfig interface {
	GetAccessTokenLifetime() time.Duration
	GetRefreshTokenLifetime() time.Duration
	GetSearchDebounce() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetAccessTokenLifetime() time.Duration {
	return 1 * time.Hour
}

func (Session) GetRefreshTokenLifetime() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}

func (Session) GetSearchDebounce() time.Duration {
	return GetEnvDuration("SEARCH_DEBOUNCE", 500*time.Millisecond)
}
