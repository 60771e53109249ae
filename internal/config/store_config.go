package config

import (
	"os"
	"path/filepath"
)

type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreFile   StoreKind = "file"
	StoreRedis  StoreKind = "redis"
)

type StoreConfig interface {
	GetTokenStore() StoreKind
	GetTokenFile() string
	GetTokenPassphrase() string
	GetRedisURL() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetTokenStore() StoreKind {
	switch kind := StoreKind(GetEnv("TOKEN_STORE", string(StoreFile))); kind {
	case StoreMemory, StoreFile, StoreRedis:
		return kind
	default:
		return StoreFile
	}
}

func (Store) GetTokenFile() string {
	if f := os.Getenv("TOKEN_FILE"); f != "" {
		return f
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".issuectl", "tokens.json")
	}
	return filepath.Join(home, ".issuectl", "tokens.json")
}

func (Store) GetTokenPassphrase() string {
	return GetEnv("TOKEN_PASSPHRASE", "")
}

func (Store) GetRedisURL() string {
	return GetEnv("REDIS_URL", "redis://localhost:6379/0")
}
