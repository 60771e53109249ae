package config

import (
	"strings"
	"time"
)

type APIConfig interface {
	GetAPIBaseURL() string
	GetHTTPTimeout() time.Duration
	GetTracingEnabled() bool
}

type API struct{}

var _ APIConfig = API{}

// GetAPIBaseURL returns the backend root, always with a trailing slash so relative
// endpoint paths resolve beneath it.
func (API) GetAPIBaseURL() string {
	base := GetEnv("ISSUES_API_URL", "http://localhost:8000/api/")
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func (API) GetHTTPTimeout() time.Duration {
	return GetEnvDuration("HTTP_TIMEOUT", 30*time.Second)
}

func (API) GetTracingEnabled() bool {
	return GetEnvBool("OTEL_ENABLED", false)
}
