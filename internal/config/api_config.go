package config

import (
	"strings"
	"time"
)

type APIConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
	GetSharedRefresh() bool
}

type API struct {
	// NEXT_PUBLIC_API_URL is still honoured so existing deployment env files keep working.
	BaseURL        string        `env:"API_URL,NEXT_PUBLIC_API_URL" env-default:"http://localhost:8000/api"`
	RequestTimeout time.Duration `env:"API_REQUEST_TIMEOUT" env-default:"30s"`
	SharedRefresh  bool          `env:"API_SHARED_REFRESH" env-default:"false"`
}

var _ APIConfig = API{}

func (a API) GetAPIBaseURL() string {
	return strings.TrimRight(a.BaseURL, "/")
}

func (a API) GetRequestTimeout() time.Duration {
	return a.RequestTimeout
}

// GetSharedRefresh reports whether concurrent 401s share a single refresh call.
func (a API) GetSharedRefresh() bool {
	return a.SharedRefresh
}
