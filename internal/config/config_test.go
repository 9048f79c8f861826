package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/jrsteele09/bastion-hub/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	for _, name := range []string{"API_URL", "NEXT_PUBLIC_API_URL", "PORT", "AUTH_GRACE_DELAY", "SESSION_STORAGE", "API_SHARED_REFRESH"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}

	c, err := config.New()
	require.NoError(t, err)
	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "http://localhost:8000/api", c.GetAPIBaseURL())
	require.Equal(t, 100*time.Millisecond, c.GetAuthGraceDelay())
	require.Equal(t, config.StorageFile, c.GetStorageBackend())
	require.False(t, c.GetSharedRefresh())
}

func TestNew_FromEnv(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("API_URL", "https://api.example.com/api/")
	t.Setenv("AUTH_GRACE_DELAY", "250ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	c, err := config.New()
	require.NoError(t, err)
	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, "https://api.example.com/api", c.GetAPIBaseURL())
	require.Equal(t, 250*time.Millisecond, c.GetAuthGraceDelay())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example.com"))
	require.False(t, c.GetAllowedOrigins().IsAllowedOrigin("https://c.example.com"))
}
