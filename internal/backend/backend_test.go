package backend_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/bastion-hub/internal/backend"
	"github.com/jrsteele09/bastion-hub/internal/config"
	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/jrsteele09/bastion-hub/storage"
	"github.com/stretchr/testify/require"
)

func openWith(t *testing.T, name, secret string) *backend.Backend {
	t.Helper()
	t.Setenv("SESSION_STORAGE", name)
	t.Setenv("SESSION_SECRET", secret)
	t.Setenv("FOLDER", t.TempDir())
	cfg, err := config.New()
	require.NoError(t, err)

	b, err := backend.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Close()) })
	return b
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		hasTTL  bool
	}{
		{"memory", config.StorageMemory, true},
		{"file", config.StorageFile, false},
		{"sqlite", config.StorageSQLite, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := openWith(t, tt.backend, "")
			require.Equal(t, tt.hasTTL, b.TTL != nil)

			ctx := context.Background()
			require.NoError(t, b.Sessions.Set(ctx, "k", []byte("v")))
			v, err := b.Sessions.Get(ctx, "k")
			require.NoError(t, err)
			require.Equal(t, []byte("v"), v)
		})
	}
}

func TestOpen_SealsSessionsWhenSecretSet(t *testing.T) {
	b := openWith(t, config.StorageMemory, "s3cret")
	require.IsType(t, &storage.SealedStore{}, b.Sessions)

	ctx := context.Background()
	require.NoError(t, b.Sessions.Set(ctx, "k", []byte("token")))

	raw, err := b.TTL.Get(ctx, "k")
	require.NoError(t, err)
	require.NotContains(t, string(raw), "token")
}

func TestOpen_UnknownBackend(t *testing.T) {
	t.Setenv("SESSION_STORAGE", "etcd")
	cfg, err := config.New()
	require.NoError(t, err)

	_, err = backend.Open(context.Background(), cfg)
	require.ErrorIs(t, err, errors.ErrUnsupported)
}
