package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/jrsteele09/bastion-hub/storage"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "bastion-auth")
	require.ErrorIs(t, err, errors.ErrNotFound)

	require.NoError(t, s.Set(ctx, "bastion-auth", []byte(`{"state":{}}`)))
	got, err := s.Get(ctx, "bastion-auth")
	require.NoError(t, err)
	require.Equal(t, `{"state":{}}`, string(got))

	require.NoError(t, s.Set(ctx, "bastion-auth", []byte(`{"state":{"isAuthenticated":true}}`)))
	got, err = s.Get(ctx, "bastion-auth")
	require.NoError(t, err)
	require.Equal(t, `{"state":{"isAuthenticated":true}}`, string(got))

	require.NoError(t, s.Remove(ctx, "bastion-auth"))
	require.NoError(t, s.Remove(ctx, "bastion-auth"))
	_, err = s.Get(ctx, "bastion-auth")
	require.ErrorIs(t, err, errors.ErrNotFound)

	require.ErrorIs(t, s.Set(ctx, "", []byte("x")), errors.ErrInvalidKey)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, storage.NewMemoryStore())
}

func TestMemoryStore_TTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	storage.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { storage.NowTimeFunc = time.Now })

	s := storage.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.SetWithTTL(ctx, "redirect:abc", []byte("/hub/clients"), time.Minute))

	_, err := s.Get(ctx, "redirect:abc")
	require.NoError(t, err)
	require.Equal(t, []string{"redirect:abc"}, s.Keys())

	now = now.Add(time.Minute)
	_, err = s.Get(ctx, "redirect:abc")
	require.ErrorIs(t, err, errors.ErrNotFound)
	require.Empty(t, s.Keys())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := storage.NewMemoryStore()
	ctx := context.Background()
	value := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
}

func TestFileStore(t *testing.T) {
	s, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "bastion-auth:7f3a", []byte("persisted")))

	second, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	got, err := second.Get(ctx, "bastion-auth:7f3a")
	require.NoError(t, err)
	require.Equal(t, "persisted", string(got))
}

func TestSealedStore(t *testing.T) {
	inner := storage.NewMemoryStore()
	s, err := storage.Sealed(inner, "correct horse battery staple")
	require.NoError(t, err)
	exerciseStore(t, s)

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "bastion-auth", []byte(`{"access":"A1"}`)))

	raw, err := inner.Get(ctx, "bastion-auth")
	require.NoError(t, err)
	require.NotContains(t, string(raw), "A1")

	t.Run("wrong secret", func(t *testing.T) {
		other, err := storage.Sealed(inner, "another secret")
		require.NoError(t, err)
		_, err = other.Get(ctx, "bastion-auth")
		require.ErrorIs(t, err, errors.ErrSessionCorrupt)
	})

	t.Run("value moved to another key", func(t *testing.T) {
		require.NoError(t, inner.Set(ctx, "bastion-auth:other", raw))
		_, err := s.Get(ctx, "bastion-auth:other")
		require.ErrorIs(t, err, errors.ErrSessionCorrupt)
	})

	t.Run("empty secret", func(t *testing.T) {
		_, err := storage.Sealed(inner, "")
		require.ErrorIs(t, err, errors.ErrInvalidKey)
	})
}
