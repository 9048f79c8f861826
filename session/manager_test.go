package session_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jrsteele09/bastion-hub/session"
	"github.com/jrsteele09/bastion-hub/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestManager_Open(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(storage.NewMemoryStore(), zerolog.Nop())

	a, err := m.Open(ctx, "browser-a")
	require.NoError(t, err)
	<-a.Hydrated()
	require.Equal(t, session.KeyFor("browser-a"), a.Key())
	require.Zero(t, m.Len(), "anonymous stores are not cached")

	a.Login(testUser, testTokens)
	require.Equal(t, 1, m.Len())

	again, err := m.Open(ctx, "browser-a")
	require.NoError(t, err)
	require.Same(t, a, again)

	b, err := m.Open(ctx, "browser-b")
	require.NoError(t, err)
	require.NotSame(t, a, b)

	_, err = m.Open(ctx, "")
	require.Error(t, err)
}

func TestManager_AnonymousVisitorsAreNotKept(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(storage.NewMemoryStore(), zerolog.Nop())

	for i := 0; i < 1000; i++ {
		s, err := m.Open(ctx, fmt.Sprintf("visitor-%d", i))
		require.NoError(t, err)
		<-s.Hydrated()
	}
	require.Zero(t, m.Len())
}

func TestManager_SharedStorage(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	first := session.NewManager(kv, zerolog.Nop())
	second := session.NewManager(kv, zerolog.Nop())

	sa, err := first.Open(ctx, "browser")
	require.NoError(t, err)
	<-sa.Hydrated()
	sa.Login(testUser, testTokens)

	sb, err := second.Open(ctx, "browser")
	require.NoError(t, err)
	<-sb.Hydrated()
	require.True(t, sb.IsAuthenticated())
	require.Equal(t, 1, second.Len())

	t.Run("refresh is picked up", func(t *testing.T) {
		sa.UpdateAccessToken("A2")

		again, err := second.Open(ctx, "browser")
		require.NoError(t, err)
		require.Same(t, sb, again)
		require.Equal(t, "A2", again.AccessToken())
		require.Equal(t, "R1", again.RefreshToken())
	})

	t.Run("logout is picked up", func(t *testing.T) {
		sa.Logout()

		again, err := second.Open(ctx, "browser")
		require.NoError(t, err)
		require.False(t, again.IsAuthenticated())
		require.Empty(t, again.AccessToken())
		require.Zero(t, second.Len())
	})
}

func TestManager_EvictsIdleStores(t *testing.T) {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	session.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { session.NowTimeFunc = time.Now })

	ctx := context.Background()
	m := session.NewManager(storage.NewMemoryStore(), zerolog.Nop(), session.WithIdleTimeout(time.Hour))

	s, err := m.Open(ctx, "browser")
	require.NoError(t, err)
	<-s.Hydrated()
	s.Login(testUser, testTokens)
	require.Equal(t, 1, m.Len())

	now = now.Add(2 * time.Hour)
	fresh, err := m.Open(ctx, "browser")
	require.NoError(t, err)
	require.NotSame(t, s, fresh)

	<-fresh.Hydrated()
	require.True(t, fresh.IsAuthenticated(), "an evicted store comes back from storage")
}

func TestManager_RehydratesPersistedSession(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	payload, err := session.Marshal(session.Session{User: &testUser, Tokens: &testTokens, IsAuthenticated: true})
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, session.KeyFor("returning"), payload))

	m := session.NewManager(kv, zerolog.Nop())
	s, err := m.Open(ctx, "returning")
	require.NoError(t, err)

	<-s.Hydrated()
	require.True(t, s.IsAuthenticated())
	require.Equal(t, "A1", s.AccessToken())
}

func TestManager_ForgetsStoreOnLogout(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(storage.NewMemoryStore(), zerolog.Nop())

	s, err := m.Open(ctx, "browser-a")
	require.NoError(t, err)
	<-s.Hydrated()

	s.Login(testUser, testTokens)
	require.Equal(t, 1, m.Len())

	s.Logout()
	require.Zero(t, m.Len())

	fresh, err := m.Open(ctx, "browser-a")
	require.NoError(t, err)
	require.NotSame(t, s, fresh)
}
