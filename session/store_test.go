package session_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/jrsteele09/bastion-hub/session"
	"github.com/jrsteele09/bastion-hub/storage"
	"github.com/stretchr/testify/require"
)

var testUser = session.User{
	ID:         "6c1f6f55-8a7e-4a44-9a1c-3f0e0c7f2d10",
	Email:      "ada@bastion.example",
	FirstName:  "Ada",
	LastName:   "Lovelace",
	Role:       session.RoleAdvisor,
	MFAEnabled: true,
}

var testTokens = session.AuthTokens{Access: "A1", Refresh: "R1"}

func newStore(t *testing.T) (*session.Store, *storage.MemoryStore) {
	t.Helper()
	kv := storage.NewMemoryStore()
	s := session.NewStore(kv)
	require.NoError(t, s.Rehydrate(context.Background()))
	return s, kv
}

func requireAnonymous(t *testing.T, st session.State) {
	t.Helper()
	require.Nil(t, st.User)
	require.Nil(t, st.Tokens)
	require.False(t, st.IsAuthenticated)
}

func TestStore_LoginLogout(t *testing.T) {
	tests := []struct {
		name    string
		between func(s *session.Store)
	}{
		{name: "nothing in between", between: func(*session.Store) {}},
		{name: "one token update", between: func(s *session.Store) { s.UpdateAccessToken("A2") }},
		{name: "several token updates", between: func(s *session.Store) {
			s.UpdateAccessToken("A2")
			s.UpdateAccessToken("A3")
			s.UpdateAccessToken("")
		}},
		{name: "loading and error", between: func(s *session.Store) {
			s.SetLoading(true)
			s.SetError("boom")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, kv := newStore(t)

			s.Login(testUser, testTokens)
			require.True(t, s.IsAuthenticated())
			tt.between(s)
			s.Logout()

			st := s.Snapshot()
			requireAnonymous(t, st)
			require.False(t, st.IsLoading)
			require.Empty(t, st.Error)

			_, err := kv.Get(context.Background(), session.StorageKey)
			require.ErrorIs(t, err, errors.ErrNotFound)
		})
	}
}

func TestStore_LogoutIsIdempotent(t *testing.T) {
	s, _ := newStore(t)
	s.Logout()
	s.Logout()
	requireAnonymous(t, s.Snapshot())
}

func TestStore_LoginClearsLoadingAndError(t *testing.T) {
	s, _ := newStore(t)
	s.SetLoading(true)
	s.SetError("Invalid email or password")

	s.Login(testUser, testTokens)

	st := s.Snapshot()
	require.False(t, st.IsLoading)
	require.Empty(t, st.Error)
	require.Equal(t, testUser, *st.User)
	require.Equal(t, testTokens, *st.Tokens)
}

func TestStore_UpdateAccessToken_NoSession(t *testing.T) {
	s, kv := newStore(t)
	var calls int
	s.Subscribe(func(session.State) { calls++ })

	s.UpdateAccessToken("A2")

	requireAnonymous(t, s.Snapshot())
	require.Zero(t, calls)
	require.Empty(t, kv.Keys())
}

func TestStore_UpdateAccessToken_ReplacesOnlyAccess(t *testing.T) {
	s, kv := newStore(t)
	s.Login(testUser, testTokens)

	s.UpdateAccessToken("A2")

	st := s.Snapshot()
	require.Equal(t, session.AuthTokens{Access: "A2", Refresh: "R1"}, *st.Tokens)
	require.Equal(t, testUser, *st.User)
	require.True(t, st.IsAuthenticated)

	data, err := kv.Get(context.Background(), session.StorageKey)
	require.NoError(t, err)
	persisted, err := session.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, "A2", persisted.Tokens.Access)
	require.Equal(t, "R1", persisted.Tokens.Refresh)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s, _ := newStore(t)
	s.Login(testUser, testTokens)

	st := s.Snapshot()
	st.Tokens.Access = "tampered"
	st.User.Email = "tampered"

	require.Equal(t, "A1", s.AccessToken())
	require.Equal(t, testUser.Email, s.User().Email)
}

func TestStore_SetUser(t *testing.T) {
	s, _ := newStore(t)

	s.SetUser(testUser)
	requireAnonymous(t, s.Snapshot())

	s.Login(testUser, testTokens)
	updated := testUser
	updated.MFAEnabled = false
	s.SetUser(updated)
	require.False(t, s.User().MFAEnabled)
	require.Equal(t, testTokens, *s.Tokens())
}

func TestStore_PersistedPayload(t *testing.T) {
	s, kv := newStore(t)
	s.SetLoading(true)
	s.SetError("Login failed")
	s.Login(testUser, testTokens)
	s.SetLoading(true)
	s.SetError("still transient")

	data, err := kv.Get(context.Background(), session.StorageKey)
	require.NoError(t, err)

	var raw struct {
		State   map[string]any `json:"state"`
		Version int            `json:"version"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Zero(t, raw.Version)
	require.ElementsMatch(t, []string{"user", "tokens", "isAuthenticated"}, keys(raw.State))

	restored := session.NewStore(kv)
	require.NoError(t, restored.Rehydrate(context.Background()))
	st := restored.Snapshot()
	require.Equal(t, s.Snapshot().Session, st.Session)
	require.False(t, st.IsLoading)
	require.Empty(t, st.Error)
}

func TestStore_Rehydrate(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing persisted", func(t *testing.T) {
		s := session.NewStore(storage.NewMemoryStore())
		require.NoError(t, s.Rehydrate(ctx))
		requireAnonymous(t, s.Snapshot())
		<-s.Hydrated()
	})

	t.Run("front-end payload", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		payload := `{"state":{"user":{"id":"u1","email":"a@b.c","first_name":"A","last_name":"B","role":"admin","mfa_enabled":false},` +
			`"tokens":{"access":"A1","refresh":"R1"},"isAuthenticated":true},"version":0}`
		require.NoError(t, kv.Set(ctx, session.StorageKey, []byte(payload)))

		s := session.NewStore(kv)
		require.NoError(t, s.Rehydrate(ctx))
		require.True(t, s.IsAuthenticated())
		require.Equal(t, session.RoleAdmin, s.User().Role)
		require.Equal(t, "A1", s.AccessToken())
	})

	t.Run("corrupt payload", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		require.NoError(t, kv.Set(ctx, session.StorageKey, []byte("{not json")))
		s := session.NewStore(kv)
		require.NoError(t, s.Rehydrate(ctx))
		requireAnonymous(t, s.Snapshot())
	})

	t.Run("tokens without isAuthenticated", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		payload := `{"state":{"user":null,"tokens":{"access":"A1","refresh":"R1"},"isAuthenticated":false}}`
		require.NoError(t, kv.Set(ctx, session.StorageKey, []byte(payload)))
		s := session.NewStore(kv)
		require.NoError(t, s.Rehydrate(ctx))
		requireAnonymous(t, s.Snapshot())
	})

	t.Run("login before rehydrate finishes wins", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		old, err := session.Marshal(session.Session{User: &testUser, Tokens: &session.AuthTokens{Access: "OLD", Refresh: "OLD"}, IsAuthenticated: true})
		require.NoError(t, err)
		require.NoError(t, kv.Set(ctx, session.StorageKey, old))

		s := session.NewStore(kv)
		s.Login(testUser, testTokens)
		require.NoError(t, s.Rehydrate(ctx))
		require.Equal(t, "A1", s.AccessToken())
	})
}

func TestStore_Token(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Token()
	require.ErrorIs(t, err, errors.ErrNotAuthenticated)

	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	access := signedToken(t, exp)
	s.Login(testUser, session.AuthTokens{Access: access, Refresh: "R1"})

	tok, err := s.Token()
	require.NoError(t, err)
	require.Equal(t, access, tok.AccessToken)
	require.Equal(t, "Bearer", tok.Type())
	require.True(t, exp.Equal(tok.Expiry))
}

func TestStore_Subscribe(t *testing.T) {
	s, _ := newStore(t)
	var seen []bool
	unsubscribe := s.Subscribe(func(st session.State) {
		seen = append(seen, st.IsAuthenticated)
	})

	s.Login(testUser, testTokens)
	s.Logout()
	unsubscribe()
	s.Login(testUser, testTokens)

	require.Equal(t, []bool{true, false}, seen)
}

func TestStore_ConcurrentMutationsKeepInvariant(t *testing.T) {
	s, _ := newStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Login(testUser, testTokens)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.UpdateAccessToken("A2")
				s.Logout()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				st := s.Snapshot()
				if (st.Tokens != nil) != st.IsAuthenticated {
					t.Errorf("tokens=%v isAuthenticated=%v", st.Tokens, st.IsAuthenticated)
				}
			}
		}()
	}
	wg.Wait()
}

func TestAccessExpiry(t *testing.T) {
	exp := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	got, ok := session.AccessExpiry(signedToken(t, exp))
	require.True(t, ok)
	require.True(t, exp.Equal(got))

	_, ok = session.AccessExpiry("opaque-token")
	require.False(t, ok)

	_, ok = session.AccessExpiry("")
	require.False(t, ok)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
