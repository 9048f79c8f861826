package guard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/jrsteele09/bastion-hub/guard"
	"github.com/jrsteele09/bastion-hub/session"
	"github.com/jrsteele09/bastion-hub/storage"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	authenticated bool
	hydrated      chan struct{}
}

func newFakeSession(authenticated, hydrated bool) *fakeSession {
	s := &fakeSession{authenticated: authenticated, hydrated: make(chan struct{})}
	if hydrated {
		close(s.hydrated)
	}
	return s
}

func (f *fakeSession) IsAuthenticated() bool       { return f.authenticated }
func (f *fakeSession) Hydrated() <-chan struct{} { return f.hydrated }

func fixedResolver(s guard.Session) guard.Resolver {
	return func(*http.Request) (guard.Session, error) { return s, nil }
}

func TestCheck(t *testing.T) {
	g := guard.New(nil, guard.NewCookieRedirects(), guard.WithGraceDelay(20*time.Millisecond))

	tests := []struct {
		name string
		sess guard.Session
		want guard.State
	}{
		{name: "authenticated", sess: newFakeSession(true, true), want: guard.Authenticated},
		{name: "anonymous", sess: newFakeSession(false, true), want: guard.Redirecting},
		{name: "still rehydrating", sess: newFakeSession(true, false), want: guard.Checking},
		{name: "no session", sess: nil, want: guard.Redirecting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, g.Check(context.Background(), tt.sess))
		})
	}
}

func TestCheck_WaitsForRehydrate(t *testing.T) {
	kv := storage.NewMemoryStore()
	payload, err := session.Marshal(session.Session{
		User:            &session.User{ID: "u1"},
		Tokens:          &session.AuthTokens{Access: "A1", Refresh: "R1"},
		IsAuthenticated: true,
	})
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), session.StorageKey, payload))

	store := session.NewStore(kv)
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = store.Rehydrate(context.Background())
	}()

	g := guard.New(nil, guard.NewCookieRedirects(), guard.WithGraceDelay(time.Second))
	require.Equal(t, guard.Authenticated, g.Check(context.Background(), store))
}

func TestCheck_CancelledContext(t *testing.T) {
	g := guard.New(nil, guard.NewCookieRedirects(), guard.WithGraceDelay(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, guard.Checking, g.Check(ctx, newFakeSession(false, false)))
}

func TestMiddleware(t *testing.T) {
	protected := func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("client list"))
	}

	t.Run("authenticated sees content", func(t *testing.T) {
		g := guard.New(fixedResolver(newFakeSession(true, true)), guard.NewCookieRedirects())
		rec := httptest.NewRecorder()
		g.Middleware(protected)(rec, httptest.NewRequest(http.MethodGet, "/hub/clients", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "client list", rec.Body.String())
	})

	t.Run("anonymous is redirected", func(t *testing.T) {
		g := guard.New(fixedResolver(newFakeSession(false, true)), guard.NewCookieRedirects())
		rec := httptest.NewRecorder()
		g.Middleware(protected)(rec, httptest.NewRequest(http.MethodGet, "/hub/clients?page=2", nil))

		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/login", rec.Header().Get("Location"))
		require.Contains(t, rec.Body.String(), "Loading...")
		require.NotContains(t, rec.Body.String(), "client list")

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, guard.PendingRedirectKey, cookies[0].Name)
		require.Zero(t, cookies[0].MaxAge)
	})

	t.Run("form post remembers the referring page", func(t *testing.T) {
		tests := []struct {
			name    string
			referer string
			want    string
		}{
			{name: "no referer", referer: "", want: ""},
			{name: "same site listing", referer: "http://example.com/hub/briefings?status=draft", want: "/hub/briefings?status=draft"},
			{name: "other site", referer: "https://evil.example/hub/briefings", want: ""},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				g := guard.New(fixedResolver(newFakeSession(false, true)), guard.NewCookieRedirects())
				req := httptest.NewRequest(http.MethodPost, "/hub/briefings/b7/approve", nil)
				if tt.referer != "" {
					req.Header.Set("Referer", tt.referer)
				}
				rec := httptest.NewRecorder()
				g.Middleware(protected)(rec, req)

				require.Equal(t, http.StatusSeeOther, rec.Code)
				require.Equal(t, "/login", rec.Header().Get("Location"))
				cookies := rec.Result().Cookies()
				if tt.want == "" {
					require.Empty(t, cookies)
					return
				}
				require.Len(t, cookies, 1)
				require.Equal(t, url.QueryEscape(tt.want), cookies[0].Value)
			})
		}
	})

	t.Run("htmx request", func(t *testing.T) {
		g := guard.New(fixedResolver(newFakeSession(false, true)), guard.NewCookieRedirects(), guard.WithLoginPath("/signin"))
		req := httptest.NewRequest(http.MethodGet, "/hub/documents", nil)
		req.Header.Set("HX-Request", "true")
		rec := httptest.NewRecorder()
		g.Middleware(protected)(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "/signin", rec.Header().Get("HX-Redirect"))
	})

	t.Run("checking shows loading page", func(t *testing.T) {
		g := guard.New(fixedResolver(newFakeSession(true, false)), guard.NewCookieRedirects(), guard.WithGraceDelay(time.Millisecond))
		rec := httptest.NewRecorder()
		g.Middleware(protected)(rec, httptest.NewRequest(http.MethodGet, "/hub", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `http-equiv="refresh"`)
		require.NotContains(t, rec.Body.String(), "client list")
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("Protect wraps handlers", func(t *testing.T) {
		g := guard.New(fixedResolver(newFakeSession(true, true)), guard.NewCookieRedirects())
		rec := httptest.NewRecorder()
		g.Protect(http.HandlerFunc(protected)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hub", nil))
		require.Equal(t, "client list", rec.Body.String())
	})
}

// An anonymous visit to /hub/clients is sent to /login, and the sign in that
// follows lands back on /hub/clients exactly once.
func TestLoginReturnsToRequestedPage(t *testing.T) {
	store := session.NewStore(storage.NewMemoryStore())
	require.NoError(t, store.Rehydrate(context.Background()))
	g := guard.New(fixedResolver(store), guard.NewCookieRedirects())

	mux := http.NewServeMux()
	mux.HandleFunc("/hub/clients", g.Middleware(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("clients"))
	}))
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		store.Login(session.User{ID: "u1"}, session.AuthTokens{Access: "A1", Refresh: "R1"})
		http.Redirect(w, r, g.AfterLogin(w, r), http.StatusSeeOther)
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hub/clients", nil))
	require.Equal(t, "/login", rec.Header().Get("Location"))
	marker := rec.Result().Cookies()[0]

	login := httptest.NewRequest(http.MethodPost, "/login", nil)
	login.AddCookie(marker)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, login)
	require.Equal(t, "/hub/clients", rec.Header().Get("Location"))
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	require.Equal(t, -1, cleared[0].MaxAge)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	require.Equal(t, guard.DefaultLanding, rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hub/clients", nil))
	require.Equal(t, "clients", rec.Body.String())
}

func TestState_String(t *testing.T) {
	require.Equal(t, "checking", guard.Checking.String())
	require.Equal(t, "authenticated", guard.Authenticated.String())
	require.Equal(t, "redirecting", guard.Redirecting.String())
}
