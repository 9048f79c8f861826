package guard_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/bastion-hub/guard"
	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/jrsteele09/bastion-hub/storage"
	"github.com/stretchr/testify/require"
)

func TestSafePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/hub/clients", true},
		{"/hub/clients/42?tab=accounts", true},
		{"/", true},
		{"", false},
		{"hub/clients", false},
		{"//evil.example/hub", false},
		{`/\evil.example`, false},
		{"https://evil.example/hub", false},
		{"/hub\r\nSet-Cookie: x=y", false},
		{"javascript:alert(1)", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.want, guard.SafePath(tt.path))
		})
	}
}

func TestCookieRedirects(t *testing.T) {
	c := guard.NewCookieRedirects()

	rec := httptest.NewRecorder()
	err := c.Remember(rec, httptest.NewRequest(http.MethodGet, "/", nil), "//evil.example")
	require.ErrorIs(t, err, errors.ErrUnsafeRedirect)
	require.Empty(t, rec.Result().Cookies())

	rec = httptest.NewRecorder()
	require.NoError(t, c.Remember(rec, httptest.NewRequest(http.MethodGet, "/", nil), "/hub/briefings?status=pending_review"))
	marker := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(marker)
	path, ok := c.Consume(httptest.NewRecorder(), req)
	require.True(t, ok)
	require.Equal(t, "/hub/briefings?status=pending_review", path)

	t.Run("tampered cookie is ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.AddCookie(&http.Cookie{Name: guard.PendingRedirectKey, Value: "https%3A%2F%2Fevil.example"})
		_, ok := c.Consume(httptest.NewRecorder(), req)
		require.False(t, ok)
	})
}

func TestStoreRedirects(t *testing.T) {
	kv := storage.NewMemoryStore()
	sid := func(r *http.Request) string { return r.Header.Get("X-Session") }
	s := guard.NewStoreRedirects(kv, 10*time.Minute, sid)

	req := httptest.NewRequest(http.MethodGet, "/hub/clients", nil)
	req.Header.Set("X-Session", "browser-a")

	require.NoError(t, s.Remember(nil, req, "/hub/clients"))
	require.ErrorIs(t, s.Remember(nil, req, "http://evil.example"), errors.ErrUnsafeRedirect)

	other := httptest.NewRequest(http.MethodGet, "/login", nil)
	other.Header.Set("X-Session", "browser-b")
	_, ok := s.Consume(nil, other)
	require.False(t, ok)

	path, ok := s.Consume(nil, req)
	require.True(t, ok)
	require.Equal(t, "/hub/clients", path)

	_, ok = s.Consume(nil, req)
	require.False(t, ok, "marker is consumed once")

	t.Run("expires", func(t *testing.T) {
		now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
		storage.NowTimeFunc = func() time.Time { return now }
		t.Cleanup(func() { storage.NowTimeFunc = time.Now })

		require.NoError(t, s.Remember(nil, req, "/hub/audit"))
		now = now.Add(11 * time.Minute)
		_, ok := s.Consume(nil, req)
		require.False(t, ok)
	})

	t.Run("requires a session", func(t *testing.T) {
		anon := httptest.NewRequest(http.MethodGet, "/hub", nil)
		require.ErrorIs(t, s.Remember(nil, anon, "/hub"), errors.ErrNoSession)
	})
}
