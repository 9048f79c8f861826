package guard

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/jrsteele09/bastion-hub/storage"
)

// PendingRedirectKey names the remembered-path marker, as a cookie name and
// as a storage key prefix.
const PendingRedirectKey = "redirectAfterLogin"

// PendingRedirects remembers one path per visitor until it is consumed.
type PendingRedirects interface {
	// Remember stores path, replacing any earlier one. Paths that are not
	// same-site absolute paths are refused with errors.ErrUnsafeRedirect.
	Remember(w http.ResponseWriter, r *http.Request, path string) error
	// Consume returns the remembered path and forgets it.
	Consume(w http.ResponseWriter, r *http.Request) (string, bool)
}

// SafePath reports whether p is an absolute path on this site, so it can be
// redirected to without becoming an open redirect.
func SafePath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, `/\`) {
		return false
	}
	for _, c := range p {
		if c < 0x20 || c == 0x7f || c == '\\' {
			return false
		}
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == "" && u.User == nil
}

var _ PendingRedirects = (*CookieRedirects)(nil)

// CookieRedirects keeps the marker in a browser-session cookie, which the
// browser drops when it closes.
type CookieRedirects struct {
	Name string
}

func NewCookieRedirects() *CookieRedirects {
	return &CookieRedirects{Name: PendingRedirectKey}
}

func (c *CookieRedirects) Remember(w http.ResponseWriter, r *http.Request, path string) error {
	if !SafePath(path) {
		return errors.Wrapf(errors.ErrUnsafeRedirect, "[CookieRedirects Remember] %q", path)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    url.QueryEscape(path),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (c *CookieRedirects) Consume(w http.ResponseWriter, r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.Name)
	if err != nil {
		return "", false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	path, err := url.QueryUnescape(cookie.Value)
	if err != nil || !SafePath(path) {
		return "", false
	}
	return path, true
}

var _ PendingRedirects = (*StoreRedirects)(nil)

// StoreRedirects keeps the marker server side in a TTL store, keyed by the
// visitor's session id.
type StoreRedirects struct {
	kv        storage.TTLStore
	ttl       time.Duration
	sessionID func(r *http.Request) string
}

// NewStoreRedirects creates a store-backed marker. sessionID must return ""
// for requests that carry no session; those are not remembered.
func NewStoreRedirects(kv storage.TTLStore, ttl time.Duration, sessionID func(r *http.Request) string) *StoreRedirects {
	return &StoreRedirects{kv: kv, ttl: ttl, sessionID: sessionID}
}

func (s *StoreRedirects) key(r *http.Request) (string, bool) {
	id := s.sessionID(r)
	if id == "" {
		return "", false
	}
	return PendingRedirectKey + ":" + id, true
}

func (s *StoreRedirects) Remember(_ http.ResponseWriter, r *http.Request, path string) error {
	if !SafePath(path) {
		return errors.Wrapf(errors.ErrUnsafeRedirect, "[StoreRedirects Remember] %q", path)
	}
	key, ok := s.key(r)
	if !ok {
		return errors.Wrapf(errors.ErrNoSession, "[StoreRedirects Remember]")
	}
	return s.kv.SetWithTTL(r.Context(), key, []byte(path), s.ttl)
}

func (s *StoreRedirects) Consume(_ http.ResponseWriter, r *http.Request) (string, bool) {
	key, ok := s.key(r)
	if !ok {
		return "", false
	}
	ctx := context.WithoutCancel(r.Context())
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		return "", false
	}
	_ = s.kv.Remove(ctx, key)

	path := string(data)
	if !SafePath(path) {
		return "", false
	}
	return path, true
}
