package server

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jrsteele09/bastion-hub/guard"
	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/jrsteele09/bastion-hub/session"
	"github.com/rs/zerolog/log"
)

// hubSessionCookie identifies the browser. The auth store it points at is
// kept server side; the cookie carries no tokens.
const hubSessionCookie = "hub_session"

type contextKey string

const (
	contextKeyBrowser contextKey = "hub_browser"
	contextKeyStore   contextKey = "hub_store"
)

// browserSession is the hub session id of one request. A freshly minted id
// is only sent to the browser once something is stored under it.
type browserSession struct {
	id     string
	minted bool
	needed atomic.Bool
}

// BrowserSessionMiddleware makes sure the request has a hub session id and
// attaches its auth store to the request context.
func (s *Server) BrowserSessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bs := &browserSession{}
		if cookie, err := r.Cookie(hubSessionCookie); err == nil {
			if id, err := uuid.Parse(cookie.Value); err == nil {
				bs.id = id.String()
			}
		}
		if bs.id == "" {
			bs.id = uuid.NewString()
			bs.minted = true
		}

		store, err := s.sessions.Open(r.Context(), bs.id)
		if err != nil {
			log.Err(err).Msg("failed to open hub session")
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}

		if bs.minted {
			inner := w
			w = &sessionCookieWriter{ResponseWriter: w, beforeWrite: func() {
				if bs.needed.Load() || store.IsAuthenticated() {
					s.setHubSessionCookie(inner, r, bs.id)
				}
			}}
		}

		ctx := context.WithValue(r.Context(), contextKeyBrowser, bs)
		ctx = context.WithValue(ctx, contextKeyStore, store)
		next(w, r.WithContext(ctx))
	}
}

// sessionCookieWriter runs beforeWrite once, just before the status line is
// written, so headers can still be added.
type sessionCookieWriter struct {
	http.ResponseWriter
	beforeWrite func()
	once        sync.Once
}

func (w *sessionCookieWriter) WriteHeader(status int) {
	w.once.Do(w.beforeWrite)
	w.ResponseWriter.WriteHeader(status)
}

func (w *sessionCookieWriter) Write(b []byte) (int, error) {
	w.once.Do(w.beforeWrite)
	return w.ResponseWriter.Write(b)
}

func (w *sessionCookieWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (s *Server) setHubSessionCookie(w http.ResponseWriter, r *http.Request, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     hubSessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.config.GetSessionMaxAge().Seconds()),
	})
}

// SessionID returns the hub session id of r, or "" before
// BrowserSessionMiddleware has run. Anything keyed by the id needs it to
// survive, so asking for it makes sure the browser is given the cookie.
func SessionID(r *http.Request) string {
	bs, _ := r.Context().Value(contextKeyBrowser).(*browserSession)
	if bs == nil {
		return ""
	}
	bs.needed.Store(true)
	return bs.id
}

func storeFromContext(ctx context.Context) *session.Store {
	store, _ := ctx.Value(contextKeyStore).(*session.Store)
	return store
}

func (s *Server) resolveSession(r *http.Request) (guard.Session, error) {
	store := storeFromContext(r.Context())
	if store == nil {
		return nil, errors.ErrNoSession
	}
	return store, nil
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	redirectSuccess(w, r, withQueryParam(path, "error", errorMsg))
}

func withQueryParam(path, key, value string) string {
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
