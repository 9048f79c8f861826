// Package guard keeps anonymous visitors out of protected pages. A visitor
// who is turned away has the requested path remembered so that signing in
// takes them back to it.
package guard

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultGraceDelay = 100 * time.Millisecond
	DefaultLoginPath  = "/login"
	// DefaultLanding is where a sign in goes when nothing was remembered.
	DefaultLanding = "/hub"
)

// State is the outcome of a guard check. A check starts in Checking and
// moves to Authenticated or Redirecting; it never goes back.
type State int

const (
	Checking State = iota
	Authenticated
	Redirecting
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Redirecting:
		return "redirecting"
	}
	return "checking"
}

// Session is what the guard needs to know about a visitor's auth store.
// *session.Store implements it.
type Session interface {
	IsAuthenticated() bool
	Hydrated() <-chan struct{}
}

// Resolver finds the auth store behind a request.
type Resolver func(r *http.Request) (Session, error)

type Option func(*Guard)

func WithGraceDelay(d time.Duration) Option {
	return func(g *Guard) {
		g.grace = d
	}
}

func WithLoginPath(path string) Option {
	return func(g *Guard) {
		g.loginPath = path
	}
}

func WithLanding(path string) Option {
	return func(g *Guard) {
		g.landing = path
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(g *Guard) {
		g.log = l
	}
}

// Guard gates protected handlers
type Guard struct {
	resolve   Resolver
	pending   PendingRedirects
	grace     time.Duration
	loginPath string
	landing   string
	log       zerolog.Logger
}

func New(resolve Resolver, pending PendingRedirects, opts ...Option) *Guard {
	g := &Guard{
		resolve:   resolve,
		pending:   pending,
		grace:     DefaultGraceDelay,
		loginPath: DefaultLoginPath,
		landing:   DefaultLanding,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) LoginPath() string {
	return g.loginPath
}

// Check gives the store up to the grace delay to finish rehydrating, then
// reads isAuthenticated. It stays in Checking only when rehydration is still
// running after the grace delay or ctx ends first.
func (g *Guard) Check(ctx context.Context, sess Session) State {
	if sess == nil {
		return Redirecting
	}

	timer := time.NewTimer(g.grace)
	defer timer.Stop()

	select {
	case <-sess.Hydrated():
	case <-timer.C:
		return Checking
	case <-ctx.Done():
		return Checking
	}

	if sess.IsAuthenticated() {
		return Authenticated
	}
	return Redirecting
}

// Middleware protects next. Authenticated visitors reach it unchanged;
// everyone else gets the loading page, and anonymous visitors are also sent
// to the login page with their path remembered.
func (g *Guard) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := g.resolve(r)
		if err != nil {
			g.log.Warn().Err(err).Str("path", r.URL.Path).Msg("no session for request")
			sess = nil
		}

		switch g.Check(r.Context(), sess) {
		case Authenticated:
			next(w, r)
		case Redirecting:
			g.SendToLogin(w, r, returnPath(r))
		default:
			renderLoading(w, http.StatusOK, true)
		}
	}
}

// returnPath is where a visitor turned away from r should land after signing
// in. Only GET and HEAD can be replayed by a redirect; for a form post the
// page it was sent from is used when that page is on this site.
func returnPath(r *http.Request) string {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return r.URL.RequestURI()
	}
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Host != r.Host {
		return ""
	}
	return ref.RequestURI()
}

// Protect is Middleware for an http.Handler
func (g *Guard) Protect(h http.Handler) http.Handler {
	return g.Middleware(h.ServeHTTP)
}

// SendToLogin remembers returnTo and redirects to the login page. Handlers
// use it when a session ends mid-request, e.g. after a rejected refresh. An
// empty returnTo remembers nothing.
func (g *Guard) SendToLogin(w http.ResponseWriter, r *http.Request, returnTo string) {
	if returnTo != "" {
		if err := g.pending.Remember(w, r, returnTo); err != nil && !errors.Is(err, errors.ErrUnsafeRedirect) {
			g.log.Err(err).Str("path", returnTo).Msg("failed to remember redirect")
		}
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", g.loginPath)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Location", g.loginPath)
	renderLoading(w, http.StatusSeeOther, false)
}

// AfterLogin consumes the remembered path and returns where a fresh sign in
// should land.
func (g *Guard) AfterLogin(w http.ResponseWriter, r *http.Request) string {
	path, ok := g.pending.Consume(w, r)
	if !ok || path == g.loginPath {
		return g.landing
	}
	return path
}
