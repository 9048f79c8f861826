package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/bastion-hub/apiclient"
	"github.com/jrsteele09/bastion-hub/guard"
	"github.com/jrsteele09/bastion-hub/hubapi"
	"github.com/jrsteele09/bastion-hub/internal/config"
	"github.com/jrsteele09/bastion-hub/session"
	"github.com/jrsteele09/bastion-hub/storage"
	"github.com/rs/zerolog/log"
)

// Server is the hub web front. Every browser gets its own auth store, found
// through the hub session cookie, and talks to the API through it.
type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	sessions   *session.Manager
	guard      *guard.Guard
	httpClient apiclient.Doer
	healthAPI  *hubapi.API
}

type Option func(*Server)

// WithHTTPClient sets the transport used to reach the API.
func WithHTTPClient(doer apiclient.Doer) Option {
	return func(s *Server) {
		s.httpClient = doer
	}
}

// New wires the hub pages. pending holds the remembered path of visitors
// sent to the login page.
func New(cfg config.Config, sessions *session.Manager, pending guard.PendingRedirects, opts ...Option) *Server {
	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		sessions: sessions,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: cfg.GetRequestTimeout()}
	}

	// Health checks need no session; an anonymous in-memory store stands in.
	anonymous := session.NewStore(storage.NewMemoryStore())
	s.healthAPI = hubapi.New(apiclient.New(cfg.GetAPIBaseURL(), anonymous, apiclient.WithHTTPClient(s.httpClient)), anonymous)

	s.guard = guard.New(s.resolveSession, pending,
		guard.WithGraceDelay(cfg.GetAuthGraceDelay()),
		guard.WithLoginPath(RouteLogin),
		guard.WithLanding(RouteHub),
		guard.WithLogger(log.Logger),
	)

	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// api returns the typed API acting for the browser behind ctx.
func (s *Server) api(ctx context.Context) (*hubapi.API, *session.Store) {
	store := storeFromContext(ctx)
	opts := []apiclient.Option{
		apiclient.WithHTTPClient(s.httpClient),
		apiclient.WithLogger(log.Logger),
	}
	if s.config.GetSharedRefresh() {
		opts = append(opts, apiclient.WithSharedRefresh())
	}
	client := apiclient.New(s.config.GetAPIBaseURL(), store, opts...)
	return hubapi.New(client, store), store
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Debug().Msgf("[%-19s] %s", colourMethod(method), path)
}

func logError(method, path string, err error) {
	log.Error().Err(err).Msgf("[%-19s] %s", colourMethod(method), path)
}

func colourMethod(method string) string {
	padded := fmt.Sprintf(" %-7s", method)
	if colour, ok := methodColours[method]; ok {
		return colour + padded + resetColour
	}
	return gray + padded + resetColour
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
