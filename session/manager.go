package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/jrsteele09/bastion-hub/storage"
	"github.com/rs/zerolog"
)

// DefaultIdleTimeout is how long a signed-in store stays cached without
// being opened.
const DefaultIdleTimeout = 30 * time.Minute

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type ManagerOption func(*Manager)

// WithIdleTimeout sets how long an unused store stays cached. Zero keeps
// stores until they sign out.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.idle = d
	}
}

type managed struct {
	store    *Store
	lastUsed time.Time
}

// Manager hands out one Store per browser session id. Each store persists
// under StorageKey + ":" + id, so a returning browser picks up where it left off.
//
// Only signed-in stores are cached, and a cached store re-reads its persisted
// copy on every Open. Several hub processes can therefore share one storage
// backend: a logout or refresh in one is seen by the others on the next request.
type Manager struct {
	mu        sync.Mutex
	stores    map[string]*managed
	kv        storage.Store
	log       zerolog.Logger
	idle      time.Duration
	lastSweep time.Time
}

// NewManager creates a manager persisting every store through kv.
func NewManager(kv storage.Store, log zerolog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		stores: make(map[string]*managed),
		kv:     kv,
		log:    log,
		idle:   DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// KeyFor returns the storage key used for a browser session id
func KeyFor(sessionID string) string {
	return StorageKey + ":" + sessionID
}

// Open returns the store for sessionID. A cached store is reloaded from
// storage before it is returned. Otherwise a new store is created and
// rehydrates in the background; wait on Hydrated before trusting
// IsAuthenticated.
func (m *Manager) Open(ctx context.Context, sessionID string) (*Store, error) {
	if sessionID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidKey, "[Manager Open] empty session id")
	}
	log := m.log.With().Str("session", shortID(sessionID)).Logger()

	if s := m.cached(sessionID); s != nil {
		if err := s.Reload(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to reload session")
		}
		return s, nil
	}

	s := NewStore(m.kv, WithKey(KeyFor(sessionID)), WithLogger(log))
	var wasAuthenticated atomic.Bool
	s.Subscribe(func(st State) {
		if st.IsAuthenticated {
			if !wasAuthenticated.Swap(true) {
				m.keep(sessionID, s)
			}
			return
		}
		// Signed out here or by another process sharing the storage.
		if wasAuthenticated.Swap(false) {
			log.Info().Msg("session ended")
			m.forget(sessionID, s)
		}
	})

	go func(ctx context.Context) {
		if err := s.Rehydrate(ctx); err != nil {
			log.Err(err).Msg("failed to rehydrate session")
		}
	}(context.WithoutCancel(ctx))

	return s, nil
}

// Forget drops the cached store for sessionID. Its persisted copy is left alone.
func (m *Manager) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, sessionID)
}

// Len reports how many stores are cached
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}

func (m *Manager) cached(sessionID string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := NowTimeFunc()
	m.sweep(now)
	e, ok := m.stores[sessionID]
	if !ok {
		return nil
	}
	e.lastUsed = now
	return e.store
}

func (m *Manager) keep(sessionID string, s *Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[sessionID] = &managed{store: s, lastUsed: NowTimeFunc()}
}

func (m *Manager) forget(sessionID string, s *Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.stores[sessionID]; ok && e.store == s {
		delete(m.stores, sessionID)
	}
}

// sweep drops idle stores, at most twice per idle period. Callers hold mu.
func (m *Manager) sweep(now time.Time) {
	if m.idle <= 0 || now.Sub(m.lastSweep) < m.idle/2 {
		return
	}
	m.lastSweep = now
	for id, e := range m.stores {
		if now.Sub(e.lastUsed) > m.idle {
			delete(m.stores, id)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
