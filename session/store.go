package session

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/jrsteele09/bastion-hub/storage"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const persistTimeout = 5 * time.Second

var _ oauth2.TokenSource = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithKey overrides the storage key (default StorageKey).
func WithKey(key string) Option {
	return func(s *Store) {
		s.key = key
	}
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// Store owns a Session. Each mutation is applied as one assignment under the
// write lock, so no reader ever sees tokens without isAuthenticated or the
// other way round. The persisted subset is written to the key-value store
// after every mutation that changes it.
type Store struct {
	mu    sync.RWMutex
	state State
	seq   uint64 // bumped on every change to the persisted subset

	persistMu    sync.Mutex
	persistedSeq uint64

	kv  storage.Store
	key string
	log zerolog.Logger

	subsMu sync.Mutex
	subs   map[int]func(State)
	nextID int

	hydrated     chan struct{}
	hydratedOnce sync.Once
}

// NewStore returns an anonymous store persisting through kv. Call Rehydrate
// before first use to pick up a previously persisted session.
func NewStore(kv storage.Store, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		key:      StorageKey,
		log:      zerolog.Nop(),
		subs:     make(map[int]func(State)),
		hydrated: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key is the storage key this store persists under.
func (s *Store) Key() string {
	return s.key
}

// Rehydrate loads the persisted session. A missing or corrupt payload leaves
// the store anonymous; only storage failures are returned. Hydrated is
// closed once the first call finishes, whatever the outcome.
func (s *Store) Rehydrate(ctx context.Context) error {
	defer s.hydratedOnce.Do(func() { close(s.hydrated) })

	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, errors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "[Store Rehydrate] %s", s.key)
	}

	restored, err := Unmarshal(data)
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("discarding persisted session")
		return nil
	}

	s.persistMu.Lock()
	s.mu.Lock()
	if s.seq != 0 {
		// Mutated while loading; the in-memory state is newer.
		s.mu.Unlock()
		s.persistMu.Unlock()
		return nil
	}
	s.state = State{Session: restored}
	s.seq++
	s.persistedSeq = s.seq
	snapshot := s.state.clone()
	s.mu.Unlock()
	s.persistMu.Unlock()

	s.notify(snapshot)
	return nil
}

// Reload re-reads the persisted copy, picking up a logout or a new access
// token written by another process sharing the storage. A missing or
// corrupt payload reads as signed out. It does nothing while a local change
// is still unwritten.
func (s *Store) Reload(ctx context.Context) error {
	snapshot, changed, err := s.reload(ctx)
	if changed {
		s.notify(snapshot)
	}
	return err
}

func (s *Store) reload(ctx context.Context) (State, bool, error) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	seq := s.seq
	s.mu.RUnlock()
	if seq != s.persistedSeq {
		return State{}, false, nil
	}

	var restored Session
	data, err := s.kv.Get(ctx, s.key)
	switch {
	case errors.Is(err, errors.ErrNotFound):
	case err != nil:
		return State{}, false, errors.Wrapf(err, "[Store Reload] %s", s.key)
	default:
		if restored, err = Unmarshal(data); err != nil {
			s.log.Warn().Err(err).Str("key", s.key).Msg("discarding persisted session")
			restored = Session{}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != seq || s.state.Session.equal(restored) {
		return State{}, false, nil
	}
	s.state.Session = restored
	s.seq++
	s.persistedSeq = s.seq
	return s.state.clone(), true, nil
}

// Hydrated is closed once Rehydrate has completed.
func (s *Store) Hydrated() <-chan struct{} {
	return s.hydrated
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// User returns a copy of the signed-in user, or nil.
func (s *Store) User() *User {
	return s.Snapshot().User
}

// Tokens returns a copy of the token pair, or nil.
func (s *Store) Tokens() *AuthTokens {
	return s.Snapshot().Tokens
}

// AccessToken returns the current access token, read at call time.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Tokens == nil {
		return ""
	}
	return s.state.Tokens.Access
}

// RefreshToken returns the current refresh token.
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Tokens == nil {
		return ""
	}
	return s.state.Tokens.Refresh
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsLoading
}

func (s *Store) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Error
}

// Token implements oauth2.TokenSource over the current access token.
func (s *Store) Token() (*oauth2.Token, error) {
	access := s.AccessToken()
	if access == "" {
		return nil, errors.ErrNotAuthenticated
	}
	tok := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: s.RefreshToken(),
		TokenType:    "Bearer",
	}
	if exp, ok := AccessExpiry(access); ok {
		tok.Expiry = exp
	}
	return tok, nil
}

// Login sets user, tokens and isAuthenticated together and clears loading
// and error. The inputs are trusted: they come from a successful credential
// exchange.
func (s *Store) Login(user User, tokens AuthTokens) {
	s.update(func(st *State) {
		*st = State{Session: Session{User: &user, Tokens: &tokens, IsAuthenticated: true}}
	})
}

// Logout returns the store to the anonymous state. Calling it on an
// anonymous store is harmless.
func (s *Store) Logout() {
	s.update(func(st *State) {
		*st = State{}
	})
}

// UpdateAccessToken replaces only the access token. Without a token pair it
// does nothing, so a cleared session is never brought back by a late refresh.
func (s *Store) UpdateAccessToken(access string) {
	s.update(func(st *State) {
		if st.Tokens == nil {
			return
		}
		st.Tokens = &AuthTokens{Access: access, Refresh: st.Tokens.Refresh}
	})
}

// SetUser replaces the user record of an existing session, e.g. after
// re-fetching /auth/me/. It does nothing for an anonymous store.
func (s *Store) SetUser(user User) {
	s.update(func(st *State) {
		if !st.IsAuthenticated {
			return
		}
		st.User = &user
	})
}

func (s *Store) SetLoading(loading bool) {
	s.update(func(st *State) {
		st.IsLoading = loading
	})
}

func (s *Store) SetError(msg string) {
	s.update(func(st *State) {
		st.Error = msg
	})
}

func (s *Store) ClearError() {
	s.SetError("")
}

// Subscribe registers fn to be called with a snapshot after every change.
// The returned func removes the subscription.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) update(mutate func(*State)) {
	s.mu.Lock()
	before := s.state.clone()
	next := s.state.clone()
	mutate(&next)
	if next.Session.equal(before.Session) && next.IsLoading == before.IsLoading && next.Error == before.Error {
		s.mu.Unlock()
		return
	}
	s.state = next
	sessionChanged := !next.Session.equal(before.Session)
	if sessionChanged {
		s.seq++
	}
	seq := s.seq
	snapshot := next.clone()
	s.mu.Unlock()

	if sessionChanged {
		s.persist(seq, snapshot.Session)
	}
	s.notify(snapshot)
}

// persist writes sess unless a later mutation has already been written.
func (s *Store) persist(seq uint64, sess Session) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if seq <= s.persistedSeq {
		return
	}
	s.persistedSeq = seq

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	if sess.IsAuthenticated {
		var data []byte
		if data, err = Marshal(sess); err == nil {
			err = s.kv.Set(ctx, s.key, data)
		}
	} else {
		err = s.kv.Remove(ctx, s.key)
	}
	if err != nil {
		s.log.Error().Err(err).Str("key", s.key).Msg("failed to persist session")
	}
}

func (s *Store) notify(st State) {
	s.subsMu.Lock()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range subs {
		fn(st.clone())
	}
}
