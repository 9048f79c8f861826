// Package session holds the client-side authentication state: who is signed
// in, the bearer token pair, and the persisted copy that survives a restart.
package session

// StorageKey is the fixed key the persisted session lives under.
const StorageKey = "bastion-auth"

// Role is the user's role in the hub
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAdvisor Role = "advisor"
	RoleClient  Role = "client"
)

// User is the signed-in user as returned by the API. It is never edited in
// place; a re-fetch replaces the whole record.
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Role       Role   `json:"role"`
	MFAEnabled bool   `json:"mfa_enabled"`
}

// FullName joins first and last name, falling back to the email address.
func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Email
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// AuthTokens is the opaque bearer token pair
type AuthTokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Session is the persisted part of the state. Tokens is non-nil exactly
// when IsAuthenticated is true.
type Session struct {
	User            *User       `json:"user"`
	Tokens          *AuthTokens `json:"tokens"`
	IsAuthenticated bool        `json:"isAuthenticated"`
}

// State is the full in-memory state. IsLoading and Error belong to a single
// request and are never persisted.
type State struct {
	Session
	IsLoading bool
	Error     string
}

func (s Session) clone() Session {
	c := Session{IsAuthenticated: s.IsAuthenticated}
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	if s.Tokens != nil {
		t := *s.Tokens
		c.Tokens = &t
	}
	return c
}

func (s Session) equal(o Session) bool {
	if s.IsAuthenticated != o.IsAuthenticated {
		return false
	}
	if (s.User == nil) != (o.User == nil) || (s.User != nil && *s.User != *o.User) {
		return false
	}
	if (s.Tokens == nil) != (o.Tokens == nil) || (s.Tokens != nil && *s.Tokens != *o.Tokens) {
		return false
	}
	return true
}

func (s State) clone() State {
	return State{Session: s.Session.clone(), IsLoading: s.IsLoading, Error: s.Error}
}
