package session

import (
	"encoding/json"

	"github.com/jrsteele09/bastion-hub/internal/errors"
)

// persisted is the envelope written to storage. Its shape matches what the
// browser front-end kept in localStorage, so either client can read the other's.
type persisted struct {
	State   Session `json:"state"`
	Version int     `json:"version"`
}

// Marshal serialises the persisted subset of a session
func Marshal(s Session) ([]byte, error) {
	return json.Marshal(persisted{State: s})
}

// Unmarshal restores a session written by Marshal. A payload that breaks the
// tokens/authenticated invariant is rejected rather than half-trusted.
func Unmarshal(data []byte) (Session, error) {
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return Session{}, errors.Wrapf(errors.ErrSessionCorrupt, "decode: %v", err)
	}
	if (p.State.Tokens != nil) != p.State.IsAuthenticated {
		return Session{}, errors.Wrapf(errors.ErrSessionCorrupt, "tokens and isAuthenticated disagree")
	}
	return p.State, nil
}
