package storage

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/jrsteele09/bastion-hub/internal/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealedKeyInfo = "bastion-hub persisted session"

var _ Store = (*SealedStore)(nil)

// SealedStore encrypts values before handing them to the wrapped store, so
// bearer tokens are never written to disk in the clear. The key is bound as
// additional data, which stops a sealed value being replayed under another key.
type SealedStore struct {
	next Store
	aead cipher.AEAD
}

// Sealed wraps next with XChaCha20-Poly1305 using a key derived from secret.
func Sealed(next Store, secret string) (*SealedStore, error) {
	if secret == "" {
		return nil, errors.Wrapf(errors.ErrInvalidKey, "[Sealed] secret is required")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sealedKeyInfo)), key); err != nil {
		return nil, errors.Wrapf(err, "[Sealed] derive key")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrapf(err, "[Sealed] cipher")
	}
	return &SealedStore{next: next, aead: aead}, nil
}

func (s *SealedStore) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, errors.Wrapf(errors.ErrSessionCorrupt, "[SealedStore Get] %s: short value", key)
	}
	plain, err := s.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], []byte(key))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrSessionCorrupt, "[SealedStore Get] %s: %v", key, err)
	}
	return plain, nil
}

func (s *SealedStore) Set(ctx context.Context, key string, value []byte) error {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+chacha20poly1305.Overhead)
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrapf(err, "[SealedStore Set] nonce")
	}
	return s.next.Set(ctx, key, s.aead.Seal(nonce, nonce, value, []byte(key)))
}

func (s *SealedStore) Remove(ctx context.Context, key string) error {
	return s.next.Remove(ctx, key)
}
