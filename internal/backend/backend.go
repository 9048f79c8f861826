// Package backend opens the key/value store selected by configuration.
package backend

import (
	"context"
	"path/filepath"

	"github.com/jrsteele09/bastion-hub/internal/config"
	"github.com/jrsteele09/bastion-hub/internal/errors"
	"github.com/jrsteele09/bastion-hub/storage"
	"github.com/jrsteele09/bastion-hub/storage/redisstore"
	"github.com/jrsteele09/bastion-hub/storage/sqlitestore"
	"github.com/rs/zerolog/log"
)

const (
	sqliteFile  = "sessions.db"
	sessionsDir = "sessions"
	redisPrefix = "bastion-hub:"
)

type Config interface {
	config.EnvConfig
	config.SessionConfig
}

// Backend is an opened store. Sessions may be sealed; TTL is the raw store
// when it can expire keys, and nil otherwise.
type Backend struct {
	Name     string
	Sessions storage.Store
	TTL      storage.TTLStore
	closer   func() error
}

func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// Open builds the configured backend under the data folder
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	b := &Backend{Name: cfg.GetStorageBackend()}

	switch b.Name {
	case config.StorageMemory:
		mem := storage.NewMemoryStore()
		b.Sessions, b.TTL = mem, mem
	case config.StorageFile:
		fs, err := storage.NewFileStore(filepath.Join(cfg.GetDataFolder(), sessionsDir))
		if err != nil {
			return nil, errors.Wrapf(err, "[backend Open] file store")
		}
		b.Sessions = fs
	case config.StorageSQLite:
		db, err := sqlitestore.Open(ctx, filepath.Join(cfg.GetDataFolder(), sqliteFile))
		if err != nil {
			return nil, errors.Wrapf(err, "[backend Open]")
		}
		b.Sessions, b.TTL, b.closer = db, db, db.Close
	case config.StorageRedis:
		rs, err := redisstore.Dial(ctx, cfg.GetRedisAddr(), redisPrefix)
		if err != nil {
			return nil, errors.Wrapf(err, "[backend Open]")
		}
		b.Sessions, b.TTL, b.closer = rs, rs, rs.Close
	default:
		return nil, errors.Wrapf(errors.ErrUnsupported, "[backend Open] storage backend %q", b.Name)
	}

	if secret := cfg.GetSessionSecret(); secret != "" {
		sealed, err := storage.Sealed(b.Sessions, secret)
		if err != nil {
			b.Close()
			return nil, errors.Wrapf(err, "[backend Open]")
		}
		b.Sessions = sealed
	} else if b.Name != config.StorageMemory {
		log.Warn().Str("backend", b.Name).Msg("SESSION_SECRET is not set, tokens are stored unencrypted")
	}
	return b, nil
}
