package config

import "time"

// Storage backends for persisted sessions
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

type SessionConfig interface {
	GetStorageBackend() string
	GetRedisAddr() string
	GetSessionSecret() string
	GetAuthGraceDelay() time.Duration
	GetPendingRedirectTTL() time.Duration
	GetSessionMaxAge() time.Duration
}

type Session struct {
	Backend            string        `env:"SESSION_STORAGE" env-default:"file"`
	RedisAddr          string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Secret             string        `env:"SESSION_SECRET" env-default:""`
	GraceDelay         time.Duration `env:"AUTH_GRACE_DELAY" env-default:"100ms"`
	PendingRedirectTTL time.Duration `env:"PENDING_REDIRECT_TTL" env-default:"10m"`
	MaxAge             time.Duration `env:"SESSION_MAX_AGE" env-default:"24h"`
}

var _ SessionConfig = Session{}

func (s Session) GetStorageBackend() string {
	return s.Backend
}

func (s Session) GetRedisAddr() string {
	return s.RedisAddr
}

// GetSessionSecret returns the key material used to seal persisted sessions.
// Empty means sessions are stored unsealed.
func (s Session) GetSessionSecret() string {
	return s.Secret
}

func (s Session) GetAuthGraceDelay() time.Duration {
	return s.GraceDelay
}

func (s Session) GetPendingRedirectTTL() time.Duration {
	return s.PendingRedirectTTL
}

// GetSessionMaxAge matches the backend's refresh token lifetime.
func (s Session) GetSessionMaxAge() time.Duration {
	return s.MaxAge
}
