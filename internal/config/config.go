package config

import (
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jrsteele09/bastion-hub/internal/errors"
)

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetDataFolder() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	API
	Session
	Cors
}

// New reads the configuration from the environment, falling back to the
// env-default values for anything unset.
func New() (Config, error) {
	var c mainConfig
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, errors.Wrapf(err, "[config New] read env")
	}
	return c, nil
}
