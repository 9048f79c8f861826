package config

import "strings"

type EnvVars struct {
	Port     string `env:"PORT" env-default:"8080"`
	AppName  string `env:"APP_NAME" env-default:"Bastion Hub"`
	Env      string `env:"ENV" env-default:"DEV"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	Folder   string `env:"FOLDER" env-default:"./data"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	if strings.HasPrefix(e.Port, ":") {
		return e.Port
	}
	return ":" + e.Port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) GetDataFolder() string {
	return e.Folder
}
