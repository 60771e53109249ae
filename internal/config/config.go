package config

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	StoreConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	IsProduction() bool
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	API
	Session
	Store
}

func New() Config {
	return mainConfig{}
}
