package config

import "time"

type Config interface {
	EnvConfig
	SessionConfig
	StorageConfig
	OAuthConfig
}

type EnvConfig interface {
	GetAppName() string
	GetAPIBaseURL() string
	GetLogLevel() string
	GetLogPretty() bool
	GetEnv() string
}

type SessionConfig interface {
	GetTokenTTL() time.Duration
	GetRefreshLookahead() time.Duration
	GetRefreshInterval() time.Duration
	GetIdleTimeout() time.Duration
}

type StorageConfig interface {
	GetPersistentStore() string
	GetSqlitePath() string
	GetRedisAddr() string
	GetRedisNamespace() string
}

type mainConfig struct {
	EnvVars
	Session
	Storage
	OAuth
}

// New reads configuration from the environment only.
func New() Config {
	return newConfig(&source{})
}

// Load reads configuration from the TOML file at path, then lets environment variables
// override it. An empty path behaves like New.
func Load(path string) (Config, error) {
	src := &source{}
	if path != "" {
		file, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file.values()
	}
	return newConfig(src), nil
}

func newConfig(src *source) Config {
	return mainConfig{
		EnvVars: EnvVars{src: src},
		Session: Session{src: src},
		Storage: Storage{src: src},
		OAuth:   OAuth{src: src},
	}
}
