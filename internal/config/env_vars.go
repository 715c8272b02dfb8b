package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	appNameVar    = "APP_NAME"
	apiBaseURLVar = "API_BASE_URL"
	logLevelVar   = "LOG_LEVEL"
	logPrettyVar  = "LOG_PRETTY"

	// ConfigFileVar names the optional TOML file read by the CLI.
	ConfigFileVar = "LMS_CONFIG"
)

// source resolves a setting from the environment first, then the config file.
type source struct {
	file map[string]string
}

func (s *source) get(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	if s != nil {
		if value, ok := s.file[envVar]; ok && value != "" {
			return value
		}
	}
	return defaultValue
}

func (s *source) getDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := s.get(envVar, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		log.Warn().Str("setting", envVar).Str("value", raw).Msg("Invalid duration, using default")
		return defaultValue
	}
	return d
}

func (s *source) getInt(envVar string, defaultValue int) int {
	raw := s.get(envVar, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("setting", envVar).Str("value", raw).Msg("Invalid number, using default")
		return defaultValue
	}
	return n
}

func (s *source) getBool(envVar string, defaultValue bool) bool {
	raw := s.get(envVar, "")
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Str("setting", envVar).Str("value", raw).Msg("Invalid boolean, using default")
		return defaultValue
	}
	return b
}

type EnvVars struct {
	src *source
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.src.get(appNameVar, "LMS Admin")
}

// GetAPIBaseURL returns the admin backend root (e.g. "http://127.0.0.1:8000").
func (e EnvVars) GetAPIBaseURL() string {
	return e.src.get(apiBaseURLVar, "http://127.0.0.1:8000")
}

func (e EnvVars) GetLogLevel() string {
	return e.src.get(logLevelVar, "info")
}

// GetLogPretty selects zerolog's console writer instead of JSON lines.
func (e EnvVars) GetLogPretty() bool {
	return e.src.getBool(logPrettyVar, true)
}

func (e EnvVars) GetEnv() string {
	return e.src.get("ENV", "DEV")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
