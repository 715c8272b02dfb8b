package config

import (
	"fmt"
	"strconv"

	"github.com/BurntSushi/toml"
)

// File is the optional TOML configuration file. Every field mirrors an environment
// variable, which takes precedence when set.
//
//	api_base_url = "http://127.0.0.1:8000"
//
//	[session]
//	token_ttl = "30m"
//	idle_timeout_minutes = 30
//
//	[storage]
//	persistent = "sqlite"
//	sqlite_path = "/var/lib/lms/credentials.db"
type File struct {
	APIBaseURL string `toml:"api_base_url"`
	LogLevel   string `toml:"log_level"`
	LogPretty  *bool  `toml:"log_pretty"`

	Session struct {
		TokenTTL           string `toml:"token_ttl"`
		RefreshLookahead   string `toml:"refresh_lookahead"`
		RefreshInterval    string `toml:"refresh_interval"`
		IdleTimeoutMinutes *int   `toml:"idle_timeout_minutes"`
	} `toml:"session"`

	Storage struct {
		Persistent     string `toml:"persistent"`
		SqlitePath     string `toml:"sqlite_path"`
		RedisAddr      string `toml:"redis_addr"`
		RedisNamespace string `toml:"redis_namespace"`
	} `toml:"storage"`

	OAuth struct {
		ClientID    string `toml:"client_id"`
		TokenURL    string `toml:"token_url"`
		HTTPTimeout string `toml:"http_timeout"`
	} `toml:"oauth"`
}

// LoadFile decodes the TOML file at path. Unknown keys are rejected so typos surface early.
func LoadFile(path string) (*File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
	}
	return &f, nil
}

// values flattens the file into the environment variable names it mirrors.
func (f *File) values() map[string]string {
	v := map[string]string{
		apiBaseURLVar:       f.APIBaseURL,
		logLevelVar:         f.LogLevel,
		tokenTTLVar:         f.Session.TokenTTL,
		refreshLookaheadVar: f.Session.RefreshLookahead,
		refreshIntervalVar:  f.Session.RefreshInterval,
		persistentStoreVar:  f.Storage.Persistent,
		sqlitePathVar:       f.Storage.SqlitePath,
		redisAddrVar:        f.Storage.RedisAddr,
		redisNamespaceVar:   f.Storage.RedisNamespace,
		oauthClientIDVar:    f.OAuth.ClientID,
		oauthTokenURLVar:    f.OAuth.TokenURL,
		httpTimeoutVar:      f.OAuth.HTTPTimeout,
	}
	if f.LogPretty != nil {
		v[logPrettyVar] = strconv.FormatBool(*f.LogPretty)
	}
	if f.Session.IdleTimeoutMinutes != nil {
		v[idleTimeoutMinutesVar] = strconv.Itoa(*f.Session.IdleTimeoutMinutes)
	}
	return v
}
