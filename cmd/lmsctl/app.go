package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/jrsteele09/lms-session/api"
	"github.com/jrsteele09/lms-session/credentials"
	"github.com/jrsteele09/lms-session/credentials/areafake"
	"github.com/jrsteele09/lms-session/credentials/redisarea"
	"github.com/jrsteele09/lms-session/credentials/sqlitearea"
	"github.com/jrsteele09/lms-session/internal/config"
	"github.com/jrsteele09/lms-session/session"
	"github.com/jrsteele09/lms-session/token"
	"github.com/jrsteele09/lms-session/token/exchange"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// app holds the components wired from configuration for one CLI invocation.
type app struct {
	cfg     config.Config
	store   *credentials.Store
	tokens  *token.Manager
	session *session.Session
	client  *api.Client
	closers []io.Closer

	closeOnce sync.Once
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}

	persistent, err := a.openPersistentArea(ctx)
	if err != nil {
		return nil, err
	}
	// The ephemeral area lives only as long as this process, like a browser tab's session storage.
	ephemeral := areafake.NewInMemoryArea()
	a.store = credentials.NewStore(persistent, ephemeral, credentials.WithTokenTTL(cfg.GetTokenTTL()))

	httpClient := &http.Client{Timeout: cfg.GetHTTPTimeout()}
	exchanger, err := newExchanger(cfg, httpClient)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tokens = token.New(a.store, exchanger, token.WithLookahead(cfg.GetRefreshLookahead()))
	a.session = session.New(a.store, a.tokens, session.WithIdleTimeout(cfg.GetIdleTimeout()))
	a.client = api.New(cfg.GetAPIBaseURL(), a.session, api.WithHTTPClient(httpClient))
	return a, nil
}

func (a *app) openPersistentArea(ctx context.Context) (credentials.Area, error) {
	switch store := strings.ToLower(a.cfg.GetPersistentStore()); store {
	case config.StoreSqlite:
		area, err := sqlitearea.Open(a.cfg.GetSqlitePath(), "lms-admin")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, area)
		log.Debug().Str("path", a.cfg.GetSqlitePath()).Msg("Using SQLite credential area")
		return area, nil
	case config.StoreRedis:
		area, rc, err := redisarea.Dial(ctx, a.cfg.GetRedisAddr(), a.cfg.GetRedisNamespace())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rc)
		log.Debug().Str("addr", a.cfg.GetRedisAddr()).Msg("Using Redis credential area")
		return area, nil
	default:
		return nil, fmt.Errorf("unknown persistent store %q (want %s or %s)", store, config.StoreSqlite, config.StoreRedis)
	}
}

func newExchanger(cfg config.Config, httpClient *http.Client) (token.Exchanger, error) {
	if tokenURL := cfg.GetOAuthTokenURL(); tokenURL != "" {
		return exchange.NewOAuth2Exchanger(cfg.GetOAuthClientID(), tokenURL, httpClient)
	}
	return exchange.NewHTTPExchanger(cfg.GetAPIBaseURL(), exchange.WithHTTPClient(httpClient)), nil
}

// Close stops the idle monitor and releases the credential areas. It is safe to call more than once.
func (a *app) Close() {
	a.closeOnce.Do(func() {
		if a.session != nil {
			a.session.Close()
		}
		for _, c := range a.closers {
			if err := c.Close(); err != nil {
				log.Err(err).Msg("Closing credential area")
			}
		}
	})
}

func setupLogging(cfg config.EnvConfig) {
	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.GetLogPretty() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
