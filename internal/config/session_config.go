package config

import "time"

const (
	tokenTTLVar           = "TOKEN_TTL"
	refreshLookaheadVar   = "REFRESH_LOOKAHEAD"
	refreshIntervalVar    = "REFRESH_INTERVAL"
	idleTimeoutMinutesVar = "IDLE_TIMEOUT_MINUTES"
)

type Session struct {
	src *source
}

var _ SessionConfig = Session{}

// GetTokenTTL is how long a stored access token is trusted, matching the backend's access token lifetime.
func (s Session) GetTokenTTL() time.Duration {
	return s.src.getDuration(tokenTTLVar, 30*time.Minute)
}

func (s Session) GetRefreshLookahead() time.Duration {
	return s.src.getDuration(refreshLookaheadVar, 5*time.Minute)
}

func (s Session) GetRefreshInterval() time.Duration {
	return s.src.getDuration(refreshIntervalVar, 5*time.Minute)
}

// GetIdleTimeout returns the inactivity window. Zero or a negative number of minutes disables it.
func (s Session) GetIdleTimeout() time.Duration {
	minutes := s.src.getInt(idleTimeoutMinutesVar, 30)
	if minutes <= 0 {
		return 0
	}
	return time.Duration(minutes) * time.Minute
}
