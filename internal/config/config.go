// Package config loads the region-session process's configuration from the
// environment via struct tags, using github.com/sethvargo/go-envconfig.
package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// Config is the process-wide configuration for a region-session client:
// where to connect, how to log, where to serve metrics, and where the
// appearance pipeline's server-bake capability lives.
type Config struct {
	// Region UDP endpoint: one Session per region.
	RegionHost string `env:"REGION_HOST,default=127.0.0.1"`
	RegionPort int    `env:"REGION_PORT,default=13000"`

	// Circuit/session identity, normally handed out by a login service;
	// exposed here for standalone connect/test use (cmd/region-session
	// connect).
	CircuitCode uint32 `env:"CIRCUIT_CODE"`
	AgentID     string `env:"AGENT_ID"`
	SessionID   string `env:"SESSION_ID"`

	// UpdateAvatarAppearanceURL is the server-bake capability URL this
	// region granted for the session. Empty disables mode A.
	UpdateAvatarAppearanceURL string `env:"UPDATE_AVATAR_APPEARANCE_URL"`

	// ServerSideBaking selects mode A vs mode B for the appearance
	// pipeline's default RunOptions.
	ServerSideBaking bool `env:"SERVER_SIDE_BAKING,default=true"`

	// Logging.
	LogLevel   string `env:"LOG_LEVEL,default=info"`
	LogDevMode bool   `env:"LOG_DEV_MODE,default=false"`

	// Metrics.
	MetricsAddr string `env:"METRICS_ADDR,default=:9100"`

	// DisconnectSweepIntervalSeconds controls how often
	// sessionmgr.Manager.DisconnectSweep runs; DisconnectSweepStaleSeconds
	// is the quiet period after which it closes a session.
	DisconnectSweepIntervalSeconds int `env:"DISCONNECT_SWEEP_INTERVAL_SECONDS,default=30"`
	DisconnectSweepStaleSeconds    int `env:"DISCONNECT_SWEEP_STALE_SECONDS,default=60"`
}

// Load reads Config from the process environment.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
