package server

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the daemon configuration, populated from TERMDOCKD_* environment
// variables.
type Config struct {
	Addr        string `default:"127.0.0.1:7070"`
	LogLevel    string `split_words:"true" default:"info"`
	Development bool   `default:"false"`

	// HistoryChunks is the per-terminal output replay capacity.
	HistoryChunks int `split_words:"true" default:"2048"`

	// KillTokenTTL bounds how long a kill confirmation token stays valid.
	KillTokenTTL time.Duration `split_words:"true" default:"30s"`

	// Input rate limiting, in bytes per second with a burst allowance,
	// keyed per terminal and client.
	InputRatePerSec int `split_words:"true" default:"262144"`
	InputBurst      int `split_words:"true" default:"1048576"`

	// PTY geometry for spawned terminals.
	Cols int `default:"80"`
	Rows int `default:"24"`

	ShutdownGrace time.Duration `split_words:"true" default:"5s"`
}

// FromEnv reads the configuration from the environment.
func FromEnv() (Config, error) {
	var cfg Config
	err := envconfig.Process("termdockd", &cfg)
	return cfg, err
}
