// internal/config/config.go
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the server reads from the environment. Values
// come from real env vars or a .env file loaded at startup.
type Config struct {
	Port           string        `envconfig:"PORT" default:"3000"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	TriviaAPIURL   string        `envconfig:"TRIVIA_API_URL" default:"https://opentdb.com"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Addr is the listen address derived from Port.
func (c Config) Addr() string {
	return ":" + c.Port
}
