package library

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime settings for the client. Values come from the
// environment; command-line flags may override them afterwards.
type Config struct {
	// APIURL is the base URL of the library REST API.
	APIURL string `env:"LIBRARY_API_URL" envDefault:"http://localhost:5000"`

	// DataDir holds the durable client state (session snapshot).
	DataDir string `env:"LIBRARY_DATA_DIR" envDefault:".library-client"`

	// HTTPTimeout bounds every API call. Timeout policy lives here, not in
	// the controllers.
	HTTPTimeout time.Duration `env:"LIBRARY_HTTP_TIMEOUT" envDefault:"15s"`

	// Debug enables per-request logging on the API client.
	Debug bool `env:"LIBRARY_DEBUG" envDefault:"false"`
}

// LoadConfig parses the environment into a Config.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
