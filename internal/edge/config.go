package edge

import (
	"errors"
	"net/url"

	"github.com/kelseyhightower/envconfig"
)

// Config configures the edge binary. It carries no session secret; the gate
// only checks that the session cookie exists.
type Config struct {
	Addr          string `envconfig:"EDGE_ADDR" default:":8000"`
	UpstreamURL   string `envconfig:"EDGE_UPSTREAM_URL" default:"http://127.0.0.1:8080"`
	SessionCookie string `envconfig:"SESSION_COOKIE" default:"session"`
	LogFormat     string `envconfig:"LOG_FORMAT" default:"pretty"`
}

// LoadConfig reads edge configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionCookie == "" {
		return nil, errors.New("session cookie name must be provided")
	}
	if _, err := url.Parse(cfg.UpstreamURL); err != nil {
		return nil, err
	}
	return &cfg, nil
}
