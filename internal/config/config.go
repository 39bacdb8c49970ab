package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port               int           `env:"PORT" envDefault:"8090"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	UpstreamURL        string        `env:"UPSTREAM_URL" envDefault:"http://localhost:8080"`
	UpstreamAPIKey     string        `env:"UPSTREAM_API_KEY"`
	NATSEnabled        bool          `env:"NATS_ENABLED" envDefault:"true"`
	WSReadLimit        int64         `env:"WS_READ_LIMIT" envDefault:"1048576"`
	WSHandshakeTimeout time.Duration `env:"WS_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	SSEKeepAlive       time.Duration `env:"SSE_KEEPALIVE" envDefault:"15s"`
	MetricsPath        string        `env:"METRICS_PATH" envDefault:"/metrics"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
