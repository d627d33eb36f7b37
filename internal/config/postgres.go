package config

import (
	"context"
	"net/url"

	"github.com/sethvargo/go-envconfig"
)

// PostgresConfig addresses the catalog database.
type PostgresConfig struct {
	Host     string `env:"POSTGRES_HOST, required"`
	Port     string `env:"POSTGRES_PORT, default=5432"`
	Username string `env:"POSTGRES_USERNAME, required"`
	Password string `env:"POSTGRES_PASSWORD, required"`
	Database string `env:"POSTGRES_DATABASE, default=dca"`
	SSLMode  string `env:"POSTGRES_SSLMODE, default=disable"`
}

func NewPostgresConfigFromEnv() (*PostgresConfig, error) {
	var cfg PostgresConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DSN renders the config as a postgres:// URL. Credentials are escaped.
func (c *PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}
