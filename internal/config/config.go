package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port   string `env:"PORT" envDefault:"8080"`
	AppEnv string `env:"APP_ENV" envDefault:"production"`

	// DBDriver is postgres in deployments; sqlite serves local runs and tests.
	DBDriver       string `env:"DB_DRIVER" envDefault:"postgres"`
	DBPath         string `env:"DB_PATH" envDefault:"defense.db"`
	DBHost         string `env:"DB_HOST" envDefault:"localhost"`
	DBPort         string `env:"DB_PORT" envDefault:"5432"`
	DBUser         string `env:"DB_USER" envDefault:"postgres"`
	DBPassword     string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName         string `env:"DB_NAME" envDefault:"defense_db"`
	DBSSLMode      string `env:"DB_SSLMODE" envDefault:"disable"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	DBMaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`

	JWTSecret             string `env:"JWT_SECRET" envDefault:"supersecret_change_me"`
	AccessTokenTTLMinutes int    `env:"ACCESS_TOKEN_TTL_MINUTES" envDefault:"240"`

	// Upper bound for one submission unit of work.
	SubmissionTimeout time.Duration `env:"SUBMISSION_TIMEOUT" envDefault:"10s"`
	AccessCodeLength  int           `env:"ACCESS_CODE_LENGTH" envDefault:"8"`

	LogLevel string `env:"LOG_LEVEL"`
}

// Load reads .env (non-fatal if missing in production) and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SubmissionTimeout <= 0 {
		return nil, fmt.Errorf("SUBMISSION_TIMEOUT must be positive, got %s", cfg.SubmissionTimeout)
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development") || strings.EqualFold(c.AppEnv, "dev")
}

func (c *Config) AccessTokenTTL() time.Duration {
	if c.AccessTokenTTLMinutes <= 0 {
		return 240 * time.Minute
	}
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}
