/*
Package config loads the server configuration from the environment.

PURPOSE:
  One typed Config for cmd/server. Values come from, in increasing
  priority: struct defaults, an optional .env file, process environment,
  and finally command-line flags (applied by main).

VARIABLES:
  PORT              HTTP port (8080)
  DB_PATH           SQLite file (aneupi.db)
  LOG_LEVEL         debug | info | warn | error (info)
  LOG_FORMAT        json | console (json)
  JWT_SECRET        HS256 secret for admin tokens, at least 16 bytes (required)
  CORS_ORIGINS      Comma separated allowed origins (http://localhost:5173)
  SYNC_SCHEDULE     Cron expression for the nightly sync, "off" disables (0 3 * * *)
  ADMIN_RATE_LIMIT  Admin requests per second per admin (10)
  ADMIN_RATE_BURST  Admin burst size (20)
  AMQP_URL          RabbitMQ URL for audit events, empty disables
  AMQP_EXCHANGE     Exchange name (aneupi.audit)
  RULES_DIR         Directory of <kind>.json rule sheets, empty uses built-ins
  SHUTDOWN_TIMEOUT  Graceful shutdown budget (10s)

SEE ALSO:
  - cmd/server/main.go: Flag overrides and wiring
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap/zapcore"
)

// ScheduleOff disables the nightly sync.
const ScheduleOff = "off"

const minSecretLen = 16

type Config struct {
	// HTTP Server
	Port            int           `env:"PORT,default=8080"`
	CORSOrigins     string        `env:"CORS_ORIGINS,default=http://localhost:5173"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	// Database
	DBPath string `env:"DB_PATH,default=aneupi.db"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	// Admin API
	JWTSecret      string  `env:"JWT_SECRET"`
	AdminRateLimit float64 `env:"ADMIN_RATE_LIMIT,default=10"`
	AdminRateBurst int     `env:"ADMIN_RATE_BURST,default=20"`

	// Scheduler
	SyncSchedule string `env:"SYNC_SCHEDULE,default=0 3 * * *"`

	// AMQP
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE,default=aneupi.audit"`

	// Rules
	RulesDir string `env:"RULES_DIR"`
}

// Load reads envFile when it exists (a missing file is fine), then decodes
// the environment. It does not validate.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}

	if c.DBPath == "" {
		problems = append(problems, "DB_PATH cannot be empty")
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be json or console", c.LogFormat))
	}

	if len(c.JWTSecret) < minSecretLen {
		problems = append(problems, fmt.Sprintf("JWT_SECRET must be at least %d bytes", minSecretLen))
	}
	if c.AdminRateLimit <= 0 {
		problems = append(problems, fmt.Sprintf("invalid admin rate limit %v: must be positive", c.AdminRateLimit))
	}
	if c.AdminRateBurst < 1 {
		problems = append(problems, fmt.Sprintf("invalid admin rate burst %d: must be at least 1", c.AdminRateBurst))
	}

	if c.SyncEnabled() {
		if _, err := cron.ParseStandard(c.SyncSchedule); err != nil {
			problems = append(problems, fmt.Sprintf("invalid sync schedule '%s': %v", c.SyncSchedule, err))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RulesDir != "" {
		if info, err := os.Stat(c.RulesDir); err != nil || !info.IsDir() {
			problems = append(problems, fmt.Sprintf("RULES_DIR '%s' is not a directory", c.RulesDir))
		}
	}

	if c.ShutdownTimeout <= 0 {
		problems = append(problems, "SHUTDOWN_TIMEOUT must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// SyncEnabled reports whether the nightly sync should be scheduled.
func (c *Config) SyncEnabled() bool {
	return c.SyncSchedule != "" && !strings.EqualFold(c.SyncSchedule, ScheduleOff)
}

// AllowedOrigins splits CORS_ORIGINS.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
