// Package config loads and validates the worker configuration from the
// environment.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// localEnv is the APP_ENV value for local development; it enables the
// stub mail transport when SMTP credentials are absent.
const localEnv = "local"

// Config holds all runtime settings for the notification worker.
//
// Queue and SMTP connectivity are infrastructure concerns: the dispatch
// core receives already-constructed collaborators and never reads these
// fields directly.
type Config struct {
	AppEnv string `envconfig:"APP_ENV" default:"production"`

	// RabbitMQ consumer settings. PrefetchCount bounds how many
	// deliveries may be in flight at once.
	AMQPURL       string `envconfig:"AMQP_URL" default:"amqp://localhost:5672" validate:"required"`
	QueueName     string `envconfig:"QUEUE_NAME" default:"notification_queue" validate:"required"`
	PrefetchCount int    `envconfig:"PREFETCH_COUNT" default:"10" validate:"min=1"`

	// SMTP relay settings. When SMTPHost is empty the worker runs with
	// the stub transport (local/test mode).
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587" validate:"min=1,max=65535"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`

	// Sender identity for all outbound email.
	FromName    string `envconfig:"EMAIL_FROM_NAME" default:"BlueRide"`
	FromAddress string `envconfig:"EMAIL_FROM_ADDRESS" default:"blueride@hackduke.org" validate:"required,email"`

	// DisplayTimezone is the fixed timezone used to format ride time
	// ranges in email bodies.
	DisplayTimezone string `envconfig:"DISPLAY_TIMEZONE" default:"America/New_York" validate:"required"`

	// RequeueDelay is the cooldown a delivery is held for after a
	// transport failure before it is requeued.
	RequeueDelay time.Duration `envconfig:"REQUEUE_DELAY" default:"10s" validate:"min=0"`

	// ReconnectWait is the backoff between queue reconnect attempts.
	ReconnectWait time.Duration `envconfig:"RECONNECT_WAIT" default:"5s" validate:"min=0"`

	HealthPort int `envconfig:"HEALTH_PORT" default:"8080" validate:"min=1,max=65535"`
}

// IsLocal reports whether the worker runs in local development mode.
func (c *Config) IsLocal() bool {
	return c.AppEnv == localEnv
}

// SMTPConfigured reports whether a real SMTP relay is configured.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != ""
}

// Load reads, populates, and validates the worker configuration.
func Load() (*Config, error) {
	// UTC process timezone; display formatting applies its own zone.
	time.Local = time.UTC

	// .env is a development convenience; absence is not an error and
	// existing environment variables are never overridden.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to process environment: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	// Fail at startup rather than on the first composed email.
	if _, err := time.LoadLocation(cfg.DisplayTimezone); err != nil {
		return nil, fmt.Errorf("config: invalid DISPLAY_TIMEZONE %q: %w", cfg.DisplayTimezone, err)
	}

	return &cfg, nil
}
