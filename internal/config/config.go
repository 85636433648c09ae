// Package config loads processor configuration from the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Prefix is prepended to every variable name.
const Prefix = "ACHIEVEMENTS_"

// ErrInvalidCredentials reports malformed lock-store credentials. It is
// fatal at startup.
var ErrInvalidCredentials = errors.New("invalid redis credentials")

// Lock backends.
const (
	LockSQL       = "sql"
	LockRedis     = "redis"
	LockFirestore = "firestore"
	LockMemory    = "memory"
)

// Config is the full processor configuration.
type Config struct {
	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"achievements.db"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	LockBackend   string        `env:"LOCK_BACKEND" envDefault:"sql"`
	LockTTL       time.Duration `env:"LOCK_TTL" envDefault:"20s"`
	LockDelayMin  time.Duration `env:"LOCK_DELAY_MIN" envDefault:"1ms"`
	LockDelayStep time.Duration `env:"LOCK_DELAY_STEP" envDefault:"5ms"`
	LockDelayCap  int           `env:"LOCK_DELAY_CAP" envDefault:"20"`
	LockJitter    time.Duration `env:"LOCK_JITTER" envDefault:"10ms"`

	BatchQueries bool `env:"BATCH_QUERIES" envDefault:"true"`
	MaxBatch     int  `env:"MAX_BATCH" envDefault:"50"`

	WebhookURL    string        `env:"WEBHOOK_URL"`
	RelayInterval time.Duration `env:"RELAY_INTERVAL" envDefault:"30s"`

	RedisCredentials    *RedisCredentials `env:"REDIS_CREDENTIALS"`
	FirestoreProject    string            `env:"FIRESTORE_PROJECT"`
	FirestoreCollection string            `env:"FIRESTORE_COLLECTION" envDefault:"achievements-processor-lock"`
	FirestoreCredsFile  string            `env:"FIRESTORE_CREDENTIALS_FILE"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// RedisCredentials is the JSON secret {"host","password","port"}.
type RedisCredentials struct {
	Host     string `json:"host"`
	Password string `json:"password"`
	Port     int    `json:"port"`
}

// UnmarshalText parses and validates the JSON form.
func (c *RedisCredentials) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidCredentials)
	}
	var parsed RedisCredentials
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if err := parsed.Validate(); err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Validate checks every field is present.
func (c RedisCredentials) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Host) == "" {
		problems = append(problems, "host is required")
	}
	if strings.TrimSpace(c.Password) == "" {
		problems = append(problems, "password is required")
	}
	if c.Port <= 0 {
		problems = append(problems, "port must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, strings.Join(problems, ", "))
	}
	return nil
}

// Addr is host:port.
func (c RedisCredentials) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		// env.ParseError does not unwrap; surface credential errors so
		// callers can match ErrInvalidCredentials.
		var pe env.ParseError
		if errors.As(err, &pe) && errors.Is(pe.Err, ErrInvalidCredentials) {
			return Config{}, fmt.Errorf("parse env: %w", pe.Err)
		}
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if c.LockTTL < 10*time.Second || c.LockTTL > 60*time.Second {
		errs = append(errs, fmt.Errorf("LOCK_TTL must be within 10s..60s, got %s", c.LockTTL))
	}
	if c.LockDelayCap < 1 {
		errs = append(errs, fmt.Errorf("LOCK_DELAY_CAP must be positive, got %d", c.LockDelayCap))
	}
	switch c.LockBackend {
	case LockSQL, LockMemory:
	case LockRedis:
		if c.RedisCredentials == nil {
			errs = append(errs, fmt.Errorf("%w: REDIS_CREDENTIALS is required for the redis lock backend", ErrInvalidCredentials))
		}
	case LockFirestore:
		if c.FirestoreProject == "" {
			errs = append(errs, errors.New("FIRESTORE_PROJECT is required for the firestore lock backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend))
	}
	if c.MaxBatch < 1 {
		errs = append(errs, fmt.Errorf("MAX_BATCH must be positive, got %d", c.MaxBatch))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
