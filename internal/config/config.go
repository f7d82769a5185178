package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

// Config is the process configuration, read from the environment
type Config struct {
	App       AppConfig       `envconfig:"APP"`
	DB        DBConfig        `envconfig:"DB"`
	Kafka     KafkaConfig     `envconfig:"KAFKA"`
	Outbox    OutboxConfig    `envconfig:"OUTBOX"`
	Redis     RedisConfig     `envconfig:"REDIS"`
	Auth      AuthConfig      `envconfig:"AUTH"`
	Scheduler SchedulerConfig `envconfig:"SCHEDULER"`
}

type AppConfig struct {
	Port      int    `envconfig:"PORT" default:"8080"`
	Env       string `envconfig:"ENV" default:"development"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// IsDev reports whether the app runs in a development environment
func (a AppConfig) IsDev() bool {
	return a.Env == "development" || a.Env == "dev" || a.Env == "local"
}

// DBConfig holds the database configuration
type DBConfig struct {
	Host            string        `envconfig:"HOST" default:"localhost"`
	Port            int           `envconfig:"PORT" default:"5432"`
	User            string        `envconfig:"USER" default:"postgres"`
	Password        string        `envconfig:"PASSWORD" default:"postgres"`
	Name            string        `envconfig:"NAME" default:"orders"`
	SSLMode         string        `envconfig:"SSLMODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"5m"`
	ConnectAttempts int           `envconfig:"CONNECT_ATTEMPTS" default:"5"`
	AutoMigrate     bool          `envconfig:"AUTO_MIGRATE" default:"false"`
}

type KafkaConfig struct {
	Enabled     bool     `envconfig:"ENABLED" default:"false"`
	Brokers     []string `envconfig:"BROKERS" default:"localhost:9092"`
	OrdersTopic string   `envconfig:"ORDERS_TOPIC" default:"orders"`
}

type OutboxConfig struct {
	PollingInterval time.Duration `envconfig:"POLLING_INTERVAL" default:"5s"`
	BatchSize       int           `envconfig:"BATCH_SIZE" default:"10"`
	MaxRetries      int           `envconfig:"MAX_RETRIES" default:"3"`

	// claims older than this are returned to pending
	ProcessingTimeout time.Duration `envconfig:"PROCESSING_TIMEOUT" default:"2m"`

	// consecutive delivery failures that pause polling, and for how long
	BreakerThreshold    int           `envconfig:"BREAKER_THRESHOLD" default:"5"`
	BreakerResetTimeout time.Duration `envconfig:"BREAKER_RESET_TIMEOUT" default:"30s"`
}

// RedisConfig is optional for the API (login throttling counts per process
// without it) and required for the scheduler lock.
type RedisConfig struct {
	URL string `envconfig:"URL"`
}

type AuthConfig struct {
	JWTSecret              string        `envconfig:"JWT_SECRET"`
	JWTIssuer              string        `envconfig:"JWT_ISSUER" default:"delivery-orders"`
	TokenTTL               time.Duration `envconfig:"TOKEN_TTL" default:"12h"`
	LoginWindow            time.Duration `envconfig:"LOGIN_WINDOW" default:"1m"`
	LoginLimit             int           `envconfig:"LOGIN_LIMIT" default:"10"`
	BootstrapAdminUsername string        `envconfig:"BOOTSTRAP_ADMIN_USERNAME"`
	BootstrapAdminPassword string        `envconfig:"BOOTSTRAP_ADMIN_PASSWORD"`

	// proxies (IPs or CIDRs) whose X-Forwarded-For is believed
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`
}

// Validate checks the settings the API needs to issue and verify tokens.
// Only the API server calls it; migrate and the scheduler never touch tokens.
func (a AuthConfig) Validate() error {
	if a.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET must not be empty")
	}
	if a.TokenTTL <= 0 {
		return fmt.Errorf("invalid AUTH_TOKEN_TTL: %s", a.TokenTTL)
	}
	if _, err := a.ProxyPrefixes(); err != nil {
		return err
	}
	return nil
}

// ProxyPrefixes parses TrustedProxies. A bare address is a single-host prefix.
func (a AuthConfig) ProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(a.TrustedProxies))
	for _, raw := range a.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid AUTH_TRUSTED_PROXIES entry %q: %w", raw, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTH_TRUSTED_PROXIES entry %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

type SchedulerConfig struct {
	Interval   time.Duration `envconfig:"INTERVAL" default:"15m"`
	CutoffHour int           `envconfig:"CUTOFF_HOUR" default:"4"`
	Timezone   string        `envconfig:"TIMEZONE" default:"Europe/Rome"`
	DaysAhead  int           `envconfig:"DAYS_AHEAD" default:"1"`
	LockKey    string        `envconfig:"LOCK_KEY" default:"orders:materialize-recurring:lock"`
	LockTTL    time.Duration `envconfig:"LOCK_TTL" default:"10m"`
}

// Location resolves the configured time zone
func (s SchedulerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_TIMEZONE %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid APP_PORT: %d", c.App.Port)
	}
	if c.Scheduler.CutoffHour < 0 || c.Scheduler.CutoffHour > 23 {
		return fmt.Errorf("invalid SCHEDULER_CUTOFF_HOUR: %d", c.Scheduler.CutoffHour)
	}
	if c.Scheduler.DaysAhead < 0 {
		return fmt.Errorf("invalid SCHEDULER_DAYS_AHEAD: %d", c.Scheduler.DaysAhead)
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	return nil
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}
