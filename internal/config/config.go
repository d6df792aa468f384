// Package config loads the application configuration from the environment.
//
// Variables use the TOURBOOK_ prefix and "__" between nesting levels:
//
//	TOURBOOK_SERVER__PORT=8080             -> server.port
//	TOURBOOK_DATABASE__MONGO__URI=...       -> database.mongo.uri
//	TOURBOOK_AUTH__TOKEN_TTL=2160h          -> auth.token_ttl
//
// A .env file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix   = "TOURBOOK_"
	ServiceName = "tourbook"
)

type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Redis         RedisConfig          `koanf:"redis"`
	Auth          AuthConfig           `koanf:"auth" validate:"required"`
	Integration   IntegrationConfig    `koanf:"integration"`
	Media         MediaConfig          `koanf:"media"`
	RateLimit     RateLimitConfig      `koanf:"rate_limit"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required,oneof=development production test"`
}

// ServerConfig timeouts are in seconds.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"min=1"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"min=1"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"min=1"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
	// BodyLimit caps JSON request bodies, e.g. "10K".
	BodyLimit string `koanf:"body_limit"`
}

// DatabaseConfig selects the document store. Only the block of the chosen
// driver is read.
type DatabaseConfig struct {
	Driver   string         `koanf:"driver" validate:"required,oneof=mongo postgres memory"`
	Mongo    MongoConfig    `koanf:"mongo"`
	Postgres PostgresConfig `koanf:"postgres"`
}

type MongoConfig struct {
	URI  string `koanf:"uri"`
	Name string `koanf:"name"`
	// ConnectTimeout in seconds.
	ConnectTimeout int `koanf:"connect_timeout"`
}

// PostgresConfig connection lifetimes are in seconds.
type PostgresConfig struct {
	Host            string `koanf:"host"`
	Port            int    `koanf:"port"`
	User            string `koanf:"user"`
	Password        string `koanf:"password"`
	Name            string `koanf:"name"`
	SSLMode         string `koanf:"ssl_mode"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time"`
}

// RedisConfig is optional. Without an address, background jobs run
// inline and the health check skips redis.
type RedisConfig struct {
	Address string `koanf:"address"`
}

type AuthConfig struct {
	SecretKey string        `koanf:"secret_key" validate:"required,min=32"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
	CookieTTL time.Duration `koanf:"cookie_ttl"`
}

type IntegrationConfig struct {
	ResendAPIKey string `koanf:"resend_api_key"`
	EmailFrom    string `koanf:"email_from"`
	// AppURL is the public base URL used in email links.
	AppURL string `koanf:"app_url"`
}

type MediaConfig struct {
	Dir string `koanf:"dir"`
}

type RateLimitConfig struct {
	Max    int           `koanf:"max"`
	Window time.Duration `koanf:"window"`
}

// IsProduction reports whether primary.env is production.
func (c *Config) IsProduction() bool {
	return c.Primary.Env == "production"
}

// Load reads, defaults and validates the configuration.
func Load() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps TOURBOOK_DATABASE__MONGO__URI to database.mongo.uri.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// ApplyDefaults fills optional settings.
func (c *Config) ApplyDefaults() {
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60
	}
	if c.Server.BodyLimit == "" {
		c.Server.BodyLimit = "10K"
	}

	if c.Database.Mongo.Name == "" {
		c.Database.Mongo.Name = ServiceName
	}
	if c.Database.Mongo.ConnectTimeout == 0 {
		c.Database.Mongo.ConnectTimeout = 10
	}
	pg := &c.Database.Postgres
	if pg.Port == 0 {
		pg.Port = 5432
	}
	if pg.SSLMode == "" {
		pg.SSLMode = "disable"
	}
	if pg.MaxOpenConns == 0 {
		pg.MaxOpenConns = 25
	}
	if pg.MaxIdleConns == 0 {
		pg.MaxIdleConns = 5
	}
	if pg.ConnMaxLifetime == 0 {
		pg.ConnMaxLifetime = 300
	}
	if pg.ConnMaxIdleTime == 0 {
		pg.ConnMaxIdleTime = 300
	}

	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 90 * 24 * time.Hour
	}
	if c.Auth.CookieTTL == 0 {
		c.Auth.CookieTTL = c.Auth.TokenTTL
	}

	if c.Integration.EmailFrom == "" {
		c.Integration.EmailFrom = "Tourbook <hello@tourbook.dev>"
	}
	if c.Media.Dir == "" {
		c.Media.Dir = "public/img"
	}

	if c.RateLimit.Max == 0 {
		c.RateLimit.Max = 100
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Hour
	}

	if c.Observability == nil {
		c.Observability = DefaultObservabilityConfig()
	}
	c.Observability.ServiceName = ServiceName
	c.Observability.Environment = c.Primary.Env
}

// Validate checks struct tags and the settings of the selected driver.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	switch c.Database.Driver {
	case "mongo":
		if c.Database.Mongo.URI == "" {
			return fmt.Errorf("database.mongo.uri is required for the mongo driver")
		}
	case "postgres":
		pg := c.Database.Postgres
		if pg.Host == "" || pg.User == "" || pg.Name == "" {
			return fmt.Errorf("database.postgres host, user and name are required for the postgres driver")
		}
	}

	if c.Observability != nil {
		if err := c.Observability.Validate(); err != nil {
			return fmt.Errorf("invalid observability config: %w", err)
		}
	}
	return nil
}
