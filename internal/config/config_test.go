package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "database.mongo.uri", envKey("TOURBOOK_DATABASE__MONGO__URI"))
	assert.Equal(t, "server.read_timeout", envKey("TOURBOOK_SERVER__READ_TIMEOUT"))
	assert.Equal(t, "observability.new_relic.license_key", envKey("TOURBOOK_OBSERVABILITY__NEW_RELIC__LICENSE_KEY"))
}

func TestLoad(t *testing.T) {
	t.Setenv("TOURBOOK_PRIMARY__ENV", "development")
	t.Setenv("TOURBOOK_SERVER__PORT", "8080")
	t.Setenv("TOURBOOK_DATABASE__DRIVER", "mongo")
	t.Setenv("TOURBOOK_DATABASE__MONGO__URI", "mongodb://localhost:27017")
	t.Setenv("TOURBOOK_AUTH__SECRET_KEY", testSecret)
	t.Setenv("TOURBOOK_AUTH__TOKEN_TTL", "48h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Database.Mongo.URI)
	assert.Equal(t, ServiceName, cfg.Database.Mongo.Name)
	assert.Equal(t, 48*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 48*time.Hour, cfg.Auth.CookieTTL)
	assert.Equal(t, "10K", cfg.Server.BodyLimit)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	require.NotNil(t, cfg.Observability)
	assert.Equal(t, "development", cfg.Observability.Environment)
	assert.Equal(t, "debug", cfg.Observability.GetLogLevel())
}

func validConfig() *Config {
	cfg := &Config{
		Primary:  Primary{Env: "test"},
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Driver: "memory"},
		Auth:     AuthConfig{SecretKey: testSecret},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Database.Driver = "mongo"
	assert.ErrorContains(t, cfg.Validate(), "database.mongo.uri")

	cfg = validConfig()
	cfg.Database.Driver = "postgres"
	assert.ErrorContains(t, cfg.Validate(), "postgres")

	cfg = validConfig()
	cfg.Database.Driver = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Auth.SecretKey = "short"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Observability.Logging.Level = "verbose"
	assert.ErrorContains(t, cfg.Validate(), "invalid logging level")
}
