// Package config loads gateway configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cencori/gateway/internal/cache"
)

const (
	EnvConfigPath     = "CONFIG_PATH"
	EnvDBConnection   = "DB_CONNECTION"
	EnvRedisAddr      = "REDIS_ADDR"
	EnvRedisPassword  = "REDIS_PASSWORD"
	EnvMasterKey      = "ENCRYPTION_MASTER_KEY"
	EnvJWTSecret      = "JWT_SECRET"
	EnvJWTExpiry      = "JWT_EXPIRY"
	EnvOpenAIKey      = "OPENAI_API_KEY"
	EnvAnthropicKey   = "ANTHROPIC_API_KEY"
	EnvListenAddr     = "LISTEN_ADDR"
	EnvEmbeddingsMode = "EMBEDDINGS_MODE"
)

// ErrMissingDatabaseDSN indicates no database DSN is configured.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database.dsn` in config file or DB_CONNECTION)")

// ErrMissingMasterKey indicates no vault master key is configured.
var ErrMissingMasterKey = errors.New("missing vault master key (set `vault.master-key` in config file or ENCRYPTION_MASTER_KEY)")

const defaultJWTExpiry = 30 * 24 * time.Hour

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds cache and rate limit backend settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// VaultConfig holds the credential encryption master key.
type VaultConfig struct {
	MasterKey string `yaml:"master-key"`
}

// JWTConfig holds management API token settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// PlatformKeysConfig holds platform-default provider credentials used
// when a project has none of its own.
type PlatformKeysConfig struct {
	OpenAI    string `yaml:"openai"`
	Anthropic string `yaml:"anthropic"`
}

// CacheConfig tunes the two response cache tiers.
type CacheConfig struct {
	ExactTTL            time.Duration `yaml:"exact-ttl"`
	SimilarityThreshold float64       `yaml:"similarity-threshold"`
	// EmbeddingsMode selects "openai" or "mock".
	EmbeddingsMode string `yaml:"embeddings-mode"`
}

// SafetyConfig toggles inbound prompt screening.
type SafetyConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the full gateway configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Vault        VaultConfig        `yaml:"vault"`
	JWT          JWTConfig          `yaml:"jwt"`
	PlatformKeys PlatformKeysConfig `yaml:"platform-keys"`
	Cache        CacheConfig        `yaml:"cache"`
	Safety       SafetyConfig       `yaml:"safety"`
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the YAML file at path, applies environment overrides and
// validates required fields. A missing file is not an error when every
// required value arrives via environment; a `.env` file beside the
// process is honored first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	data, errRead := os.ReadFile(path)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	} else if !os.IsNotExist(errRead) {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, ErrMissingDatabaseDSN
	}
	if strings.TrimSpace(cfg.Vault.MasterKey) == "" {
		return nil, ErrMissingMasterKey
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvListenAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDBConnection)); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		cfg.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisPassword)); v != "" {
		cfg.Redis.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMasterKey)); v != "" {
		cfg.Vault.MasterKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvJWTSecret)); v != "" {
		cfg.JWT.Secret = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); v != "" {
		if expiry, errParse := time.ParseDuration(v); errParse == nil && expiry > 0 {
			cfg.JWT.Expiry = expiry
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvOpenAIKey)); v != "" {
		cfg.PlatformKeys.OpenAI = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAnthropicKey)); v != "" {
		cfg.PlatformKeys.Anthropic = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvEmbeddingsMode)); v != "" {
		cfg.Cache.EmbeddingsMode = v
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = defaultJWTExpiry
	}
	if cfg.Cache.ExactTTL <= 0 {
		cfg.Cache.ExactTTL = cache.DefaultExactTTL
	}
	if cfg.Cache.SimilarityThreshold <= 0 || cfg.Cache.SimilarityThreshold > 1 {
		cfg.Cache.SimilarityThreshold = cache.DefaultSimilarityThreshold
	}
	if strings.TrimSpace(cfg.Cache.EmbeddingsMode) == "" {
		cfg.Cache.EmbeddingsMode = "mock"
	}
}

// PlatformKey returns the platform-default credential for a provider
// name, or empty when none is configured.
func (c *Config) PlatformKey(provider string) string {
	switch provider {
	case "openai":
		return strings.TrimSpace(c.PlatformKeys.OpenAI)
	case "anthropic":
		return strings.TrimSpace(c.PlatformKeys.Anthropic)
	}
	return ""
}
