package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Content   ContentConfig   `yaml:"content"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// AuthToken, when set, is required as a bearer token on every API and
	// websocket request.
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// MaxConnections caps websocket clients. Zero means unlimited.
	MaxConnections int      `yaml:"max_connections"`
}

type StorageConfig struct {
	// Dir is the state directory. Empty selects $XDG_STATE_HOME/mathquest.
	Dir          string        `yaml:"dir"`
	SaveInterval time.Duration `yaml:"save_interval"`
	IdleTTL      time.Duration `yaml:"idle_ttl"`
}

type RateLimitConfig struct {
	RefillPerSecond float64 `yaml:"refill_per_second"`
	Burst           int     `yaml:"burst"`
}

type ContentConfig struct {
	// WorldsFile is a YAML world list. Empty uses the built-in curriculum.
	WorldsFile   string `yaml:"worlds_file"`
	StarterBiome string `yaml:"starter_biome"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Storage: StorageConfig{
			SaveInterval: 30 * time.Second,
			IdleTTL:      30 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RefillPerSecond: 5,
			Burst:           20,
		},
		Content: ContentConfig{
			StarterBiome: "grassland",
		},
	}
}

// Load reads path over the defaults. Fields missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// Validate reports settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must not be negative")
	}
	if c.Storage.SaveInterval <= 0 {
		return fmt.Errorf("storage.save_interval must be positive")
	}
	if c.Storage.IdleTTL <= c.Storage.SaveInterval {
		return fmt.Errorf("storage.idle_ttl (%s) must exceed storage.save_interval (%s)",
			c.Storage.IdleTTL, c.Storage.SaveInterval)
	}
	if c.RateLimit.RefillPerSecond <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("ratelimit needs a positive refill_per_second and burst")
	}
	return nil
}
