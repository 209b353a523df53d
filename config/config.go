// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Store        StoreConfig        `yaml:"store"`
	Messages     MessagesConfig     `yaml:"messages"`
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

type StoreConfig struct {
	Type   string       `yaml:"type"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	Redis  RedisConfig  `yaml:"redis"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MessagesConfig struct {
	MinContentLength  int `yaml:"min_content_length"`
	MaxContentLength  int `yaml:"max_content_length"`
	MinPasswordLength int `yaml:"min_password_length"`
	// ExpirationChoices are the selectable lifetimes, in minutes.
	ExpirationChoices []int `yaml:"expiration_choices"`
}

type HousekeepingConfig struct {
	// Secret guards the HTTP sweep trigger (Authorization: Bearer <secret>).
	// The endpoint is disabled while the secret is empty.
	Secret string `yaml:"secret"`
	// Interval for the in-process background sweep. Zero disables it.
	Interval time.Duration `yaml:"interval"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Store: StoreConfig{
			Type: "sqlite",
			SQLite: SQLiteConfig{
				Path: "messages.db",
			},
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				Password: "",
				DB:       0,
			},
		},
		Messages: MessagesConfig{
			MinContentLength:  2,
			MaxContentLength:  500,
			MinPasswordLength: 4,
			ExpirationChoices: []int{1, 15, 60, 720, 4320, 10080, 40320},
		},
		Housekeeping: HousekeepingConfig{
			Secret:   "",
			Interval: 15 * time.Minute,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is OK, use defaults
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}

	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Store.SQLite.Path = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Store.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Store.Redis.DB = db
		}
	}

	if v := os.Getenv("CRON_SECRET"); v != "" {
		c.Housekeeping.Secret = v
	}
	if v := os.Getenv("HOUSEKEEPING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Housekeeping.Interval = d
		}
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	switch c.Store.Type {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("invalid store type: %s (must be 'memory', 'sqlite' or 'redis')", c.Store.Type)
	}

	if c.Store.Type == "sqlite" && c.Store.SQLite.Path == "" {
		return fmt.Errorf("sqlite path is required when store type is 'sqlite'")
	}

	if c.Store.Type == "redis" && c.Store.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when store type is 'redis'")
	}

	if c.Messages.MinContentLength < 1 {
		return fmt.Errorf("min_content_length must be at least 1")
	}

	if c.Messages.MaxContentLength < c.Messages.MinContentLength {
		return fmt.Errorf("max_content_length must be >= min_content_length")
	}

	if c.Messages.MinPasswordLength < 1 {
		return fmt.Errorf("min_password_length must be at least 1")
	}

	if len(c.Messages.ExpirationChoices) == 0 {
		return fmt.Errorf("at least one expiration choice is required")
	}
	for _, m := range c.Messages.ExpirationChoices {
		if m < 1 {
			return fmt.Errorf("invalid expiration choice: %d minutes", m)
		}
	}

	if c.Housekeeping.Interval < 0 {
		return fmt.Errorf("housekeeping interval must not be negative")
	}

	return nil
}

// ValidExpiration reports whether minutes is one of the configured choices.
func (c *Config) ValidExpiration(minutes int) bool {
	for _, m := range c.Messages.ExpirationChoices {
		if m == minutes {
			return true
		}
	}
	return false
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
