package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode     string `yaml:"mode"`
	Exchange string `yaml:"exchange"`
	Product  string `yaml:"product"`

	Kite struct {
		// Credentials come from KITE_API_KEY / KITE_API_SECRET when unset.
		APIKey          string `yaml:"api_key"`
		APISecret       string `yaml:"api_secret"`
		RateLimit       int    `yaml:"rate_limit"`
		TimeoutSeconds  int    `yaml:"timeout_seconds"`
		InstrumentTTLHr int    `yaml:"instrument_ttl_hours"`
	} `yaml:"kite"`

	Session struct {
		Store     string `yaml:"store"` // file or redis
		File      string `yaml:"file"`
		RedisAddr string `yaml:"redis_addr"`
		RedisDB   int    `yaml:"redis_db"`
		RedisKey  string `yaml:"redis_key"`
	} `yaml:"session"`

	Server struct {
		Transport string `yaml:"transport"` // stdio or http
		Addr      string `yaml:"addr"`
	} `yaml:"server"`

	Journal struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"journal"`

	Reports struct {
		Dir string `yaml:"dir"`
	} `yaml:"reports"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.Exchange == "" {
		return errors.New("exchange cannot be empty")
	}
	switch c.Session.Store {
	case "file":
		if c.Session.File == "" {
			return errors.New("session.file cannot be empty when session.store is 'file'")
		}
	case "redis":
		if c.Session.RedisAddr == "" {
			return errors.New("session.redis_addr cannot be empty when session.store is 'redis'")
		}
	default:
		return fmt.Errorf("session.store must be 'file' or 'redis', got '%s'", c.Session.Store)
	}
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("server.transport must be 'stdio' or 'http', got '%s'", c.Server.Transport)
	}
	if c.Kite.RateLimit < 0 {
		return fmt.Errorf("kite.rate_limit must be >= 0, got %d", c.Kite.RateLimit)
	}
	if c.Journal.RetentionDays < 0 {
		return fmt.Errorf("journal.retention_days must be >= 0, got %d", c.Journal.RetentionDays)
	}
	return nil
}

// Timeout is the HTTP timeout for brokerage calls.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Kite.TimeoutSeconds) * time.Second
}

func (c *Config) InstrumentTTL() time.Duration {
	return time.Duration(c.Kite.InstrumentTTLHr) * time.Hour
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "DRY_RUN"
	}
	c.Mode = strings.ToUpper(c.Mode)
	if c.Exchange == "" {
		c.Exchange = "NSE"
	}
	if c.Product == "" {
		c.Product = "CNC"
	}
	if c.Kite.RateLimit == 0 {
		c.Kite.RateLimit = 10
	}
	if c.Kite.TimeoutSeconds == 0 {
		c.Kite.TimeoutSeconds = 15
	}
	if c.Kite.InstrumentTTLHr == 0 {
		c.Kite.InstrumentTTLHr = 12
	}
	if c.Kite.APIKey == "" {
		c.Kite.APIKey = os.Getenv("KITE_API_KEY")
	}
	if c.Kite.APISecret == "" {
		c.Kite.APISecret = os.Getenv("KITE_API_SECRET")
	}
	if c.Session.Store == "" {
		c.Session.Store = "file"
	}
	if c.Session.File == "" {
		c.Session.File = ".session/kite.json"
	}
	if c.Server.Transport == "" {
		c.Server.Transport = "stdio"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "logs/journal"
	}
	if c.Journal.RetentionDays == 0 {
		c.Journal.RetentionDays = 7
	}
	if c.Reports.Dir == "" {
		c.Reports.Dir = "reports"
	}
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// ParseConfig decodes yaml, applies defaults and validates the result.
func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}
