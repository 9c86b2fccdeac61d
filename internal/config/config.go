package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	AdminAPIKey string `yaml:"admin_api_key"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SessionConfig struct {
	SigningKey string        `yaml:"signing_key"`
	CookieName string        `yaml:"cookie_name"`
	TTL        time.Duration `yaml:"ttl"`
}

type ChatConfig struct {
	StateTTL        time.Duration `yaml:"state_ttl"`
	RateLimit       int           `yaml:"rate_limit"` // turns per window per session
	RateWindow      time.Duration `yaml:"rate_window"`
	LookupCacheSize int           `yaml:"lookup_cache_size"`
}

type SourceConfig struct {
	Name    string   `yaml:"name"` // zepto | bigbasket
	URLs    []string `yaml:"urls"`
	URLFile string   `yaml:"url_file"` // newline-separated listing URLs
}

type ScrapeConfig struct {
	UserAgent   string         `yaml:"user_agent"`
	Timeout     time.Duration  `yaml:"timeout"`
	Parallelism int            `yaml:"parallelism"`
	Delay       time.Duration  `yaml:"delay"`
	BatchSize   int            `yaml:"batch_size"`
	Workers     int            `yaml:"workers"`
	Sources     []SourceConfig `yaml:"sources"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Session  SessionConfig  `yaml:"session"`
	Chat     ChatConfig     `yaml:"chat"`
	Scrape   ScrapeConfig   `yaml:"scrape"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Session.SigningKey == "" && !dev {
		return nil, errors.New("session.signing_key is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "gpa_session"
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = 24 * time.Hour
	}
	if cfg.Chat.StateTTL <= 0 {
		cfg.Chat.StateTTL = 15 * time.Minute
	}
	if cfg.Chat.RateLimit <= 0 {
		cfg.Chat.RateLimit = 20
	}
	if cfg.Chat.RateWindow <= 0 {
		cfg.Chat.RateWindow = time.Minute
	}
	if cfg.Chat.LookupCacheSize <= 0 {
		cfg.Chat.LookupCacheSize = 512
	}
	if cfg.Scrape.UserAgent == "" {
		cfg.Scrape.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	}
	if cfg.Scrape.Timeout <= 0 {
		cfg.Scrape.Timeout = 30 * time.Second
	}
	if cfg.Scrape.Parallelism <= 0 {
		cfg.Scrape.Parallelism = 2
	}
	if cfg.Scrape.BatchSize <= 0 {
		cfg.Scrape.BatchSize = 100
	}
	if cfg.Scrape.Workers <= 0 {
		cfg.Scrape.Workers = 2
	}
}
