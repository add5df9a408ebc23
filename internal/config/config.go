package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port" env:"PORT"`
		ReadTimeout    string   `yaml:"read_timeout" env:"READ_TIMEOUT"`
		WriteTimeout   string   `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
		AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	} `yaml:"server" envPrefix:"SERVER_"`
	Log struct {
		Level  string `yaml:"level" env:"LEVEL"`
		Pretty bool   `yaml:"pretty" env:"PRETTY"`
	} `yaml:"log" envPrefix:"LOG_"`
	Redis struct {
		Addr     string `yaml:"addr" env:"ADDR"`
		Password string `yaml:"password" env:"PASSWORD"`
		DB       int    `yaml:"db" env:"DB"`
		// AnswerRetention expires the answer history kept in Redis when
		// Postgres is not configured. Empty keeps it forever.
		AnswerRetention string `yaml:"answer_retention" env:"ANSWER_RETENTION"`
	} `yaml:"redis" envPrefix:"REDIS_"`
	Postgres struct {
		URL string `yaml:"url" env:"URL"`
	} `yaml:"postgres" envPrefix:"POSTGRES_"`
	Questions struct {
		TTL string `yaml:"ttl" env:"TTL"`
	} `yaml:"questions" envPrefix:"QUESTIONS_"`
	Session struct {
		SubscriberBacklog int    `yaml:"subscriber_backlog" env:"SUBSCRIBER_BACKLOG"`
		DefaultDuration   string `yaml:"default_duration" env:"DEFAULT_DURATION"`
	} `yaml:"session" envPrefix:"SESSION_"`
}

// EnvPrefix prefixes every environment override, e.g. LIVEQUIZ_REDIS_ADDR.
const EnvPrefix = "LIVEQUIZ_"

// Load reads YAML config from path, then applies LIVEQUIZ_* environment
// overrides. A missing file is not an error: defaults plus environment apply.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
