package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		DailyCount int    `yaml:"dailyCount"` // questions per daily challenge
		CacheTTL   string `yaml:"cacheTTL"`   // question pool cache lifetime
		Timezone   string `yaml:"timezone"`   // IANA name for day boundaries
	} `yaml:"quiz"`
}

// DefaultDailyCount is used when the config leaves quiz.dailyCount unset.
const DefaultDailyCount = 12

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty or
// invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// DailyCount returns the configured daily-challenge length or the default.
func (c Config) DailyCount() int {
	if c.Quiz.DailyCount > 0 {
		return c.Quiz.DailyCount
	}
	return DefaultDailyCount
}

// Location resolves the configured timezone, falling back to the host's.
func (c Config) Location() *time.Location {
	if c.Quiz.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Quiz.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
