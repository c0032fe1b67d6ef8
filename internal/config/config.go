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
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Trivia struct {
		URL string `yaml:"url"`
		TTL string `yaml:"ttl"`
	} `yaml:"trivia"`
	Game struct {
		QuestionTime  int    `yaml:"questionTime"`
		RevealDelay   int    `yaml:"revealDelay"`
		SessionTTL    string `yaml:"sessionTtl"`
		SweepInterval string `yaml:"sweepInterval"`
	} `yaml:"game"`
	Auth struct {
		Secret     string `yaml:"secret"`
		TokenTTL   string `yaml:"tokenTtl"`
		RefreshTTL string `yaml:"refreshTtl"`
	} `yaml:"auth"`
}

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

// TTLDuration parses a duration string or returns the fallback if empty or invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
