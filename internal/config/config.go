package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"edukids-quiz/internal/app"
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
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Bank struct {
		Path    string `yaml:"path"`
		Subject string `yaml:"subject"`
		Shuffle bool   `yaml:"shuffle"`
		TTL     string `yaml:"ttl"`
	} `yaml:"bank"`
	Quiz struct {
		QuestionTime     string                `yaml:"questionTime"`
		DefaultPassRatio float64               `yaml:"defaultPassRatio"`
		Levels           map[int]app.LevelRule `yaml:"levels"`
	} `yaml:"quiz"`
}

// Load reads YAML config from path. A missing file yields defaults so the
// binary runs without any config.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		applyEnv(&cfg)
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv lets deployment secrets override the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		cfg.RabbitMQ.URL = v
	}
	if v := os.Getenv("QUESTION_BANK_PATH"); v != "" {
		cfg.Bank.Path = v
	}
}

// Policy builds the level policy. An empty levels table means the built-in defaults.
func (c Config) Policy() (app.LevelPolicy, error) {
	levels := c.Quiz.Levels
	if len(levels) == 0 {
		levels = app.DefaultLevelRules()
	}
	policy := app.NewLevelPolicy(levels, c.Quiz.DefaultPassRatio)
	if err := policy.Validate(); err != nil {
		return app.LevelPolicy{}, fmt.Errorf("quiz config: %w", err)
	}
	return policy, nil
}

// QuestionTime is the per-question time limit, 15s unless configured. "0" disables it.
func (c Config) QuestionTime() time.Duration {
	return TTLDuration(c.Quiz.QuestionTime, 15*time.Second)
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
