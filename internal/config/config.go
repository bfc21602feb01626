package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"server"`
	Poll struct {
		Interval time.Duration `yaml:"interval"`
		Ceiling  time.Duration `yaml:"ceiling"`
	} `yaml:"poll"`
	Diagram struct {
		Level int `yaml:"level"`
	} `yaml:"diagram"`
	CallFlow struct {
		MaxDepth int `yaml:"max_depth"`
	} `yaml:"callflow"`
	Cache struct {
		Path string `yaml:"path"`
	} `yaml:"cache"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.Server.URL = "http://localhost:8000"
	cfg.Server.Timeout = 30 * time.Second
	cfg.Poll.Interval = 2 * time.Second
	cfg.Poll.Ceiling = 300 * time.Second
	cfg.Diagram.Level = 2
	cfg.CallFlow.MaxDepth = 5
	cfg.Cache.Path = "archmap.db"
	return cfg
}

// Load reads configuration from an optional YAML file, then applies .env and
// environment-variable overrides. A missing config file is not an error; all
// values have defaults.
func Load(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config when present
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// 3. Override with environment variables if present
	if url := os.Getenv("ARCHMAP_SERVER_URL"); url != "" {
		cfg.Server.URL = url
	}
	if err := overrideDuration("ARCHMAP_POLL_INTERVAL", &cfg.Poll.Interval); err != nil {
		return nil, err
	}
	if err := overrideDuration("ARCHMAP_POLL_CEILING", &cfg.Poll.Ceiling); err != nil {
		return nil, err
	}
	if dbPath := os.Getenv("ARCHMAP_CACHE_PATH"); dbPath != "" {
		cfg.Cache.Path = dbPath
	}

	if cfg.Poll.Interval <= 0 || cfg.Poll.Ceiling <= 0 {
		return nil, fmt.Errorf("poll interval and ceiling must be positive")
	}
	return cfg, nil
}

func overrideDuration(key string, dst *time.Duration) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
