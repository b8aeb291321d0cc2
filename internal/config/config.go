package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	AI struct {
		Provider   string `yaml:"provider"`    // "openai", "gemini", or "ollama"
		Model      string `yaml:"model"`       // completion model
		EmbedModel string `yaml:"embed_model"` // embedding model
		APIKey     string `yaml:"api_key"`
		BaseURL    string `yaml:"base_url"`
		Dimension  int    `yaml:"dimension"`
	} `yaml:"ai"`
	GitLab struct {
		Token         string `yaml:"token"`
		BaseURL       string `yaml:"base_url"`
		WebhookSecret string `yaml:"webhook_secret"`
	} `yaml:"gitlab"`
	Review struct {
		DBPath          string        `yaml:"db_path"`
		MaxFiles        int           `yaml:"max_files"`
		CacheTTL        time.Duration `yaml:"cache_ttl"`
		ProcessedWindow time.Duration `yaml:"processed_window"`
		CallTimeout     time.Duration `yaml:"call_timeout"`
	} `yaml:"review"`
}

// LoadConfig reads config.yaml (if present) and overlays environment
// variables. A missing file is not an error; env-only deployments are fine.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := defaults()

	// 2. Load YAML config
	if file, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// 3. Override with Environment Variables if present
	if addr := os.Getenv("VERITAS_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if provider := os.Getenv("VERITAS_AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = provider
	}
	if model := os.Getenv("VERITAS_AI_MODEL"); model != "" {
		cfg.AI.Model = model
	}
	if model := os.Getenv("VERITAS_EMBED_MODEL"); model != "" {
		cfg.AI.EmbedModel = model
	}
	if key := os.Getenv("VERITAS_API_KEY"); key != "" {
		cfg.AI.APIKey = key
	}
	if url := os.Getenv("VERITAS_AI_BASE_URL"); url != "" {
		cfg.AI.BaseURL = url
	}
	if dim := os.Getenv("VERITAS_EMBED_DIMENSION"); dim != "" {
		if n, err := strconv.Atoi(dim); err == nil {
			cfg.AI.Dimension = n
		}
	}
	if token := os.Getenv("GITLAB_TOKEN"); token != "" {
		cfg.GitLab.Token = token
	}
	if url := os.Getenv("GITLAB_BASE_URL"); url != "" {
		cfg.GitLab.BaseURL = url
	}
	if secret := os.Getenv("GITLAB_WEBHOOK_SECRET"); secret != "" {
		cfg.GitLab.WebhookSecret = secret
	}
	if dbPath := os.Getenv("VERITAS_DB"); dbPath != "" {
		cfg.Review.DBPath = dbPath
	}

	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8000"
	cfg.AI.Provider = "openai"
	cfg.AI.Model = "veritas-pro"
	cfg.AI.EmbedModel = "text-embedding-3-small"
	cfg.AI.Dimension = 384
	cfg.Review.DBPath = "veritas.db"
	cfg.Review.MaxFiles = 10
	cfg.Review.CacheTTL = time.Hour
	cfg.Review.ProcessedWindow = time.Hour
	cfg.Review.CallTimeout = 60 * time.Second
	return cfg
}
