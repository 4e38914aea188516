package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/gradewise/grader/internal/reliability/breaker"
	"github.com/gradewise/grader/internal/reliability/retry"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig
	}
	if cfg.Breakers.LLM.FailureThreshold == 0 {
		cfg.Breakers.LLM = breaker.LLMConfig()
	}
	if cfg.Breakers.OCR.FailureThreshold == 0 {
		cfg.Breakers.OCR = breaker.OCRConfig()
	}

	if cfg.Validation.Level == "" {
		cfg.Validation.Level = "standard"
	}

	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = 2 * time.Second
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}

	if cfg.Retention.Interval == 0 {
		cfg.Retention.Interval = 1 * time.Hour
	}
}
