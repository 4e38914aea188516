package config

import (
	"time"

	"github.com/gradewise/grader/internal/grading/engine"
	"github.com/gradewise/grader/internal/infra/llm"
	"github.com/gradewise/grader/internal/infra/ocr"
	redisclient "github.com/gradewise/grader/internal/infra/redis"
	"github.com/gradewise/grader/internal/infra/storage/postgres"
	"github.com/gradewise/grader/internal/reliability/breaker"
	"github.com/gradewise/grader/internal/reliability/retry"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig        `yaml:"server"`
	LLM        llm.Config          `yaml:"llm"`
	OCR        ocr.Config          `yaml:"ocr"`
	Retry      retry.Config        `yaml:"retry"`
	Breakers   BreakersConfig      `yaml:"breakers"`
	Validation ValidationConfig    `yaml:"validation"`
	Worker     engine.WorkerConfig `yaml:"worker"`
	Retention  RetentionConfig     `yaml:"retention"`
	Redis      redisclient.Config  `yaml:"redis"`
	Database   postgres.Config     `yaml:"database"`
	Logging    LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// BreakersConfig holds the per-service circuit breaker thresholds.
type BreakersConfig struct {
	LLM breaker.Config `yaml:"llm"`
	OCR breaker.Config `yaml:"ocr"`
}

// ValidationConfig holds score validation settings.
type ValidationConfig struct {
	Level string `yaml:"level"` // basic, standard, strict
}

// RetentionConfig holds grade retention settings. Period 0 keeps grades
// forever.
type RetentionConfig struct {
	Period   time.Duration `yaml:"period"`
	Interval time.Duration `yaml:"interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
