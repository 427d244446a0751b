// internal/workers/ocap/summarize/config.go
package summarize

import (
	"time"

	"ocap-agent/internal/common/config"
)

type Config struct {
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout:     config.GetDuration(config.GetWorkerConfig(cfg, TaskType).Timeout),
		Temperature: 0.5,
		MaxTokens:   600,
	}
}
