// internal/workers/ocap/thread-memory/config.go
package threadmemory

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
		Temperature: 0.3,
		MaxTokens:   800,
	}
}
