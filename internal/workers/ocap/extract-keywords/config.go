// internal/workers/ocap/extract-keywords/config.go
package extractkeywords

import (
	"time"

	"ocap-agent/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout: config.GetDuration(config.GetWorkerConfig(cfg, TaskType).Timeout),
	}
}
