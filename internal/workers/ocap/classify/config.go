// internal/workers/ocap/classify/config.go
package classify

import (
	"time"

	"ocap-agent/internal/common/config"
	"ocap-agent/internal/workers/ocap/classify/queries"
)

type Config struct {
	Timeout           time.Duration
	KnowledgeIndex    string
	RelationshipIndex string
	SearchSize        int
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Timeout:           config.GetDuration(config.GetWorkerConfig(cfg, TaskType).Timeout),
		KnowledgeIndex:    cfg.OCAP.KnowledgeIndex,
		RelationshipIndex: cfg.OCAP.RelationshipIndex,
		SearchSize:        cfg.OCAP.SearchSize,
	}
	if c.SearchSize <= 0 {
		c.SearchSize = queries.DefaultSize
	}
	return c
}
