// internal/workers/ocap/extract-keywords/models.go
package extractkeywords

import "ocap-agent/internal/models"

type Input struct {
	Query string `json:"query"`
}

type Output struct {
	Keywords         []string               `json:"keywords"`
	RegistryMatches  []models.RegistryMatch `json:"registry_matches"`
	QuerySpecSummary string                 `json:"query_spec_summary"`
	// Fallback is set when the LLM result could not be used.
	Fallback bool `json:"-"`
}

// llmResult is the raw shape the model is asked to produce. Fields stay loose
// because models do not always honour the requested types.
type llmResult struct {
	Keywords         interface{} `json:"keywords"`
	RegistryMatches  interface{} `json:"registry_matches"`
	QuerySpecSummary interface{} `json:"query_spec_summary"`
}
