// internal/workers/ocap/classify/models.go
package classify

import "ocap-agent/internal/models"

type Input struct {
	Query           string                 `json:"query"`
	Classification  models.Classification  `json:"classification"`
	RegistryMatches []models.RegistryMatch `json:"registry_matches"`
}

// Output is nil Classify when there was nothing to classify.
type Output struct {
	Classify *models.ClassifyResult `json:"classify,omitempty"`
}
