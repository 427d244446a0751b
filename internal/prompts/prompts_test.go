package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocap-agent/internal/models"
)

func TestExtractKeywords(t *testing.T) {
	out, err := ExtractKeywords(ExtractData{Query: "skip stitch on polo", RegistryContext: `{"style": ["polo"]}`})
	require.NoError(t, err)
	assert.Contains(t, out, "skip stitch on polo")
	assert.Contains(t, out, `{"style": ["polo"]}`)
}

func TestSummarizeThreadMemory(t *testing.T) {
	cls := "precise"
	out, err := SummarizeThreadMemory(MemoryData{Interactions: []models.Interaction{
		{Query: "first", Response: "answer one", Classification: &cls},
		{Query: "second"},
	}})
	require.NoError(t, err)
	assert.Contains(t, out, "Interaction 1:")
	assert.Contains(t, out, "Classification: precise")
	assert.Contains(t, out, "Interaction 2:")
	assert.Contains(t, out, "Response: N/A")
	assert.Contains(t, out, "Classification: unknown")
}

func TestAnalyzeQuery_OptionalSections(t *testing.T) {
	out, err := AnalyzeQuery(AnalyzeData{Query: "q"})
	require.NoError(t, err)
	assert.NotContains(t, out, "Conversation so far")
	assert.NotContains(t, out, "earlier turns")
	assert.Contains(t, out, "(none)")

	summary := "talked about hemming"
	out, err = AnalyzeQuery(AnalyzeData{
		Query:               "q",
		RegistryMatches:     []models.RegistryMatch{{NodeType: "defect", Value: "skip stitch", MatchType: "exact", Confidence: 100}},
		ThreadMemorySummary: &summary,
		HistoricalRegistryMatches: []models.HistoricalWorkflow{
			{Query: "earlier", RegistryMatches: []models.RegistryMatch{{NodeType: "style", Value: "polo"}}},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "talked about hemming")
	assert.Contains(t, out, `"skip stitch"`)
	assert.Contains(t, out, `"earlier"`)
}

func TestSummarize(t *testing.T) {
	out, err := Summarize(SummarizeData{
		Query:                 "how to fix",
		Classification:        "precise",
		ClassifyFormattedText: "Found 1 matching record(s)",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Classification: precise")
	assert.Contains(t, out, "Found 1 matching record(s)")
	assert.Contains(t, out, "merge_applied: false")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate(5, "abc"))
	assert.Equal(t, "ab...", truncate(2, "abc"))
}
