package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRelationships(t *testing.T) {
	facts := []Fact{
		{Style: "polo", Defect: "broken stitch", Operation: "sewing", Action: "re-thread"},
		{Style: "polo", Defect: "broken stitch", Operation: "hemming", Action: "re-thread"},
		{Style: "tee", Defect: "skip stitch", Operation: "sewing", Error: "e42", Action: "check tension"},
	}

	docs := BuildRelationships(facts)

	byID := make(map[string]RelationshipDoc, len(docs))
	for _, d := range docs {
		byID[d.ID()] = d
	}
	// 2 operations, 2 defects, 1 error, 2 styles
	require.Len(t, docs, 7)
	assert.Equal(t, "operation", docs[0].NodeType)
	assert.Equal(t, "hemming", docs[0].Name)

	sewing := byID["operation::sewing"]
	assert.Equal(t, 2, sewing.TotalCases)
	assert.Empty(t, sewing.RelatedOperations)
	assert.Equal(t, []Related{{Name: "broken stitch", Count: 1}, {Name: "skip stitch", Count: 1}}, sewing.RelatedDefects)
	assert.Equal(t, []Related{{Name: "e42", Count: 1}}, sewing.RelatedErrors)
	assert.Equal(t, []ActionCount{{Action: "check tension", Count: 1}, {Action: "re-thread", Count: 1}}, sewing.TopActions)

	polo := byID["style::polo"]
	assert.Equal(t, []Related{{Name: "broken stitch", Count: 2}}, polo.RelatedDefects)
	assert.Empty(t, polo.RelatedErrors)
	assert.Equal(t, []ActionCount{{Action: "re-thread", Count: 2}}, polo.TopActions)
}

func TestBuildRelationships_TopActionsCapped(t *testing.T) {
	var facts []Fact
	for _, a := range []string{"a", "b", "c", "d", "e", "f", "f"} {
		facts = append(facts, Fact{Defect: "fray", Action: a})
	}

	docs := BuildRelationships(facts)
	require.Len(t, docs, 1)
	assert.Len(t, docs[0].TopActions, topActionLimit)
	assert.Equal(t, ActionCount{Action: "f", Count: 2}, docs[0].TopActions[0])
	assert.Equal(t, 7, docs[0].TotalCases)
}

func TestBuildRelationships_Empty(t *testing.T) {
	assert.Empty(t, BuildRelationships(nil))
}
