package classify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocap-agent/internal/common/logger"
	"ocap-agent/internal/models"
	"ocap-agent/internal/workers/ocap/classify/queries"
)

type capturedSearch struct {
	Path string
	Body map[string]interface{}
}

type fakeES struct {
	mu       sync.Mutex
	searches []capturedSearch
	status   int
	hits     []map[string]interface{}
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	raw, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.searches = append(f.searches, capturedSearch{Path: r.URL.Path, Body: body})
	f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"},"status":404}`))
		return
	}

	hits := make([]map[string]interface{}, 0, len(f.hits))
	for _, h := range f.hits {
		hits = append(hits, map[string]interface{}{"_source": h})
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"took": 1,
		"hits": map[string]interface{}{
			"total": map[string]interface{}{"value": len(hits)},
			"hits":  hits,
		},
	})
}

func createTestConfig() *Config {
	return &Config{
		Timeout:           30 * time.Second,
		KnowledgeIndex:    "ocap-knowledge-base",
		RelationshipIndex: "ocap-relationship-index",
		SearchSize:        50,
	}
}

func newTestHandler(t *testing.T, es *fakeES) *Handler {
	t.Helper()
	srv := httptest.NewServer(es)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewHandler(createTestConfig(), client, logger.NewTestLogger(t))
}

func filters(t *testing.T, body map[string]interface{}) []interface{} {
	t.Helper()
	q := body["query"].(map[string]interface{})
	return q["bool"].(map[string]interface{})["filter"].([]interface{})
}

func TestExecute_Precise(t *testing.T) {
	es := &fakeES{hits: []map[string]interface{}{
		{"style": "polo", "defect": "broken stitch", "operation": "sewing", "error": "", "action": "re-thread", "case_id": "C-1"},
	}}
	h := newTestHandler(t, es)

	out, err := h.Execute(context.Background(), &Input{
		Classification: models.ClassificationPrecise,
		RegistryMatches: []models.RegistryMatch{
			{NodeType: "defect", Value: "broken stitch"},
			{NodeType: "operation", Value: "sewing"},
			{NodeType: "operation", Value: " nan "},
			{NodeType: "operation", Value: "hemming"},
			{NodeType: "defect", Value: "skip stitch"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Classify)

	res := out.Classify
	assert.Equal(t, "ocap-knowledge-base", *res.IndexUsed)
	assert.Equal(t, queries.MethodFullRows, *res.QueryMethod)
	assert.Equal(t, 1, res.ResultsCount)
	assert.Contains(t, res.FormattedText, "Found 1 matching record(s) in the knowledge base:")
	assert.Contains(t, res.FormattedText, "  Case Id: C-1")

	require.Len(t, es.searches, 1)
	assert.Equal(t, "/ocap-knowledge-base/_search", es.searches[0].Path)
	body := es.searches[0].Body
	assert.EqualValues(t, 50, body["size"])
	assert.Equal(t, map[string]interface{}{"excludes": []interface{}{"content"}}, body["_source"])

	f := filters(t, body)
	require.Len(t, f, 3)
	assert.Equal(t, map[string]interface{}{"term": map[string]interface{}{"defect": "broken stitch"}}, f[0])
	assert.Equal(t, map[string]interface{}{"terms": map[string]interface{}{"operation": []interface{}{"sewing", "hemming"}}}, f[1])
	assert.Equal(t, map[string]interface{}{"term": map[string]interface{}{"style": ""}}, f[2])
}

func TestExecute_ErrorPrecise(t *testing.T) {
	es := &fakeES{}
	h := newTestHandler(t, es)

	out, err := h.Execute(context.Background(), &Input{
		Classification:  models.ClassificationErrorPrecise,
		RegistryMatches: []models.RegistryMatch{{NodeType: "error", Value: "E42 thread tension"}},
	})
	require.NoError(t, err)

	res := out.Classify
	assert.Equal(t, queries.MethodRowsByError, *res.QueryMethod)
	assert.Equal(t, 0, res.ResultsCount)
	assert.Equal(t, "No matching records found for this error in the knowledge base.", res.FormattedText)

	f := filters(t, es.searches[0].Body)
	assert.Equal(t, map[string]interface{}{"term": map[string]interface{}{"error": "E42 thread tension"}}, f[0])
}

func TestExecute_NonPrecise(t *testing.T) {
	es := &fakeES{hits: []map[string]interface{}{
		{"node_type": "defect", "name": "broken stitch", "total_cases": 4},
	}}
	h := newTestHandler(t, es)

	out, err := h.Execute(context.Background(), &Input{
		Classification: models.ClassificationNonPrecise,
		RegistryMatches: []models.RegistryMatch{
			{NodeType: "defect", Value: "broken stitch", MatchType: "exact"},
			{NodeType: "operation", Value: "side seam", MatchType: "partial"},
		},
	})
	require.NoError(t, err)

	res := out.Classify
	assert.Equal(t, "ocap-relationship-index", *res.IndexUsed)
	assert.Contains(t, res.FormattedText, "1. DEFECT :: broken stitch")

	require.Len(t, es.searches, 1)
	assert.Equal(t, "/ocap-relationship-index/_search", es.searches[0].Path)
	should := es.searches[0].Body["query"].(map[string]interface{})["bool"].(map[string]interface{})["should"].([]interface{})
	assert.Len(t, should, 2)
}

func TestExecute_NonPreciseWithoutMatchesSkipsSearch(t *testing.T) {
	es := &fakeES{}
	h := newTestHandler(t, es)

	out, err := h.Execute(context.Background(), &Input{Classification: models.ClassificationNonPrecise})
	require.NoError(t, err)
	assert.Empty(t, es.searches)
	assert.Equal(t, "No matching relationship nodes found in the relationship index.", out.Classify.FormattedText)
}

func TestExecute_Generic(t *testing.T) {
	es := &fakeES{}
	h := newTestHandler(t, es)

	out, err := h.Execute(context.Background(), &Input{Classification: models.ClassificationGeneric})
	require.NoError(t, err)
	assert.Empty(t, es.searches)
	assert.Nil(t, out.Classify.IndexUsed)
	assert.Equal(t, queries.MethodGeneric, *out.Classify.QueryMethod)
	assert.Equal(t, queries.GenericText, out.Classify.FormattedText)
}

func TestExecute_SearchFailure(t *testing.T) {
	es := &fakeES{status: http.StatusNotFound}
	h := newTestHandler(t, es)

	out, err := h.Execute(context.Background(), &Input{
		Classification:  models.ClassificationErrorPrecise,
		RegistryMatches: []models.RegistryMatch{{NodeType: "error", Value: "E1"}},
	})
	require.NoError(t, err)

	res := out.Classify
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, 0, res.ResultsCount)
	assert.True(t, strings.HasPrefix(res.FormattedText, "Error occurred while querying Elasticsearch: "))
}

func TestExecute_NoClassification(t *testing.T) {
	h := newTestHandler(t, &fakeES{})
	out, err := h.Execute(context.Background(), &Input{Query: "q"})
	require.NoError(t, err)
	assert.Nil(t, out.Classify)
}
