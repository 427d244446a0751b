package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocap-agent/internal/common/config"
	"ocap-agent/internal/common/database"
)

func newOpsFixture(t *testing.T, esStatus int) (readiness, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cluster := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(esStatus)
	}))
	t.Cleanup(cluster.Close)

	es, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: cluster.URL})
	require.NoError(t, err)

	return readiness{postgres: database.NewPostgresFromDB(db), es: es}, mock
}

func TestOpsHandler_Ready(t *testing.T) {
	rd, mock := newOpsFixture(t, http.StatusOK)
	mock.ExpectPing()

	rec := httptest.NewRecorder()
	opsHandler(rd).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, "up", body.Checks["postgres"])
	assert.Equal(t, "up", body.Checks["elasticsearch"])
	assert.Equal(t, "disabled", body.Checks["redis"])
	assert.NotContains(t, body.Checks, "zeebe")
}

func TestOpsHandler_NotReadyWithoutPostgres(t *testing.T) {
	rd, mock := newOpsFixture(t, http.StatusServiceUnavailable)
	mock.ExpectPing().WillReturnError(assert.AnError)

	rec := httptest.NewRecorder()
	opsHandler(rd).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not ready")
}

func TestOpsHandler_HealthAndMetrics(t *testing.T) {
	rd, _ := newOpsFixture(t, http.StatusOK)
	h := opsHandler(rd)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
