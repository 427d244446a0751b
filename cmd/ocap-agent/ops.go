package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ocap-agent/internal/common/camunda"
	"ocap-agent/internal/common/database"
)

// readiness reports the state of each backing service. Only Postgres is
// required; the others degrade features when down.
type readiness struct {
	postgres *database.PostgresClient
	redis    *database.RedisClient
	es       *database.ElasticsearchClient
	zeebe    *camunda.Client
}

func (rd readiness) check(ctx context.Context) (bool, map[string]string) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	state := func(err error) string {
		if err != nil {
			return "down: " + err.Error()
		}
		return "up"
	}

	checks := map[string]string{}
	pgErr := rd.postgres.Ping(ctx)
	checks["postgres"] = state(pgErr)

	if rd.redis != nil {
		checks["redis"] = state(rd.redis.Ping(ctx))
	} else {
		checks["redis"] = "disabled"
	}
	checks["elasticsearch"] = state(rd.es.Ping(ctx))
	if rd.zeebe != nil {
		checks["zeebe"] = state(rd.zeebe.HealthCheck(ctx))
	}
	return pgErr == nil, checks
}

func opsHandler(rd readiness) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		ok, checks := rd.check(r.Context())
		status, code := "ready", http.StatusOK
		if !ok {
			status, code = "not ready", http.StatusServiceUnavailable
		}
		writeStatus(w, code, map[string]interface{}{
			"status": status,
			"checks": checks,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
