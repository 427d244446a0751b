package api

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"ocap-agent/internal/common/observability"
	"ocap-agent/internal/common/validation"
	"ocap-agent/internal/processing"
)

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to " + s.app.Name,
		"version": s.app.Version,
		"docs":    "/docs",
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.deps.Tracer.Start(r.Context(), "health_check")
	defer span.End()
	span.SetAttributes(
		attribute.String("endpoint", r.URL.Path),
		attribute.String("service.name", s.tracer),
	)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"app_name":        s.app.Name,
		"version":         s.app.Version,
		"service_name":    s.tracer,
		"tracing_enabled": s.deps.TracingEnabled,
		"trace_id":        observability.TraceID(ctx),
	})
}

// process validates the body against the request schema before the
// processor ever sees it.
func (s *Server) process(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if res := s.processSchema.ValidateBytes(body); !res.Valid {
		writeValidation(w, res)
		return
	}

	var req processing.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeValidation(w, validation.DecodeError(err))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Processor.Handle(req.Query))
}
