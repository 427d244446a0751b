// Package api is the HTTP surface of the OCAP agent: an explicit route table
// over net/http, request validation at the boundary and JSON responses.
package api

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"ocap-agent/internal/common/auth"
	"ocap-agent/internal/common/config"
	"ocap-agent/internal/common/logger"
	"ocap-agent/internal/common/validation"
	"ocap-agent/internal/models"
	"ocap-agent/internal/processing"
)

type Processor interface {
	Handle(query string) processing.Response
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByUsernameOrEmail(ctx context.Context, login string) (*models.User, error)
}

type QueryService interface {
	ProcessQuery(ctx context.Context, query string, threadID *string, userID *int64) *models.OCAPQueryResponse
	ThreadWorkflows(ctx context.Context, threadID string, limit int) ([]*models.WorkflowRecord, error)
}

type Welcomer interface {
	Welcome(ctx context.Context, email, username string) error
}

// Deps are the collaborators of the HTTP layer. Users, Tokens and Passwords
// are needed by the auth routes; OCAP by the query routes.
type Deps struct {
	Processor      Processor
	Users          UserRepository
	Tokens         *auth.TokenManager
	Passwords      *auth.PasswordHasher
	OCAP           QueryService
	Notifier       Welcomer
	Tracer         trace.Tracer
	TracingEnabled bool
}

// Route is one entry of the route table.
type Route struct {
	Method  string
	Path    string
	Auth    bool
	Handler http.HandlerFunc
}

type Server struct {
	app    config.AppConfig
	tracer string
	deps   Deps
	logger logger.Logger

	structs       *validation.StructValidator
	processSchema *validation.Schema
	querySchema   *validation.Schema
}

func NewServer(cfg *config.Config, deps Deps, log logger.Logger) *Server {
	if deps.Processor == nil {
		deps.Processor = processing.NewService()
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Server{
		app:           cfg.App,
		tracer:        cfg.Tracing.ServiceName,
		deps:          deps,
		logger:        log.WithFields(map[string]interface{}{"component": "api"}),
		structs:       validation.NewStructValidator(),
		processSchema: validation.MustCompile(processRequestSchema),
		querySchema:   validation.MustCompile(ocapQueryRequestSchema),
	}
}

// Routes is the route table, built once per call from the server config.
func (s *Server) Routes() []Route {
	p := s.app.APIPrefix
	return []Route{
		{Method: http.MethodGet, Path: "/{$}", Handler: s.root},
		{Method: http.MethodGet, Path: p + "/health", Handler: s.health},
		{Method: http.MethodPost, Path: p + "/process", Handler: s.process},
		{Method: http.MethodPost, Path: p + "/register", Handler: s.register},
		{Method: http.MethodPost, Path: p + "/login", Handler: s.login},
		{Method: http.MethodPost, Path: p + "/ocap/query", Auth: true, Handler: s.ocapQuery},
		{Method: http.MethodGet, Path: p + "/ocap/threads/{thread_id}/workflows", Auth: true, Handler: s.threadWorkflows},
	}
}

// Handler mounts the route table. Every route is logged and counted; the
// whole mux is traced when tracing is on.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, rt := range s.Routes() {
		var h http.Handler = rt.Handler
		if rt.Auth {
			h = s.requireUser(h)
		}
		mux.Handle(rt.Method+" "+rt.Path, instrument(rt.Path, s.logger, h))
	}

	var h http.Handler = withRequestID(mux)
	if s.deps.TracingEnabled {
		h = otelhttp.NewHandler(h, s.tracer,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
	return h
}

var (
	processRequestSchema = validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"query": {Type: "string", Description: "Text to acknowledge"},
		},
		Required: []string{"query"},
	}

	ocapQueryRequestSchema = validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"query":     {Type: "string", Description: "Manufacturing question", MinLength: validation.Int(1)},
			"thread_id": {Type: []string{"string", "null"}, Description: "Conversation thread to continue"},
		},
		Required: []string{"query"},
	}
)
