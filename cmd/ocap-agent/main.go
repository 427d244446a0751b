// cmd/ocap-agent/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ocap-agent/internal/api"
	"ocap-agent/internal/common/auth"
	"ocap-agent/internal/common/aws"
	"ocap-agent/internal/common/azureopenai"
	"ocap-agent/internal/common/camunda"
	"ocap-agent/internal/common/config"
	"ocap-agent/internal/common/database"
	"ocap-agent/internal/common/logger"
	"ocap-agent/internal/common/observability"
	"ocap-agent/internal/ocap"
	"ocap-agent/internal/processing"
	ocapsvc "ocap-agent/internal/services/ocap"
	"ocap-agent/internal/store"
	"ocap-agent/internal/tasks"
	analyzequery "ocap-agent/internal/workers/ocap/analyze-query"
	"ocap-agent/internal/workers/ocap/classify"
	extractkeywords "ocap-agent/internal/workers/ocap/extract-keywords"
	"ocap-agent/internal/workers/ocap/summarize"
	threadmemory "ocap-agent/internal/workers/ocap/thread-memory"
	"ocap-agent/pkg/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format).With(zap.String("service", cfg.Tracing.ServiceName))
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting ocap agent...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	tracing, err := observability.NewTracing(ctx, cfg.Tracing, cfg.App.Version)
	if err != nil {
		zapLog.Fatal("tracing setup failed", zap.Error(err))
	}
	obs, err := observability.New(cfg.Tracing.ServiceName)
	if err != nil {
		zapLog.Fatal("metrics setup failed", zap.Error(err))
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(ctx, func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "postgres connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.EnsureSchema(ctx, store.Schema); err != nil {
		zapLog.Fatal("schema setup failed", zap.Error(err))
	}
	zapLog.Info("postgres connected successfully")

	// --- Init Elasticsearch with retry; classify degrades without it ---
	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		zapLog.Fatal("elasticsearch client setup failed", zap.Error(err))
	}
	defer es.Close()
	if err := retryWithBackoff(ctx, func() error { return es.Ping(ctx) }, 5, 2*time.Second, zapLog, "elasticsearch connection"); err != nil {
		zapLog.Warn("elasticsearch unreachable; classification will report search errors", zap.Error(err))
	} else {
		zapLog.Info("elasticsearch connected successfully")
	}

	// --- Init Redis; thread memory is optional ---
	var memory *store.MemoryStore
	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err == nil {
		err = retryWithBackoff(ctx, func() error { return rdb.Ping(ctx) }, 5, time.Second, zapLog, "redis connection")
	}
	if err != nil {
		zapLog.Warn("redis unavailable; thread memory disabled", zap.Error(err))
		if rdb != nil {
			_ = rdb.Close()
			rdb = nil
		}
	} else {
		defer rdb.Close()
		memory = store.NewMemoryStore(rdb.Client, cfg.OCAP)
		zapLog.Info("redis connected successfully")
	}

	// --- Domain wiring ---
	reg, err := registry.LoadRegistry(cfg.OCAP.RegistryPath)
	if err != nil {
		zapLog.Warn("node registry not loaded; keyword matching runs without it",
			zap.String("path", cfg.OCAP.RegistryPath), zap.Error(err))
	}
	llm := azureopenai.NewClient(&cfg.AzureOpenAI, log)
	if !llm.Configured() {
		zapLog.Warn("azure openai not configured; llm nodes will use their fallbacks")
	}

	notifier, err := aws.NewNotifierFromConfig(ctx, cfg.Notifications, log)
	if err != nil {
		zapLog.Warn("notifications disabled", zap.Error(err))
		notifier = nil
	}

	queue := tasks.NewQueue(cfg.BackgroundTasks, store.NewSessionStore(pg), store.NewWorkflowStore(pg), log)

	nodes := nodeHandlers{
		extract:   extractkeywords.NewHandler(extractkeywords.LoadConfig(cfg), llm, reg, log),
		memory:    threadmemory.NewHandler(threadmemory.LoadConfig(cfg), llm, memoryOrNil(memory), log),
		analyze:   analyzequery.NewHandler(analyzequery.LoadConfig(cfg), llm, log),
		classify:  classify.NewHandler(classify.LoadConfig(cfg), es.Client, log),
		summarize: summarize.NewHandler(summarize.LoadConfig(cfg), llm, log),
	}
	graph := ocap.NewGraph(ocap.Nodes{
		Extract:   nodes.extract,
		Memory:    nodes.memory,
		Analyze:   nodes.analyze,
		Classify:  nodes.classify,
		Summarize: nodes.summarize,
	}, log, ocap.WithTracer(tracing.Tracer()))

	svcDeps := ocapsvc.Deps{
		Graph:    graph,
		Tasks:    queue,
		Notifier: notifier,
		Recorder: obs,
	}
	if memory != nil {
		svcDeps.Memory = memory
	}
	service := ocapsvc.NewService(svcDeps, cfg.OCAP, log)

	// --- Optional Zeebe job workers ---
	var pool *camunda.WorkerPool
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(ctx, func() error {
			var err error
			zeebe, err = camunda.Dial(ctx, cfg.Camunda)
			return err
		}, 10, 2*time.Second, zapLog, "zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		pool = camunda.NewWorkerPool(zeebe.GetClient(), zapLog)
		pool.SetRecorder(obs)
		registerWorkers(pool, cfg, nodes, service, log)
		zapLog.Info("zeebe workers registered", zap.Int("count", pool.Len()))
	}

	// --- HTTP servers ---
	router := api.NewServer(cfg, api.Deps{
		Processor:      processing.NewService(),
		Users:          store.NewUserStore(pg),
		Tokens:         auth.NewTokenManager(cfg.Auth.SecretKey, cfg.Auth.AccessTokenTTL()),
		Passwords:      auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		OCAP:           service,
		Notifier:       notifier,
		Tracer:         tracing.Tracer(),
		TracingEnabled: tracing.Enabled(),
	}, log)

	apiServer := &http.Server{
		Addr:              cfg.App.Addr(),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	opsServer := &http.Server{
		Addr: cfg.App.MetricsAddr(),
		Handler: opsHandler(readiness{
			postgres: pg,
			redis:    rdb,
			es:       es,
			zeebe:    zeebe,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serve := func(name string, srv *http.Server) {
		zapLog.Info(name+" listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error(name+" failed", zap.Error(err))
			stop()
		}
	}
	go serve("api server", apiServer)
	go serve("ops server", opsServer)

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("shutdown signal received, stopping...")

	timeout := config.GetDuration(cfg.App.ShutdownTimeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("api server shutdown failed", zap.Error(err))
	}
	if pool != nil {
		pool.Close()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("error closing zeebe client", zap.Error(err))
		}
	}
	if err := queue.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("background queue did not drain", zap.Error(err))
	}
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("ops server shutdown failed", zap.Error(err))
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("tracer flush failed", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("meter provider shutdown failed", zap.Error(err))
	}

	zapLog.Info("ocap agent stopped gracefully")
}

// memoryOrNil keeps a disabled store from becoming a non-nil interface.
func memoryOrNil(m *store.MemoryStore) threadmemory.Memory {
	if m == nil {
		return nil
	}
	return m
}
