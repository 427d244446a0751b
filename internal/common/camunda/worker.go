// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"ocap-agent/internal/common/config"
	"ocap-agent/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// HandlerFunc is the shape every OCAP job handler exposes as Handle.
type HandlerFunc func(client worker.JobClient, job entities.Job)

// JobRecorder receives one call per handled job.
type JobRecorder interface {
	RecordJobProcessed(ctx context.Context, taskType, status string)
}

// WorkerPool opens Zeebe job workers and closes them together on shutdown.
type WorkerPool struct {
	client   zbc.Client
	logger   *zap.Logger
	recorder JobRecorder
	workers  []worker.JobWorker
}

func NewWorkerPool(client zbc.Client, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{client: client, logger: logger}
}

// SetRecorder must be called before Start.
func (p *WorkerPool) SetRecorder(r JobRecorder) {
	p.recorder = r
}

// Start opens a worker for taskType unless it is disabled in configuration.
func (p *WorkerPool) Start(taskType string, wcfg config.WorkerConfig, handler HandlerFunc) {
	if !wcfg.Enabled {
		p.logger.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	jw := p.client.NewJobWorker().
		JobType(taskType).
		Handler(instrument(taskType, handler, p.recorder)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()
	p.workers = append(p.workers, jw)

	p.logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}

func (p *WorkerPool) Len() int {
	return len(p.workers)
}

// Close stops polling and waits for in-flight jobs.
func (p *WorkerPool) Close() {
	for _, w := range p.workers {
		w.Close()
		w.AwaitClose()
	}
	p.workers = nil
}

func instrument(taskType string, handler HandlerFunc, recorder JobRecorder) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

		start := time.Now()
		handler(client, job)
		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		if recorder != nil {
			recorder.RecordJobProcessed(context.Background(), taskType, "handled")
		}
	}
}
