// Package tasks runs fire-and-forget database writes off the request path.
package tasks

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"ocap-agent/internal/common/config"
	"ocap-agent/internal/common/logger"
	"ocap-agent/internal/common/metrics"
	"ocap-agent/internal/models"
)

const (
	TypeCreateOrUpdateSession   = "create_or_update_session"
	TypeCreateWorkflowExecution = "create_workflow_execution"
	TypeUpdateWorkflowExecution = "update_workflow_execution"

	taskTimeout = 10 * time.Second
)

type SessionPayload struct {
	ThreadID              string
	UserID                *int64
	IncrementMessageCount bool
}

type CreateWorkflowPayload struct {
	WorkflowRunID string
	ThreadID      string
	UserID        *int64
	Query         string
}

type UpdateWorkflowPayload struct {
	WorkflowRunID string
	ThreadID      string
	UserID        *int64
	Update        models.WorkflowUpdate
}

func (p SessionPayload) threadKey() string        { return p.ThreadID }
func (p CreateWorkflowPayload) threadKey() string { return p.ThreadID }
func (p UpdateWorkflowPayload) threadKey() string { return p.ThreadID }

type threadKeyed interface {
	threadKey() string
}

type SessionWriter interface {
	Touch(ctx context.Context, threadID string, userID int64, increment bool) error
}

type WorkflowWriter interface {
	Create(ctx context.Context, w *models.WorkflowExecution) error
	Update(ctx context.Context, id string, u models.WorkflowUpdate) error
}

type task struct {
	typ     string
	payload interface{}
}

// Queue is a bounded task queue drained by a fixed set of workers. Tasks of
// one thread always land on the same worker, so they run in submission order.
// Submit never blocks the caller.
type Queue struct {
	shards    []chan task
	sessions  SessionWriter
	workflows WorkflowWriter
	logger    logger.Logger
	workers   int

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewQueue starts the workers right away. Either writer may be nil, in which
// case its tasks are skipped.
func NewQueue(cfg config.BackgroundTasksConfig, sessions SessionWriter, workflows WorkflowWriter, log logger.Logger) *Queue {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 1000
	}

	perShard := size / workers
	if perShard < 1 {
		perShard = 1
	}

	q := &Queue{
		shards:    make([]chan task, workers),
		sessions:  sessions,
		workflows: workflows,
		logger:    log.WithFields(map[string]interface{}{"component": "background_tasks"}),
		workers:   workers,
	}
	for i := range q.shards {
		q.shards[i] = make(chan task, perShard)
		q.wg.Add(1)
		go q.worker(q.shards[i])
	}
	q.logger.Info("background task queue started", map[string]interface{}{"workers": workers, "queueSize": size})
	return q
}

// Submit enqueues a task and reports whether it was accepted. Tasks are
// dropped with a warning when the queue is full or shut down.
func (q *Queue) Submit(taskType string, payload interface{}) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.stopped {
		q.logger.Warn("background task queue is not running, task discarded", map[string]interface{}{"taskType": taskType})
		metrics.BackgroundTasksTotal.WithLabelValues(taskType, "discarded").Inc()
		return false
	}

	select {
	case q.shardFor(payload) <- task{typ: taskType, payload: payload}:
		metrics.BackgroundQueueDepth.Set(float64(q.Len()))
		return true
	default:
		q.logger.Warn("background task queue is full, task discarded", map[string]interface{}{"taskType": taskType})
		metrics.BackgroundTasksTotal.WithLabelValues(taskType, "discarded").Inc()
		return false
	}
}

// Shutdown stops accepting tasks, lets the workers drain what is queued and
// waits for them or for ctx.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		for _, ch := range q.shards {
			close(ch)
		}
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("background task queue shut down", nil)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background queue shutdown: %w", ctx.Err())
	}
}

// Len is the number of tasks waiting across all workers.
func (q *Queue) Len() int {
	n := 0
	for _, ch := range q.shards {
		n += len(ch)
	}
	return n
}

func (q *Queue) shardFor(payload interface{}) chan task {
	k, ok := payload.(threadKeyed)
	if !ok || len(q.shards) == 1 {
		return q.shards[0]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(k.threadKey()))
	return q.shards[h.Sum32()%uint32(len(q.shards))]
}

func (q *Queue) worker(tasks <-chan task) {
	defer q.wg.Done()
	for t := range tasks {
		metrics.BackgroundQueueDepth.Set(float64(q.Len()))
		q.run(t)
	}
}

func (q *Queue) run(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	outcome := "ok"
	err := q.dispatch(ctx, t)
	switch {
	case err == errSkipped:
		outcome = "skipped"
	case err != nil:
		outcome = "error"
		q.logger.Error("background task failed", map[string]interface{}{
			"taskType": t.typ,
			"error":    err.Error(),
		})
	}
	metrics.BackgroundTasksTotal.WithLabelValues(t.typ, outcome).Inc()
}

var errSkipped = fmt.Errorf("task skipped")

func (q *Queue) dispatch(ctx context.Context, t task) error {
	switch t.typ {
	case TypeCreateOrUpdateSession:
		p, ok := t.payload.(SessionPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T", t.payload)
		}
		if q.sessions == nil || p.ThreadID == "" || p.UserID == nil {
			return errSkipped
		}
		return q.sessions.Touch(ctx, p.ThreadID, *p.UserID, p.IncrementMessageCount)

	case TypeCreateWorkflowExecution:
		p, ok := t.payload.(CreateWorkflowPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T", t.payload)
		}
		if q.workflows == nil || p.UserID == nil {
			return errSkipped
		}
		return q.workflows.Create(ctx, &models.WorkflowExecution{
			ID:       p.WorkflowRunID,
			ThreadID: p.ThreadID,
			UserID:   *p.UserID,
			Query:    p.Query,
			Status:   models.WorkflowPending,
		})

	case TypeUpdateWorkflowExecution:
		p, ok := t.payload.(UpdateWorkflowPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T", t.payload)
		}
		if q.workflows == nil || p.UserID == nil || p.WorkflowRunID == "" {
			return errSkipped
		}
		return q.workflows.Update(ctx, p.WorkflowRunID, p.Update)

	default:
		q.logger.Warn("unknown background task type", map[string]interface{}{"taskType": t.typ})
		return errSkipped
	}
}
