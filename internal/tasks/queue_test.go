package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocap-agent/internal/common/config"
	"ocap-agent/internal/common/logger"
	"ocap-agent/internal/models"
)

type call struct {
	op       string
	threadID string
	id       string
}

type recorder struct {
	mu      sync.Mutex
	calls   []call
	started chan struct{}
	release chan struct{}
}

func (r *recorder) record(c call) {
	if r.started != nil {
		r.started <- struct{}{}
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) Touch(ctx context.Context, threadID string, userID int64, increment bool) error {
	r.record(call{op: "touch", threadID: threadID})
	return nil
}

func (r *recorder) Create(ctx context.Context, w *models.WorkflowExecution) error {
	r.record(call{op: "create", threadID: w.ThreadID, id: w.ID})
	return nil
}

func (r *recorder) Update(ctx context.Context, id string, u models.WorkflowUpdate) error {
	r.record(call{op: "update:" + string(u.Status), id: id})
	return nil
}

func (r *recorder) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func uid(v int64) *int64 { return &v }

func TestQueue_RunsTasksInOrderPerThread(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(config.BackgroundTasksConfig{Workers: 4, QueueSize: 100}, rec, rec, logger.NewTestLogger(t))

	require.True(t, q.Submit(TypeCreateOrUpdateSession, SessionPayload{ThreadID: "t1", UserID: uid(1), IncrementMessageCount: true}))
	require.True(t, q.Submit(TypeCreateWorkflowExecution, CreateWorkflowPayload{WorkflowRunID: "r1", ThreadID: "t1", UserID: uid(1), Query: "q"}))
	require.True(t, q.Submit(TypeUpdateWorkflowExecution, UpdateWorkflowPayload{
		WorkflowRunID: "r1",
		ThreadID:      "t1",
		UserID:        uid(1),
		Update:        models.WorkflowUpdate{Status: models.WorkflowCompleted},
	}))

	require.NoError(t, q.Shutdown(context.Background()))

	calls := rec.snapshot()
	require.Len(t, calls, 3)
	assert.Equal(t, "touch", calls[0].op)
	assert.Equal(t, "create", calls[1].op)
	assert.Equal(t, "update:completed", calls[2].op)
}

func TestQueue_SkipsAnonymousAndUnknown(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(config.BackgroundTasksConfig{Workers: 1, QueueSize: 10}, rec, rec, logger.NewTestLogger(t))

	q.Submit(TypeCreateOrUpdateSession, SessionPayload{ThreadID: "t1"})
	q.Submit(TypeCreateWorkflowExecution, CreateWorkflowPayload{WorkflowRunID: "r1", ThreadID: "t1"})
	q.Submit("reindex_everything", nil)

	require.NoError(t, q.Shutdown(context.Background()))
	assert.Empty(t, rec.snapshot())
}

func TestQueue_NilWriters(t *testing.T) {
	q := NewQueue(config.BackgroundTasksConfig{Workers: 1, QueueSize: 10}, nil, nil, logger.NewTestLogger(t))

	assert.True(t, q.Submit(TypeCreateOrUpdateSession, SessionPayload{ThreadID: "t1", UserID: uid(1)}))
	assert.NoError(t, q.Shutdown(context.Background()))
}

func TestQueue_DiscardsWhenFull(t *testing.T) {
	rec := &recorder{started: make(chan struct{}), release: make(chan struct{})}
	q := NewQueue(config.BackgroundTasksConfig{Workers: 1, QueueSize: 1}, rec, rec, logger.NewTestLogger(t))

	payload := SessionPayload{ThreadID: "t1", UserID: uid(1)}
	require.True(t, q.Submit(TypeCreateOrUpdateSession, payload))
	<-rec.started // worker holds the first task

	assert.True(t, q.Submit(TypeCreateOrUpdateSession, payload))
	assert.False(t, q.Submit(TypeCreateOrUpdateSession, payload))

	close(rec.release)
	go func() {
		for range rec.started {
		}
	}()
	require.NoError(t, q.Shutdown(context.Background()))
	close(rec.started)
	assert.Len(t, rec.snapshot(), 2)
}

func TestQueue_SubmitAfterShutdown(t *testing.T) {
	q := NewQueue(config.BackgroundTasksConfig{}, nil, nil, logger.NewTestLogger(t))
	require.NoError(t, q.Shutdown(context.Background()))

	assert.False(t, q.Submit(TypeCreateOrUpdateSession, SessionPayload{ThreadID: "t"}))
	assert.NoError(t, q.Shutdown(context.Background()))
}

func TestQueue_ShutdownHonoursContext(t *testing.T) {
	rec := &recorder{started: make(chan struct{}), release: make(chan struct{})}
	q := NewQueue(config.BackgroundTasksConfig{Workers: 1, QueueSize: 1}, rec, rec, logger.NewTestLogger(t))

	q.Submit(TypeCreateOrUpdateSession, SessionPayload{ThreadID: "t1", UserID: uid(1)})
	<-rec.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, q.Shutdown(ctx))

	close(rec.release)
}
