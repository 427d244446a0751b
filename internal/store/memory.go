package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ocap-agent/internal/common/config"
	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/models"
)

const (
	defaultMemoryTTL          = 30 * 24 * time.Hour
	defaultMemoryMaxWorkflows = 100
)

func WorkflowKey(id string) string { return "workflow:" + id }

func ThreadWorkflowsKey(threadID string) string { return fmt.Sprintf("thread:%s:workflows", threadID) }

// MemoryStore keeps finished workflow states in Redis, indexed per thread
// newest first. A nil *MemoryStore is valid and reports itself unavailable.
type MemoryStore struct {
	client       redis.Cmdable
	ttl          time.Duration
	maxWorkflows int64
	tracer       trace.Tracer
}

func NewMemoryStore(client redis.Cmdable, cfg config.OCAPConfig) *MemoryStore {
	ttl := time.Duration(cfg.MemoryTTL) * time.Second
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	limit := int64(cfg.MemoryMaxWorkflows)
	if limit <= 0 {
		limit = defaultMemoryMaxWorkflows
	}
	return &MemoryStore{
		client:       client,
		ttl:          ttl,
		maxWorkflows: limit,
		tracer:       otel.Tracer("ocap-agent/store"),
	}
}

func (m *MemoryStore) Available() bool {
	return m != nil && m.client != nil
}

// Save stores rec under workflow:{id} and pushes the id onto its thread list,
// trimming the list to the newest maxWorkflows entries.
func (m *MemoryStore) Save(ctx context.Context, rec *models.WorkflowRecord) error {
	if !m.Available() {
		return errors.NewMemoryUnavailableError()
	}
	key := WorkflowKey(rec.WorkflowRunID)
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.NewMemoryWriteFailedError(key, err)
	}

	threadKey := ThreadWorkflowsKey(rec.ThreadID)
	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, m.ttl)
		pipe.LPush(ctx, threadKey, rec.WorkflowRunID)
		pipe.Expire(ctx, threadKey, m.ttl)
		pipe.LTrim(ctx, threadKey, 0, m.maxWorkflows-1)
		return nil
	})
	if err != nil {
		return errors.NewMemoryWriteFailedError(key, err)
	}
	return nil
}

// ThreadWorkflowIDs lists the run ids of a thread, newest first.
func (m *MemoryStore) ThreadWorkflowIDs(ctx context.Context, threadID string) ([]string, error) {
	if !m.Available() {
		return nil, errors.NewMemoryUnavailableError()
	}
	key := ThreadWorkflowsKey(threadID)
	ctx, span := m.tracer.Start(ctx, "redis.lrange", trace.WithAttributes(
		attribute.String("redis.key", key),
		attribute.String("redis.command", "LRANGE"),
		attribute.String("thread.id", threadID),
	))
	defer span.End()

	ids, err := m.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.NewMemoryReadFailedError(key, err)
	}
	span.SetAttributes(attribute.Int("redis.result_count", len(ids)))
	return ids, nil
}

// Get returns nil without error when the workflow has expired or never existed.
func (m *MemoryStore) Get(ctx context.Context, id string) (*models.WorkflowRecord, error) {
	if !m.Available() {
		return nil, errors.NewMemoryUnavailableError()
	}
	key := WorkflowKey(id)
	ctx, span := m.tracer.Start(ctx, "redis.get", trace.WithAttributes(
		attribute.String("redis.key", key),
		attribute.String("redis.command", "GET"),
		attribute.String("workflow.run_id", id),
	))
	defer span.End()

	data, err := m.client.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("redis.key_found", false))
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.NewMemoryReadFailedError(key, err)
	}
	span.SetAttributes(attribute.Bool("redis.key_found", true))

	var rec models.WorkflowRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.NewMemoryReadFailedError(key, err)
	}
	return &rec, nil
}

// ThreadWorkflows loads up to limit stored states of a thread, newest first.
// Expired or unreadable entries are skipped.
func (m *MemoryStore) ThreadWorkflows(ctx context.Context, threadID string, limit int) ([]*models.WorkflowRecord, error) {
	ids, err := m.ThreadWorkflowIDs(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*models.WorkflowRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := m.Get(ctx, id)
		if err != nil || rec == nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
