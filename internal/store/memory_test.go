package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocap-agent/internal/common/config"
	commonerrors "ocap-agent/internal/common/errors"
	"ocap-agent/internal/models"
)

func newMiniredisStore(t *testing.T, cfg config.OCAPConfig) (*MemoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewMemoryStore(client, cfg), mr
}

func record(id, thread string) *models.WorkflowRecord {
	cls := "precise"
	meta, _ := json.Marshal(map[string]interface{}{
		"registry_matches": []models.RegistryMatch{{NodeType: "defect", Value: "skip stitch", MatchType: "exact", Confidence: 100}},
	})
	return &models.WorkflowRecord{
		WorkflowRunID:  id,
		ThreadID:       thread,
		Query:          "query " + id,
		Response:       "response " + id,
		Classification: &cls,
		Keywords:       []string{"stitch"},
		Metadata:       meta,
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestMemoryStore_SaveAndRead(t *testing.T) {
	store, mr := newMiniredisStore(t, config.OCAPConfig{MemoryTTL: 3600})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, record("w1", "t1")))
	require.NoError(t, store.Save(ctx, record("w2", "t1")))

	assert.Equal(t, time.Hour, mr.TTL("workflow:w1"))
	assert.Equal(t, time.Hour, mr.TTL("thread:t1:workflows"))

	ids, err := store.ThreadWorkflowIDs(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"w2", "w1"}, ids)

	rec, err := store.Get(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "query w1", rec.Query)
	assert.Equal(t, "precise", *rec.Classification)
	require.Len(t, rec.RegistryMatches(), 1)
	assert.Equal(t, "skip stitch", rec.RegistryMatches()[0].Value)
}

func TestMemoryStore_TrimsThreadList(t *testing.T) {
	store, mr := newMiniredisStore(t, config.OCAPConfig{MemoryMaxWorkflows: 3})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, record(fmt.Sprintf("w%d", i), "t")))
	}

	list, err := mr.List("thread:t:workflows")
	require.NoError(t, err)
	assert.Equal(t, []string{"w4", "w3", "w2"}, list)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store, _ := newMiniredisStore(t, config.OCAPConfig{})

	rec, err := store.Get(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemoryStore_ThreadWorkflowsSkipsExpired(t *testing.T) {
	store, mr := newMiniredisStore(t, config.OCAPConfig{})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, record("w1", "t")))
	require.NoError(t, store.Save(ctx, record("w2", "t")))
	mr.Del("workflow:w1")

	recs, err := store.ThreadWorkflows(ctx, "t", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "w2", recs[0].WorkflowRunID)
}

func TestMemoryStore_ReadFailures(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewMemoryStore(client, config.OCAPConfig{})
	ctx := context.Background()

	mock.ExpectLRange("thread:t:workflows", 0, -1).SetErr(errors.New("connection reset"))
	_, err := store.ThreadWorkflowIDs(ctx, "t")
	stdErr, ok := commonerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, commonerrors.ErrCodeMemoryReadFailed, stdErr.Code)

	mock.ExpectGet("workflow:bad").SetVal("{not json")
	_, err = store.Get(ctx, "bad")
	stdErr, ok = commonerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, commonerrors.ErrCodeMemoryReadFailed, stdErr.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryStore_Nil(t *testing.T) {
	var store *MemoryStore
	assert.False(t, store.Available())

	_, err := store.ThreadWorkflowIDs(context.Background(), "t")
	stdErr, ok := commonerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, commonerrors.ErrCodeMemoryUnavailable, stdErr.Code)
}
