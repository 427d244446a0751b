package camunda

import (
	"context"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/stretchr/testify/assert"
)

type countingRecorder struct {
	calls map[string]int
}

func (r *countingRecorder) RecordJobProcessed(_ context.Context, taskType, status string) {
	r.calls[taskType+"/"+status]++
}

func TestInstrument_RecordsHandledJobs(t *testing.T) {
	rec := &countingRecorder{calls: map[string]int{}}
	var seen int64

	h := instrument("ocap-classify", func(_ worker.JobClient, job entities.Job) {
		seen = job.Key
	}, rec)

	h(nil, entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 42, Type: "ocap-classify"}})

	assert.Equal(t, int64(42), seen)
	assert.Equal(t, 1, rec.calls["ocap-classify/handled"])
}

func TestInstrument_NilRecorder(t *testing.T) {
	called := false
	h := instrument("ocap-summarize", func(worker.JobClient, entities.Job) { called = true }, nil)
	h(nil, entities.Job{ActivatedJob: &pb.ActivatedJob{}})
	assert.True(t, called)
}
