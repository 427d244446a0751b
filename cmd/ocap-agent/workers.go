package main

import (
	"ocap-agent/internal/common/camunda"
	"ocap-agent/internal/common/config"
	"ocap-agent/internal/common/logger"
	analyzequery "ocap-agent/internal/workers/ocap/analyze-query"
	"ocap-agent/internal/workers/ocap/classify"
	extractkeywords "ocap-agent/internal/workers/ocap/extract-keywords"
	processquery "ocap-agent/internal/workers/ocap/process-query"
	"ocap-agent/internal/workers/ocap/summarize"
	threadmemory "ocap-agent/internal/workers/ocap/thread-memory"
)

// nodeHandlers serve both as graph nodes and as standalone job workers.
type nodeHandlers struct {
	extract   *extractkeywords.Handler
	memory    *threadmemory.Handler
	analyze   *analyzequery.Handler
	classify  *classify.Handler
	summarize *summarize.Handler
}

func registerWorkers(pool *camunda.WorkerPool, cfg *config.Config, nodes nodeHandlers, service processquery.QueryProcessor, log logger.Logger) {
	pq := processquery.NewHandler(processquery.LoadConfig(cfg), service, log)

	for _, w := range []struct {
		taskType string
		handle   camunda.HandlerFunc
	}{
		{processquery.TaskType, pq.Handle},
		{extractkeywords.TaskType, nodes.extract.Handle},
		{threadmemory.TaskType, nodes.memory.Handle},
		{analyzequery.TaskType, nodes.analyze.Handle},
		{classify.TaskType, nodes.classify.Handle},
		{summarize.TaskType, nodes.summarize.Handle},
	} {
		pool.Start(w.taskType, config.GetWorkerConfig(cfg, w.taskType), w.handle)
	}
}
