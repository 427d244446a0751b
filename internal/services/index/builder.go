// Package index builds the OCAP knowledge and relationship indices from a
// spreadsheet of historical cases.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ocap-agent/internal/common/config"
	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/common/logger"
	"ocap-agent/pkg/registry"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/google/uuid"
)

const (
	DefaultKnowledgeIndex    = "ocap-knowledge-base"
	DefaultRelationshipIndex = "ocap-relationship-index"
)

// Result reports one build.
type Result struct {
	Status            string `json:"status"`
	Message           string `json:"message"`
	FactIndex         string `json:"fact_index"`
	RelationshipIndex string `json:"relationship_index"`
	RecordsProcessed  int    `json:"records_processed"`
	RelationshipNodes int    `json:"relationship_nodes"`
	DurationMs        int64  `json:"duration_ms"`
}

type Builder struct {
	client            *elasticsearch.Client
	knowledgeIndex    string
	relationshipIndex string
	logger            logger.Logger
	newID             func() string
}

func NewBuilder(client *elasticsearch.Client, cfg config.OCAPConfig, log logger.Logger) *Builder {
	b := &Builder{
		client:            client,
		knowledgeIndex:    cfg.KnowledgeIndex,
		relationshipIndex: cfg.RelationshipIndex,
		logger:            log.WithFields(map[string]interface{}{"component": "index-builder"}),
		newID:             uuid.NewString,
	}
	if b.knowledgeIndex == "" {
		b.knowledgeIndex = DefaultKnowledgeIndex
	}
	if b.relationshipIndex == "" {
		b.relationshipIndex = DefaultRelationshipIndex
	}
	return b
}

// Build reads the workbook at path and recreates both indices from it.
func (b *Builder) Build(ctx context.Context, path string) (*Result, error) {
	facts, err := ReadFacts(path)
	if err != nil {
		return nil, errors.NewIndexBuildFailedError(b.knowledgeIndex, err)
	}
	return b.BuildFromFacts(ctx, facts)
}

// BuildFromFacts drops and recreates the fact index and the relationship
// index, then bulk loads them. Relationship documents are derived from facts
// in memory, so every fact contributes regardless of index size.
func (b *Builder) BuildFromFacts(ctx context.Context, facts []Fact) (*Result, error) {
	start := time.Now()

	if err := b.recreate(ctx, b.knowledgeIndex, knowledgeMapping); err != nil {
		return nil, errors.NewIndexBuildFailedError(b.knowledgeIndex, err)
	}
	factDocs := make([]document, 0, len(facts))
	for _, f := range facts {
		factDocs = append(factDocs, document{id: b.newID(), body: f})
	}
	if err := b.bulk(ctx, b.knowledgeIndex, factDocs); err != nil {
		return nil, errors.NewIndexBuildFailedError(b.knowledgeIndex, err)
	}
	b.logger.Info("fact index created", map[string]interface{}{
		"index":   b.knowledgeIndex,
		"records": len(factDocs),
	})

	rels := BuildRelationships(facts)
	if err := b.recreate(ctx, b.relationshipIndex, relationshipMapping); err != nil {
		return nil, errors.NewIndexBuildFailedError(b.relationshipIndex, err)
	}
	relDocs := make([]document, 0, len(rels))
	for _, d := range rels {
		relDocs = append(relDocs, document{id: d.ID(), body: d})
	}
	if err := b.bulk(ctx, b.relationshipIndex, relDocs); err != nil {
		return nil, errors.NewIndexBuildFailedError(b.relationshipIndex, err)
	}
	b.logger.Info("relationship index created", map[string]interface{}{
		"index": b.relationshipIndex,
		"nodes": len(relDocs),
	})

	return &Result{
		Status:            "success",
		Message:           "Indexes created successfully",
		FactIndex:         b.knowledgeIndex,
		RelationshipIndex: b.relationshipIndex,
		RecordsProcessed:  len(facts),
		RelationshipNodes: len(relDocs),
		DurationMs:        time.Since(start).Milliseconds(),
	}, nil
}

// ExportRegistry writes the distinct node values found in facts as a
// registry file and returns it.
func ExportRegistry(facts []Fact, path string) (*registry.Registry, error) {
	var style, errs, defect, operation []string
	for _, f := range facts {
		style = append(style, f.Style)
		errs = append(errs, f.Error)
		defect = append(defect, f.Defect)
		operation = append(operation, f.Operation)
	}
	reg := registry.New(style, errs, defect, operation)
	if err := reg.Save(path); err != nil {
		return nil, fmt.Errorf("save registry %s: %w", path, err)
	}
	return reg, nil
}

type document struct {
	id   string
	body interface{}
}

func (b *Builder) recreate(ctx context.Context, index string, mapping map[string]interface{}) error {
	del := esapi.IndicesDeleteRequest{Index: []string{index}}
	res, err := del.Do(ctx, b.client)
	if err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete index: %s", res.String())
	}

	body, err := json.Marshal(map[string]interface{}{"mappings": mapping})
	if err != nil {
		return err
	}
	create := esapi.IndicesCreateRequest{Index: index, Body: bytes.NewReader(body)}
	res, err = create.Do(ctx, b.client)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index: %s", res.String())
	}
	return nil
}

func (b *Builder) bulk(ctx context.Context, index string, docs []document) error {
	if len(docs) == 0 {
		return nil
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     b.client,
		Index:      index,
		Refresh:    "wait_for",
		NumWorkers: 2,
		FlushBytes: 1 << 20,
	})
	if err != nil {
		return fmt.Errorf("bulk indexer: %w", err)
	}

	var (
		mu       sync.Mutex
		firstErr error
	)
	onFailure := func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr != nil {
			return
		}
		if err != nil {
			firstErr = fmt.Errorf("document %s: %w", item.DocumentID, err)
			return
		}
		firstErr = fmt.Errorf("document %s: %s: %s", item.DocumentID, res.Error.Type, res.Error.Reason)
	}

	for _, d := range docs {
		data, err := json.Marshal(d.body)
		if err != nil {
			return fmt.Errorf("encode document %s: %w", d.id, err)
		}
		if err := bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: d.id,
			Body:       bytes.NewReader(data),
			OnFailure:  onFailure,
		}); err != nil {
			return fmt.Errorf("queue document %s: %w", d.id, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("flush bulk indexer: %w", err)
	}

	stats := bi.Stats()
	if stats.NumFailed > 0 {
		mu.Lock()
		defer mu.Unlock()
		return fmt.Errorf("%d of %d documents failed: %w", stats.NumFailed, stats.NumAdded, firstErr)
	}
	return nil
}
