// internal/workers/ocap/classify/queries/search.go
package queries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
)

var (
	ErrMissingIndex = errors.New("index name is required")
	ErrIndexMissing = errors.New("index not found")
)

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs body against index and returns the _source of every hit.
func Search(ctx context.Context, client *elasticsearch.Client, index string, body map[string]interface{}) ([]map[string]interface{}, error) {
	req, err := BuildRequest(index, body)
	if err != nil {
		return nil, err
	}

	res, err := req.Do(ctx, client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrIndexMissing, index)
	}
	if res.IsError() {
		return nil, fmt.Errorf("search query failed: %s", res.String())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	rows := make([]map[string]interface{}, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		if hit.Source == nil {
			continue
		}
		rows = append(rows, hit.Source)
	}
	return rows, nil
}
