// internal/workers/ocap/classify/queries/builders.go
package queries

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"ocap-agent/internal/models"
)

const DefaultSize = 50

// Query methods recorded with every lookup.
const (
	MethodFullRows    = "get_full_rows"
	MethodRowsByError = "get_rows_by_error"
	MethodNonPrecise  = "get_rows_non_precise"
	MethodGeneric     = "generic"
)

// NormalizeValue trims v and maps the textual nulls the index builder also
// drops ("nan", "none", "null") to "".
func NormalizeValue(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "nan", "none", "null":
		return ""
	}
	return v
}

// PreciseQuery filters the knowledge base on one defect, any of the given
// operations and one style. A missing style matches rows with an empty style.
func PreciseQuery(defect string, operations []string, style string, size int) map[string]interface{} {
	filters := []interface{}{
		term("defect", NormalizeValue(defect)),
	}

	ops := make([]string, 0, len(operations))
	for _, op := range operations {
		if n := NormalizeValue(op); n != "" {
			ops = append(ops, n)
		}
	}
	if len(ops) > 0 {
		filters = append(filters, map[string]interface{}{
			"terms": map[string]interface{}{"operation": ops},
		})
	}

	filters = append(filters, term("style", NormalizeValue(style)))

	return knowledgeSearch(filters, size)
}

// ErrorQuery filters the knowledge base on the error alone.
func ErrorQuery(errValue string, size int) map[string]interface{} {
	return knowledgeSearch([]interface{}{term("error", NormalizeValue(errValue))}, size)
}

// RelationshipQuery matches relationship nodes by type and name. Exact
// matches use the keyword name, partial ones the analyzed name.text field.
// It returns nil when no match carries both a node type and a value.
func RelationshipQuery(matches []models.RegistryMatch, size int) map[string]interface{} {
	should := make([]interface{}, 0, len(matches))
	for _, m := range matches {
		if m.NodeType == "" || m.Value == "" {
			continue
		}
		must := []interface{}{term("node_type", m.NodeType)}
		if m.MatchType == models.MatchTypeExact {
			must = append(must, term("name", m.Value))
		} else {
			must = append(must, map[string]interface{}{
				"match": map[string]interface{}{
					"name.text": map[string]interface{}{
						"query":    m.Value,
						"operator": "and",
					},
				},
			})
		}
		should = append(should, map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		})
	}
	if len(should) == 0 {
		return nil
	}

	return map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should":               should,
				"minimum_should_match": 1,
			},
		},
	}
}

// BuildRequest wraps a query body in a search request against index.
func BuildRequest(index string, body map[string]interface{}) (*esapi.SearchRequest, error) {
	if index == "" {
		return nil, ErrMissingIndex
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &esapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(data),
	}, nil
}

func knowledgeSearch(filters []interface{}, size int) map[string]interface{} {
	return map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
		"_source": map[string]interface{}{
			"excludes": []string{"content"},
		},
	}
}

func term(field, value string) map[string]interface{} {
	return map[string]interface{}{
		"term": map[string]interface{}{field: value},
	}
}

// ValuesOf returns the non-empty values of matches of the given node type,
// in match order.
func ValuesOf(matches []models.RegistryMatch, nodeType string) []string {
	var out []string
	for _, m := range matches {
		if m.NodeType == nodeType && m.Value != "" {
			out = append(out, m.Value)
		}
	}
	return out
}
