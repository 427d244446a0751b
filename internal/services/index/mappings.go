package index

var knowledgeMapping = map[string]interface{}{
	"properties": map[string]interface{}{
		"style":     map[string]interface{}{"type": "keyword"},
		"defect":    map[string]interface{}{"type": "keyword"},
		"operation": map[string]interface{}{"type": "keyword"},
		"error":     map[string]interface{}{"type": "keyword"},
		"action":    map[string]interface{}{"type": "text"},
		"content":   map[string]interface{}{"type": "text"},
	},
}

func namedCounts() map[string]interface{} {
	return map[string]interface{}{
		"type": "nested",
		"properties": map[string]interface{}{
			"name":  map[string]interface{}{"type": "keyword"},
			"count": map[string]interface{}{"type": "integer"},
		},
	}
}

var relationshipMapping = map[string]interface{}{
	"properties": map[string]interface{}{
		"node_type": map[string]interface{}{"type": "keyword"},
		"name": map[string]interface{}{
			"type": "keyword",
			"fields": map[string]interface{}{
				"text": map[string]interface{}{"type": "text"},
			},
		},
		"related_operations": namedCounts(),
		"related_defects":    namedCounts(),
		"related_errors":     namedCounts(),
		"related_styles":     namedCounts(),
		"top_actions": map[string]interface{}{
			"type": "nested",
			"properties": map[string]interface{}{
				"action": map[string]interface{}{"type": "text"},
				"count":  map[string]interface{}{"type": "integer"},
			},
		},
		"total_cases": map[string]interface{}{"type": "integer"},
	},
}
