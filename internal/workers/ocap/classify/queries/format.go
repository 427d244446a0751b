// internal/workers/ocap/classify/queries/format.go
package queries

import (
	"fmt"
	"strings"
)

const (
	GenericText = "This is a generic manufacturing query with no specific registry matches. " +
		"The query is related to manufacturing processes, technical specifications, " +
		"quality control, or production topics, but does not match specific items " +
		"in the knowledge base or relationship index."

	noPreciseRecords = "No matching records found in the knowledge base."
	noErrorRecords   = "No matching records found for this error in the knowledge base."
	noRelationNodes  = "No matching relationship nodes found in the relationship index."

	topN = 5
)

var (
	separator   = strings.Repeat("=", 60)
	extraFields = []string{"case_id", "date", "status", "resolution"}
)

// FormatPrecise renders knowledge base rows as LLM context.
func FormatPrecise(rows []map[string]interface{}) string {
	if len(rows) == 0 {
		return noPreciseRecords
	}
	header := fmt.Sprintf("Found %d matching record(s) in the knowledge base:\n", len(rows))
	return formatRecords(header, rows, []string{"defect", "operation", "style", "error"})
}

// FormatErrorPrecise is FormatPrecise with the error listed first.
func FormatErrorPrecise(rows []map[string]interface{}) string {
	if len(rows) == 0 {
		return noErrorRecords
	}
	header := fmt.Sprintf("Found %d matching record(s) for this error:\n", len(rows))
	return formatRecords(header, rows, []string{"error", "defect", "operation", "style"})
}

func formatRecords(header string, rows []map[string]interface{}, fields []string) string {
	lines := []string{header}
	for i, row := range rows {
		lines = append(lines, separator, fmt.Sprintf("Record %d:", i+1))
		for _, f := range fields {
			if present(row[f]) {
				lines = append(lines, fmt.Sprintf("  %s: %v", titleCase(f), row[f]))
			}
		}
		for _, f := range extraFields {
			if present(row[f]) {
				lines = append(lines, fmt.Sprintf("  %s: %v", titleCase(f), row[f]))
			}
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// FormatNonPrecise renders relationship nodes with their top related items.
func FormatNonPrecise(nodes []map[string]interface{}) string {
	if len(nodes) == 0 {
		return noRelationNodes
	}

	lines := []string{fmt.Sprintf("Found %d related node(s) in the relationship index:\n", len(nodes))}
	for i, node := range nodes {
		nodeType := "UNKNOWN"
		if s, ok := node["node_type"].(string); ok {
			nodeType = strings.ToUpper(s)
		}
		name := "N/A"
		if v, ok := node["name"]; ok && v != nil {
			name = fmt.Sprint(v)
		}

		lines = append(lines, separator, fmt.Sprintf("%d. %s :: %s", i+1, nodeType, name))
		if present(node["total_cases"]) {
			lines = append(lines, fmt.Sprintf("   Total cases: %v", node["total_cases"]))
		}

		lines = appendRelated(lines, "Related Operations", node["related_operations"], "name")
		lines = appendRelated(lines, "Related Defects", node["related_defects"], "name")
		lines = appendRelated(lines, "Related Errors", node["related_errors"], "name")
		lines = appendRelated(lines, "Related Styles", node["related_styles"], "name")
		lines = appendRelated(lines, "Top Actions", node["top_actions"], "action")

		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func appendRelated(lines []string, title string, raw interface{}, key string) []string {
	items, ok := raw.([]interface{})
	if !ok || len(items) == 0 {
		return lines
	}
	lines = append(lines, "\n   "+title+":")
	for i, item := range items {
		if i == topN {
			break
		}
		entry, _ := item.(map[string]interface{})
		label := "N/A"
		if v, ok := entry[key]; ok && v != nil {
			label = fmt.Sprint(v)
		}
		count := interface{}(0)
		if v, ok := entry["count"]; ok && v != nil {
			count = v
		}
		lines = append(lines, fmt.Sprintf("     - %s (%v cases)", label, count))
	}
	return lines
}

func present(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case float64:
		return t != 0
	case bool:
		return t
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}

// titleCase turns "case_id" into "Case Id".
func titleCase(field string) string {
	words := strings.Fields(strings.ReplaceAll(field, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
