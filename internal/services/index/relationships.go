package index

import (
	"sort"
)

const topActionLimit = 5

type Related struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type ActionCount struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// RelationshipDoc summarizes every fact that shares one node value.
type RelationshipDoc struct {
	NodeType          string        `json:"node_type"`
	Name              string        `json:"name"`
	RelatedOperations []Related     `json:"related_operations"`
	RelatedDefects    []Related     `json:"related_defects"`
	RelatedErrors     []Related     `json:"related_errors"`
	RelatedStyles     []Related     `json:"related_styles"`
	TopActions        []ActionCount `json:"top_actions"`
	TotalCases        int           `json:"total_cases"`
}

// ID is the document id used in the relationship index.
func (d RelationshipDoc) ID() string {
	return d.NodeType + "::" + d.Name
}

var nodeFields = []struct {
	nodeType string
	value    func(Fact) string
}{
	{"operation", func(f Fact) string { return f.Operation }},
	{"defect", func(f Fact) string { return f.Defect }},
	{"error", func(f Fact) string { return f.Error }},
	{"style", func(f Fact) string { return f.Style }},
}

// BuildRelationships groups facts by operation, defect, error and style and
// returns one document per distinct non-empty value, ordered by node type
// then name.
func BuildRelationships(facts []Fact) []RelationshipDoc {
	var docs []RelationshipDoc
	for _, nf := range nodeFields {
		groups := make(map[string][]Fact)
		for _, f := range facts {
			if v := nf.value(f); v != "" {
				groups[v] = append(groups[v], f)
			}
		}
		names := make([]string, 0, len(groups))
		for name := range groups {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			docs = append(docs, relationshipDoc(nf.nodeType, name, groups[name]))
		}
	}
	return docs
}

func relationshipDoc(nodeType, name string, rows []Fact) RelationshipDoc {
	doc := RelationshipDoc{
		NodeType:          nodeType,
		Name:              name,
		RelatedOperations: related(rows, name, func(f Fact) string { return f.Operation }),
		RelatedDefects:    related(rows, name, func(f Fact) string { return f.Defect }),
		RelatedErrors:     related(rows, name, func(f Fact) string { return f.Error }),
		RelatedStyles:     related(rows, name, func(f Fact) string { return f.Style }),
		TotalCases:        len(rows),
	}

	actions := count(rows, func(f Fact) string { return f.Action })
	doc.TopActions = make([]ActionCount, 0, topActionLimit)
	for _, r := range actions {
		if len(doc.TopActions) == topActionLimit {
			break
		}
		doc.TopActions = append(doc.TopActions, ActionCount{Action: r.Name, Count: r.Count})
	}
	return doc
}

// related counts the values of field across rows, skipping blanks and the
// group's own name.
func related(rows []Fact, self string, field func(Fact) string) []Related {
	all := count(rows, field)
	out := make([]Related, 0, len(all))
	for _, r := range all {
		if r.Name != self {
			out = append(out, r)
		}
	}
	return out
}

// count tallies non-empty values, most frequent first and ties by name.
func count(rows []Fact, field func(Fact) string) []Related {
	counts := make(map[string]int)
	for _, r := range rows {
		if v := field(r); v != "" {
			counts[v]++
		}
	}
	out := make([]Related, 0, len(counts))
	for name, n := range counts {
		out = append(out, Related{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
