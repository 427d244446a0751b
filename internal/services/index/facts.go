package index

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Fact is one row of the knowledge spreadsheet as stored in the fact index.
type Fact struct {
	Style     string `json:"style"`
	Defect    string `json:"defect"`
	Operation string `json:"operation"`
	Error     string `json:"error"`
	Action    string `json:"action"`
	Content   string `json:"content"`
}

var columns = []string{"Style", "Defect", "Operation", "Error", "Action"}

// ReadFacts loads facts from the first sheet of an XLSX workbook. The first
// row is the header; unknown columns are ignored and missing ones read as
// empty.
func ReadFacts(path string) ([]Fact, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return parseRows(rows)
}

func parseRows(rows [][]string) ([]Fact, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet is empty")
	}

	pos := make(map[string]int, len(columns))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		for _, c := range columns {
			if h == c {
				pos[c] = i
			}
		}
	}
	if len(pos) == 0 {
		return nil, fmt.Errorf("header has none of the columns %s", strings.Join(columns, ", "))
	}

	cell := func(row []string, col string) string {
		i, ok := pos[col]
		if !ok || i >= len(row) {
			return ""
		}
		return clean(row[i])
	}

	facts := make([]Fact, 0, len(rows)-1)
	for _, row := range rows[1:] {
		fact := Fact{
			Style:     cell(row, "Style"),
			Defect:    strings.ToLower(cell(row, "Defect")),
			Operation: strings.ToLower(cell(row, "Operation")),
			Error:     strings.ToLower(cell(row, "Error")),
			Action:    strings.ToLower(cell(row, "Action")),
		}
		if fact.empty() {
			continue
		}
		fact.Content = fact.content()
		facts = append(facts, fact)
	}
	return facts, nil
}

func clean(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "nan") {
		return ""
	}
	return v
}

func (f Fact) empty() bool {
	return f.Style == "" && f.Defect == "" && f.Operation == "" && f.Error == "" && f.Action == ""
}

func (f Fact) content() string {
	return fmt.Sprintf("Style: %s. Defect: %s. Operation: %s. Error: %s. Action: %s.",
		f.Style, f.Defect, f.Operation, f.Error, f.Action)
}
