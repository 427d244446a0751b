package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}

	path := filepath.Join(t.TempDir(), "cases.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadFacts(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Case", "Style", "Defect", "Operation", "Error", "Action"},
		{"1", " Polo ", "Broken Stitch", "Sewing", "nan", "Re-thread Needle"},
		{"2", "", "", "", "", ""},
		{"3", "Tee", "Skip Stitch", "Hemming", "E42", "Check tension"},
	})

	facts, err := ReadFacts(path)
	require.NoError(t, err)
	require.Len(t, facts, 2)

	assert.Equal(t, Fact{
		Style:     "Polo",
		Defect:    "broken stitch",
		Operation: "sewing",
		Error:     "",
		Action:    "re-thread needle",
		Content:   "Style: Polo. Defect: broken stitch. Operation: sewing. Error: . Action: re-thread needle.",
	}, facts[0])
	assert.Equal(t, "e42", facts[1].Error)
}

func TestReadFacts_MissingColumns(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Defect", "Action"},
		{"Puckering", "Reduce feed"},
	})

	facts, err := ReadFacts(path)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "puckering", facts[0].Defect)
	assert.Empty(t, facts[0].Operation)
}

func TestReadFacts_Errors(t *testing.T) {
	_, err := ReadFacts(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)

	path := writeWorkbook(t, [][]interface{}{{"Foo", "Bar"}, {"1", "2"}})
	_, err = ReadFacts(path)
	assert.ErrorContains(t, err, "none of the columns")
}
