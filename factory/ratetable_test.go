package factory

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cadrimil/engine/diaria"
)

const sampleDocument = `{
  "decretos": [
    {"title": "Diárias", "decree": "Decreto nº 11.117", "date": "30/06/2022", "link": "https://example.gov.br/d11117"}
  ],
  "aed": {"title": "Adicional de Embarque e Desembarque", "value": 95.00},
  "grupos": {"A": "Oficiais-Generais", "B": "Oficiais Superiores"},
  "localidades": {"l1": "Brasília", "l2": "Capitais"},
  "diarias": {
    "A": {"l1": 406.70, "l2": "386,37"},
    "B": {"l1": "n/d", "l2": -5}
  }
}`

func TestParse_Document(t *testing.T) {
	// GIVEN: A published document with mixed number formats
	// WHEN: Parsing leniently
	table, err := NewRateTableFactory().Parse([]byte(sampleDocument))

	// THEN: Valid rates kept, invalid ones dropped
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("406.70").Equal(diaria.UnitRate("A", "l1", table)))
	assert.True(t, decimal.RequireFromString("386.37").Equal(diaria.UnitRate("A", "l2", table)))
	assert.True(t, diaria.UnitRate("B", "l1", table).IsZero())
	assert.True(t, diaria.UnitRate("B", "l2", table).IsZero())
	assert.True(t, decimal.NewFromInt(95).Equal(table.Allowance.Value))
	assert.Equal(t, "Oficiais-Generais", table.GroupLabel("A"))
	assert.Equal(t, []diaria.LegalReference{{Decree: "Decreto nº 11.117", Date: "30/06/2022"}}, table.LegalReferences())
}

func TestParse_Strict(t *testing.T) {
	f := &RateTableFactory{Strict: true}
	_, err := f.Parse([]byte(sampleDocument))
	assert.Error(t, err)
}

func TestParse_Malformed(t *testing.T) {
	_, err := ParseRateTable([]byte(`{"diarias": [`))
	assert.Error(t, err)
}

func TestDocument_RoundTrip(t *testing.T) {
	original := DefaultRateTable()

	data, err := MarshalTable(original)
	require.NoError(t, err)
	parsed, err := ParseRateTable(data)
	require.NoError(t, err)

	for _, g := range original.GroupKeys() {
		for _, l := range original.LocalityKeys() {
			assert.True(t,
				diaria.UnitRate(g, l, original).Equal(diaria.UnitRate(g, l, parsed)),
				"%s/%s", g, l)
		}
	}
	assert.Equal(t, original.Groups, parsed.Groups)
	assert.Equal(t, original.Decrees, parsed.Decrees)
	assert.True(t, original.Allowance.Value.Equal(parsed.Allowance.Value))
}

func TestParseYAML(t *testing.T) {
	doc := `
aed:
  title: AED
  value: 95.00
grupos:
  A: Generais
localidades:
  l1: Brasília
diarias:
  A:
    l1: 406.70
    l2: abc
`
	table, err := NewRateTableFactory().ParseYAML([]byte(doc))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("406.70").Equal(diaria.UnitRate("A", "l1", table)))
	assert.True(t, diaria.UnitRate("A", "l2", table).IsZero())
	assert.Equal(t, "AED", table.Allowance.Title)
}

func TestLoadFile_ByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleDocument), 0o644))

	table, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, table.Groups, 2)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestDefaultRateTable(t *testing.T) {
	table := DefaultRateTable()

	assert.Len(t, table.GroupKeys(), 7)
	assert.Equal(t, []diaria.LocalityKey{"l1", "l2", "l3", "l4"}, table.LocalityKeys())
	assert.True(t, decimal.RequireFromString("95").Equal(table.Allowance.Value))

	// Fresh copy each call
	table.Rates["A"]["l1"] = decimal.Zero
	assert.False(t, DefaultRateTable().Rates["A"]["l1"].IsZero())
}

func TestParseSpreadsheet_XLSX(t *testing.T) {
	// GIVEN: A workbook as kept by a finance office
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	rows := [][]any{
		{"Grupo", "Localidade", "Diaria", "grupo_descricao"},
		{"A", "l1", "406,70", "Generais"},
		{"A", "l2", 386.37, ""},
		{"AED", "", "95,00", ""},
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, wb.SetSheetRow(sheet, cellRef, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, wb.Write(&buf))

	// WHEN: Parsing it
	table, err := NewRateTableFactory().ParseSpreadsheet(&buf, "tabela.xlsx")

	// THEN: Rates, labels and the AED are read
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("406.70").Equal(diaria.UnitRate("A", "l1", table)))
	assert.True(t, decimal.RequireFromString("386.37").Equal(diaria.UnitRate("A", "l2", table)))
	assert.True(t, decimal.NewFromInt(95).Equal(table.Allowance.Value))
	assert.Equal(t, "Generais", table.GroupLabel("A"))
	assert.Equal(t, "l2", table.LocalityLabel("l2"))
}

func TestParseSpreadsheet_MissingHeader(t *testing.T) {
	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetRow(wb.GetSheetName(0), "A1", &[]any{"foo", "bar"}))
	require.NoError(t, wb.SetSheetRow(wb.GetSheetName(0), "A2", &[]any{"x", "y"}))
	var buf bytes.Buffer
	require.NoError(t, wb.Write(&buf))

	_, err := NewRateTableFactory().ParseSpreadsheet(&buf, "x.xlsx")
	assert.Error(t, err)
}
