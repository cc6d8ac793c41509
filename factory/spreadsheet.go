package factory

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/cadrimil/engine/diaria"
)

// =============================================================================
// SPREADSHEET IMPORT - rate tables kept by finance offices as .xlsx/.xls
// =============================================================================
//
// Expected layout, first sheet, one header row (column order is free):
//
//   grupo | localidade | diaria
//   A     | l1         | 406,70
//   AED   |            | 95,00
//
// Optional columns "grupo_descricao" and "localidade_descricao" carry
// labels; without them the key doubles as the label. A row whose group is
// "AED" sets the allowance.

const allowanceRowKey = "AED"

// ParseSpreadsheet reads a rate table from an Excel workbook. The format
// is chosen by the file name's extension.
func (f *RateTableFactory) ParseSpreadsheet(r io.Reader, filename string) (diaria.RateTable, error) {
	rows, err := readRows(r, filename)
	if err != nil {
		return diaria.RateTable{}, fmt.Errorf("failed to read spreadsheet: %w", err)
	}
	if len(rows) < 2 {
		return diaria.RateTable{}, fmt.Errorf("spreadsheet has no data rows")
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	gi, okG := cols["grupo"]
	li, okL := cols["localidade"]
	ri, okR := cols["diaria"]
	if !okG || !okL || !okR {
		return diaria.RateTable{}, fmt.Errorf("spreadsheet header must contain grupo, localidade and diaria")
	}
	gdi, hasGD := cols["grupo_descricao"]
	ldi, hasLD := cols["localidade_descricao"]

	doc := RateDocument{
		Groups:     map[string]string{},
		Localities: map[string]string{},
		Rates:      map[string]map[string]RateValue{},
		Allowance:  AllowanceDoc{Title: "Adicional de Embarque e Desembarque (AED)"},
	}

	for _, row := range rows[1:] {
		group := cell(row, gi)
		if group == "" {
			continue
		}
		value := parseRateValue(cell(row, ri))

		if strings.EqualFold(group, allowanceRowKey) {
			doc.Allowance.Value = value
			continue
		}

		locality := cell(row, li)
		if locality == "" {
			continue
		}

		if _, ok := doc.Groups[group]; !ok {
			doc.Groups[group] = group
		}
		if hasGD && cell(row, gdi) != "" {
			doc.Groups[group] = cell(row, gdi)
		}
		if _, ok := doc.Localities[locality]; !ok {
			doc.Localities[locality] = locality
		}
		if hasLD && cell(row, ldi) != "" {
			doc.Localities[locality] = cell(row, ldi)
		}

		if doc.Rates[group] == nil {
			doc.Rates[group] = map[string]RateValue{}
		}
		doc.Rates[group][locality] = value
	}

	return f.FromDocument(doc)
}

func readRows(r io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, err
		}
		if workbook.NumSheets() == 0 {
			return nil, fmt.Errorf("no worksheet found")
		}
		return workbook.ReadAllCells(10000), nil
	default:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		sheet := file.GetSheetName(0)
		if sheet == "" {
			return nil, fmt.Errorf("no worksheet found")
		}
		return file.GetRows(sheet)
	}
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
