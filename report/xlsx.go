package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/cadrimil/engine/diaria"
)

// SheetName is the worksheet holding the report.
const SheetName = "Missão"

// XLSX renders a workbook with one sheet. Money and day cells are numbers
// so the finance office can sum them.
type XLSX struct{}

func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (XLSX) Extension() string { return "xlsx" }

func (XLSX) Render(w io.Writer, m diaria.Mission, t diaria.RateTable) error {
	model := NewModel(m, t)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("render xlsx: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("render xlsx: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"203110"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("render xlsx: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("render xlsx: %w", err)
	}

	sw := sheetWriter{f: f, sheet: SheetName}
	sw.row([]any{model.Title + " - " + model.Subtitle})
	sw.style("A1", "A1", bold)
	sw.row([]any{"Missão", model.MissionName})
	sw.row([]any{"Data de Criação", model.CreatedAt})
	sw.row([]any{"Total de Períodos", model.PeriodCount})
	sw.row([]any{"AED Incluído", yesNo(model.IncludeAllowance)})
	sw.row(nil)

	headerRow := sw.next
	sw.row([]any{"#", "Grupo", "Localidade", "Qtd.", "Início", "Fim", "Diárias", "Diária (R$)", "Custo (R$)"})
	sw.style(cellName(1, headerRow), cellName(9, headerRow), header)

	firstLine := sw.next
	for i, l := range model.Lines {
		rate, _ := diaria.UnitRate(diaria.GroupKey(l.Group), diaria.LocalityKey(l.Locality), t).Float64()
		days, _ := l.days.Float64()
		cost, _ := diaria.Round2(l.cost).Float64()
		sw.row([]any{
			l.Index, l.GroupText(), l.LocalityLabel, l.Headcount,
			m.Periods[i].Start.String(), m.Periods[i].End.String(),
			days, rate, cost,
		})
	}
	if len(model.Lines) > 0 {
		sw.style(cellName(8, firstLine), cellName(9, sw.next-1), money)
	}
	sw.row(nil)

	if model.IncludeAllowance {
		aedRow := sw.next
		aed, _ := diaria.Round2(diaria.AllowanceTotal(m.Periods, t)).Float64()
		sw.row([]any{model.AllowanceTitle, "", "", model.TotalHeadcount, "", "", "", "", aed})
		sw.style(cellName(9, aedRow), cellName(9, aedRow), money)
	}

	totalRow := sw.next
	total, _ := diaria.Round2(model.total).Float64()
	sw.row([]any{"VALOR TOTAL CALCULADO", "", "", "", "", "", "", "", total})
	sw.style(cellName(1, totalRow), cellName(9, totalRow), bold)
	sw.style(cellName(9, totalRow), cellName(9, totalRow), money)

	if len(model.LegalReferences) > 0 {
		sw.row(nil)
		sw.row([]any{"Referências Legais"})
		for _, r := range model.LegalReferences {
			sw.row([]any{r.Decree, r.Date})
		}
	}

	if sw.err != nil {
		return fmt.Errorf("render xlsx: %w", sw.err)
	}

	_ = f.SetColWidth(SheetName, "B", "C", 40)
	_ = f.SetColWidth(SheetName, "E", "F", 12)
	_ = f.SetColWidth(SheetName, "H", "I", 14)

	return f.Write(w)
}

// sheetWriter appends rows and keeps the first error.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	next  int
	err   error
}

func (s *sheetWriter) row(values []any) {
	if s.next == 0 {
		s.next = 1
	}
	if s.err == nil && len(values) > 0 {
		s.err = s.f.SetSheetRow(s.sheet, cellName(1, s.next), &values)
	}
	s.next++
}

func (s *sheetWriter) style(from, to string, id int) {
	if s.err == nil {
		s.err = s.f.SetCellStyle(s.sheet, from, to, id)
	}
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
