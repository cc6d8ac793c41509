package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/cadrimil/engine/diaria"
)

// PDF renders an A4 document with the same content as HTML.
type PDF struct{}

func (PDF) ContentType() string { return "application/pdf" }
func (PDF) Extension() string   { return "pdf" }

// column widths in mm; the page body is 190mm wide
var pdfColumns = []struct {
	title string
	width float64
	align string
}{
	{"#", 8, "C"},
	{"Grupo", 50, "L"},
	{"Localidade", 44, "L"},
	{"Qtd.", 12, "C"},
	{"Início/Fim", 30, "C"},
	{"Diárias", 16, "C"},
	{"Custo", 30, "R"},
}

func (PDF) Render(w io.Writer, m diaria.Mission, t diaria.RateTable) error {
	model := NewModel(m, t)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(102, 102, 102)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s - página %d", model.Footer, pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// Header band
	pdf.SetFillColor(0x20, 0x31, 0x10)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, tr(model.Title), "", 1, "C", true, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 8, tr(model.Subtitle), "", 1, "C", true, 0, "")
	pdf.Ln(6)

	// Mission info
	pdf.SetTextColor(0x20, 0x31, 0x10)
	pdf.SetFont("Helvetica", "B", 15)
	pdf.CellFormat(0, 9, tr(model.MissionName), "B", 1, "L", false, 0, "")
	pdf.Ln(2)
	pdf.SetTextColor(51, 51, 51)
	pdf.SetFont("Helvetica", "", 10)
	if model.CreatedAt != "" {
		pdf.CellFormat(0, 6, tr("Data de Criação: "+model.CreatedAt), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Total de Períodos: %d", model.PeriodCount)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("AED Incluído: "+yesNo(model.IncludeAllowance)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Periods table
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, tr("Períodos"), "", 1, "L", false, 0, "")
	pdf.SetFillColor(0x20, 0x31, 0x10)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 9)
	for _, c := range pdfColumns {
		pdf.CellFormat(c.width, 8, tr(c.title), "", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetTextColor(51, 51, 51)
	pdf.SetFont("Helvetica", "", 8)
	for _, l := range model.Lines {
		cells := []string{
			fmt.Sprint(l.Index),
			truncate(l.GroupText(), 34),
			truncate(l.LocalityLabel, 30),
			fmt.Sprint(l.Headcount),
			l.Start + " - " + l.End,
			l.Days,
			"R$ " + l.Cost,
		}
		for i, c := range pdfColumns {
			pdf.CellFormat(c.width, 7, tr(cells[i]), "B", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	// AED box
	if model.IncludeAllowance {
		pdf.SetFillColor(0xff, 0xf3, 0xcd)
		pdf.SetDrawColor(0xff, 0xc1, 0x07)
		pdf.SetFont("Helvetica", "", 9)
		text := fmt.Sprintf("%s: R$ %s (%d militares × R$ %s)",
			model.AllowanceTitle, model.AllowanceTotal, model.TotalHeadcount, model.AllowanceRate)
		pdf.MultiCell(0, 7, tr(text), "1", "L", true)
		pdf.Ln(4)
	}

	// Total box
	pdf.SetFillColor(0xe5, 0xe5, 0x77)
	pdf.SetDrawColor(0x41, 0x55, 0x27)
	pdf.SetLineWidth(0.6)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 9, tr("VALOR TOTAL CALCULADO"), "LTR", 1, "C", true, 0, "")
	pdf.SetTextColor(0x41, 0x55, 0x27)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, tr("R$ "+model.Total), "LBR", 1, "C", true, 0, "")
	pdf.SetLineWidth(0.2)
	pdf.Ln(8)

	// Legal references
	if len(model.LegalReferences) > 0 {
		pdf.SetTextColor(102, 102, 102)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(0, 6, tr("Referências Legais:"), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		for _, r := range model.LegalReferences {
			pdf.CellFormat(0, 5, tr(fmt.Sprintf("• %s, de %s", r.Decree, r.Date)), "", 1, "L", false, 0, "")
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func yesNo(b bool) string {
	if b {
		return "Sim"
	}
	return "Não"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
