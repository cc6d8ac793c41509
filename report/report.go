/*
Package report renders mission reports.

PURPOSE:
  Produces the document a unit hands to its finance office: the mission
  header, one line per period with days and cost, the AED line, the total
  and the legal references the mission was saved under.

FORMATS:
  html  html/template, printable page
  pdf   fpdf, A4 portrait
  xlsx  excelize, sheet "Missão"

  All three render the same Model, built once from the mission and a rate
  table. Totals are recomputed from the periods; the mission's cached
  total is never printed as-is.

USAGE:
  r, err := report.ForFormat("pdf")
  name := report.FileName(m.Name, r.Extension())
  err = r.Render(w, m, table)

SEE ALSO:
  - diaria/calc.go: Breakdown
  - api/handlers.go: GET /api/missions/{id}/report
*/
package report

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cadrimil/engine/diaria"
)

// Renderer writes a mission report in one format.
type Renderer interface {
	Render(w io.Writer, m diaria.Mission, t diaria.RateTable) error
	ContentType() string
	Extension() string
}

// ErrUnknownFormat is returned by ForFormat.
type ErrUnknownFormat struct {
	Format string
}

func (e *ErrUnknownFormat) Error() string {
	return fmt.Sprintf("unknown report format %q (use html, pdf or xlsx)", e.Format)
}

// ForFormat returns the renderer for "html", "pdf" or "xlsx".
func ForFormat(format string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "html", "":
		return HTML{}, nil
	case "pdf":
		return PDF{}, nil
	case "xlsx", "excel":
		return XLSX{}, nil
	default:
		return nil, &ErrUnknownFormat{Format: format}
	}
}

// =============================================================================
// FILE NAME
// =============================================================================

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

const maxFileNameLen = 50

// FileName turns a mission name into a safe file name with ext appended.
// Accented letters are dropped, not transliterated.
func FileName(name, ext string) string {
	s := strings.TrimSpace(name)
	s = unsafeChars.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "_")
	s = strings.TrimRight(s, "_")
	if len(s) > maxFileNameLen {
		s = s[:maxFileNameLen]
	}
	if s == "" {
		s = "Relatorio"
	}
	if ext == "" {
		return s
	}
	return s + "." + strings.TrimPrefix(ext, ".")
}

// =============================================================================
// MODEL - what every format prints
// =============================================================================

// Line is one period row.
type Line struct {
	Index         int
	Group         string
	GroupLabel    string
	Locality      string
	LocalityLabel string
	Headcount     int
	Start         string // dd/mm/yy
	End           string
	Days          string
	UnitRate      string
	Cost          string

	days decimal.Decimal
	cost decimal.Decimal
}

// Model is the format-independent content of a report.
type Model struct {
	Title            string
	Subtitle         string
	MissionName      string
	CreatedAt        string // dd/mm/yyyy
	PeriodCount      int
	IncludeAllowance bool
	Lines            []Line

	AllowanceTitle string
	AllowanceRate  string
	AllowanceTotal string
	TotalHeadcount int
	Total          string

	LegalReferences []diaria.LegalReference
	Footer          string

	total decimal.Decimal
}

// NewModel computes the report content for m against t.
func NewModel(m diaria.Mission, t diaria.RateTable) Model {
	b := diaria.Breakdown(m.Periods, m.IncludeAllowance, t)

	name := strings.TrimSpace(m.Name)
	if name == "" {
		name = diaria.DefaultMissionName
	}

	allowanceTitle := t.Allowance.Title
	if allowanceTitle == "" {
		allowanceTitle = "Adicional de Embarque e Desembarque (AED)"
	}

	refs := m.LegalReferences
	if len(refs) == 0 {
		refs = t.LegalReferences()
	}

	model := Model{
		Title:            "Cadrimil",
		Subtitle:         "Calculadora de Diárias Militares",
		MissionName:      name,
		CreatedAt:        formatCreated(m.CreatedAt),
		PeriodCount:      len(m.Periods),
		IncludeAllowance: m.IncludeAllowance,
		Lines:            make([]Line, len(b.Lines)),
		AllowanceTitle:   allowanceTitle,
		AllowanceRate:    diaria.FormatBRL(b.AllowanceRate),
		AllowanceTotal:   diaria.FormatBRL(b.AllowanceTotal),
		TotalHeadcount:   b.TotalHeadcount,
		Total:            diaria.FormatBRL(b.Total),
		LegalReferences:  refs,
		Footer:           "Relatório gerado pelo aplicativo Cadrimil",
		total:            b.Total,
	}

	for i, l := range b.Lines {
		model.Lines[i] = Line{
			Index:         l.Index,
			Group:         string(l.Period.Group),
			GroupLabel:    l.GroupLabel,
			Locality:      string(l.Period.Locality),
			LocalityLabel: localityText(l),
			Headcount:     l.Period.Headcount,
			Start:         l.Period.Start.Format("02/01/06"),
			End:           l.Period.End.Format("02/01/06"),
			Days:          diaria.FormatDays(l.Days),
			UnitRate:      diaria.FormatBRL(l.UnitRate),
			Cost:          diaria.FormatBRL(l.Cost),
			days:          l.Days,
			cost:          l.Cost,
		}
	}
	return model
}

// GroupText is "A - label", or just the key when the table lacks it.
func (l Line) GroupText() string {
	if l.GroupLabel == "" {
		return l.Group
	}
	return l.Group + " - " + l.GroupLabel
}

func localityText(l diaria.PeriodLine) string {
	if l.LocalityLabel == "" {
		return string(l.Period.Locality)
	}
	return l.LocalityLabel
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}
