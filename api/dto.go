/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model (diaria) from the HTTP contract. The mission export file
  is not a DTO: it keeps the field names of the mobile app and lives in
  diaria/snapshot.go.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts are decimal strings ("2223.5"), never floats. Responses that are
  shown to people also carry a pt-BR formatted copy ("2.223,50").

SEE ALSO:
  - handlers.go: Uses these types
  - factory/ratetable.go: RateDocument, returned as-is by the table endpoints
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cadrimil/engine/diaria"
	"github.com/cadrimil/engine/factory"
)

// =============================================================================
// PERIODS AND MISSIONS
// =============================================================================

// PeriodDTO is one period in requests and responses.
type PeriodDTO struct {
	ID               string      `json:"id,omitempty"`
	Group            string      `json:"group"`
	Locality         string      `json:"locality"`
	Start            diaria.Date `json:"start"`
	End              diaria.Date `json:"end"`
	Headcount        int         `json:"headcount"`
	CountLastDayFull bool        `json:"count_last_day_full"`
}

// MissionDTO represents a mission in API responses.
type MissionDTO struct {
	ID               string              `json:"id,omitempty"`
	Name             string              `json:"name"`
	CreatedAt        string              `json:"created_at,omitempty"`
	IncludeAllowance bool                `json:"include_allowance"`
	Periods          []PeriodDTO         `json:"periods"`
	Total            decimal.Decimal     `json:"total"`
	TotalFormatted   string              `json:"total_formatted"`
	LegalReferences  []LegalReferenceDTO `json:"legal_references"`
}

// LegalReferenceDTO is one decree cited by a mission.
type LegalReferenceDTO struct {
	Decree string `json:"decree"`
	Date   string `json:"date"`
}

// SaveMissionRequest creates a mission, or replaces it when ID is set.
type SaveMissionRequest struct {
	ID               string      `json:"id,omitempty"`
	Name             string      `json:"name"`
	IncludeAllowance bool        `json:"include_allowance"`
	Periods          []PeriodDTO `json:"periods"`
}

// =============================================================================
// CALCULATION
// =============================================================================

// CalculateRequest is the body of POST /api/calculate.
type CalculateRequest struct {
	Periods          []PeriodDTO `json:"periods"`
	IncludeAllowance bool        `json:"include_allowance"`
}

// LineDTO is one computed period.
type LineDTO struct {
	Index         int             `json:"index"`
	Period        PeriodDTO       `json:"period"`
	GroupLabel    string          `json:"group_label"`
	LocalityLabel string          `json:"locality_label"`
	Days          decimal.Decimal `json:"days"`
	UnitRate      decimal.Decimal `json:"unit_rate"`
	Cost          decimal.Decimal `json:"cost"`
	CostFormatted string          `json:"cost_formatted"`
}

// BreakdownDTO is the response of POST /api/calculate.
type BreakdownDTO struct {
	Lines            []LineDTO       `json:"lines"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	IncludeAllowance bool            `json:"include_allowance"`
	AllowanceRate    decimal.Decimal `json:"allowance_rate"`
	TotalHeadcount   int             `json:"total_headcount"`
	AllowanceTotal   decimal.Decimal `json:"allowance_total"`
	Total            decimal.Decimal `json:"total"`
	TotalFormatted   string          `json:"total_formatted"`
}

// =============================================================================
// RATE TABLES
// =============================================================================

// RateTableResponse wraps the current table with where it came from.
type RateTableResponse struct {
	Source    string               `json:"source"`
	LoadedAt  string               `json:"loaded_at,omitempty"`
	LastError string               `json:"last_error,omitempty"`
	Table     factory.RateDocument `json:"table"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Missions    int    `json:"missions"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION
// =============================================================================

func toPeriodDTO(p diaria.Period) PeriodDTO {
	return PeriodDTO{
		ID:               string(p.ID),
		Group:            string(p.Group),
		Locality:         string(p.Locality),
		Start:            p.Start,
		End:              p.End,
		Headcount:        p.Headcount,
		CountLastDayFull: p.CountLastDayFull,
	}
}

func fromPeriodDTO(d PeriodDTO) diaria.Period {
	return diaria.Period{
		ID:               diaria.PeriodID(d.ID),
		Group:            diaria.GroupKey(d.Group),
		Locality:         diaria.LocalityKey(d.Locality),
		Start:            d.Start,
		End:              d.End,
		Headcount:        d.Headcount,
		CountLastDayFull: d.CountLastDayFull,
	}
}

func fromPeriodDTOs(ds []PeriodDTO) []diaria.Period {
	out := make([]diaria.Period, len(ds))
	for i, d := range ds {
		out[i] = fromPeriodDTO(d)
	}
	return out
}

func toMissionDTO(m diaria.Mission) MissionDTO {
	dto := MissionDTO{
		ID:               string(m.ID),
		Name:             m.Name,
		IncludeAllowance: m.IncludeAllowance,
		Periods:          make([]PeriodDTO, len(m.Periods)),
		Total:            m.Total,
		TotalFormatted:   diaria.FormatBRL(m.Total),
		LegalReferences:  make([]LegalReferenceDTO, len(m.LegalReferences)),
	}
	if !m.CreatedAt.IsZero() {
		dto.CreatedAt = m.CreatedAt.UTC().Format(time.RFC3339)
	}
	for i, p := range m.Periods {
		dto.Periods[i] = toPeriodDTO(p)
	}
	for i, r := range m.LegalReferences {
		dto.LegalReferences[i] = LegalReferenceDTO{Decree: r.Decree, Date: r.Date}
	}
	return dto
}

func toBreakdownDTO(b diaria.MissionBreakdown) BreakdownDTO {
	dto := BreakdownDTO{
		Lines:            make([]LineDTO, len(b.Lines)),
		Subtotal:         b.Subtotal,
		IncludeAllowance: b.IncludeAllowance,
		AllowanceRate:    b.AllowanceRate,
		TotalHeadcount:   b.TotalHeadcount,
		AllowanceTotal:   b.AllowanceTotal,
		Total:            b.Total,
		TotalFormatted:   diaria.FormatBRL(b.Total),
	}
	for i, l := range b.Lines {
		dto.Lines[i] = LineDTO{
			Index:         l.Index,
			Period:        toPeriodDTO(l.Period),
			GroupLabel:    l.GroupLabel,
			LocalityLabel: l.LocalityLabel,
			Days:          l.Days,
			UnitRate:      l.UnitRate,
			Cost:          l.Cost,
			CostFormatted: diaria.FormatBRL(l.Cost),
		}
	}
	return dto
}
