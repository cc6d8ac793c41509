/*
snapshot.go - Mission export/import file format

PURPOSE:
  Defines the JSON document written when a mission is exported and read
  back when a file is imported. The field names are those of the files
  produced by the mobile app, so exports move freely between the two.

JSON SHAPE:
  {
    "id": "8d0f...",
    "nomeMissao": "Missão Sudeste",
    "dataCriacao": "2025-03-10T14:22:05Z",
    "periodos": [
      {
        "id": "1c3a...",
        "grupo": "A",
        "localidade": "l1",
        "dataInicio": "2025-03-01",
        "dataFim": "2025-03-03",
        "quantidadeMilitares": 2,
        "contarUltimoDiaInteiro": false
      }
    ],
    "incluirAED": true,
    "valorTotal": 2223.5,
    "decretosReferencia": [{"decree": "Decreto nº 11.117", "date": "2022-06-30"}]
  }

COMPATIBILITY:
  - Dates are written as YYYY-MM-DD. Full timestamps are accepted on read
    and reduced to their calendar date.
  - A headcount that is not a number reads as 0 and contributes nothing.
  - valorTotal is carried as written; callers recompute it (it is a cache).

SEE ALSO:
  - session.go: Import treats a decoded mission as an unsaved copy
  - store/sqlite/sqlite.go: Stores periods with the same period encoding
*/
package diaria

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// MissionFile is the serialized form of a Mission.
type MissionFile struct {
	ID               string              `json:"id"`
	Name             string              `json:"nomeMissao"`
	CreatedAt        time.Time           `json:"dataCriacao"`
	Periods          []PeriodFile        `json:"periodos"`
	IncludeAllowance bool                `json:"incluirAED"`
	Total            Amount              `json:"valorTotal"`
	LegalReferences  []LegalReferenceDoc `json:"decretosReferencia"`
}

// PeriodFile is the serialized form of a Period.
type PeriodFile struct {
	ID               string    `json:"id"`
	Group            string    `json:"grupo"`
	Locality         string    `json:"localidade"`
	Start            Date      `json:"dataInicio"`
	End              Date      `json:"dataFim"`
	Headcount        Headcount `json:"quantidadeMilitares"`
	CountLastDayFull bool      `json:"contarUltimoDiaInteiro"`
}

// LegalReferenceDoc is the serialized form of a LegalReference.
type LegalReferenceDoc struct {
	Decree string `json:"decree"`
	Date   string `json:"date"`
}

// Amount is a decimal written as a bare JSON number.
type Amount decimal.Decimal

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*a = Amount(decimal.Zero)
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*a = Amount(d)
	return nil
}

// Headcount decodes numbers and numeric strings; anything else is 0.
type Headcount int

func (h *Headcount) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if n, err := strconv.Atoi(s); err == nil {
		*h = Headcount(n)
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		*h = Headcount(int(f))
		return nil
	}
	*h = 0
	return nil
}

// =============================================================================
// CONVERSION
// =============================================================================

// ToFile converts a mission to its serialized form.
func ToFile(m Mission) MissionFile {
	f := MissionFile{
		ID:               string(m.ID),
		Name:             m.Name,
		CreatedAt:        m.CreatedAt.UTC(),
		Periods:          make([]PeriodFile, len(m.Periods)),
		IncludeAllowance: m.IncludeAllowance,
		Total:            Amount(m.Total),
		LegalReferences:  make([]LegalReferenceDoc, len(m.LegalReferences)),
	}
	for i, p := range m.Periods {
		f.Periods[i] = PeriodToFile(p)
	}
	for i, r := range m.LegalReferences {
		f.LegalReferences[i] = LegalReferenceDoc{Decree: r.Decree, Date: r.Date}
	}
	return f
}

// FromFile converts a serialized mission back to the domain type.
func FromFile(f MissionFile) Mission {
	m := Mission{
		ID:               MissionID(f.ID),
		Name:             f.Name,
		CreatedAt:        f.CreatedAt,
		Periods:          make([]Period, len(f.Periods)),
		IncludeAllowance: f.IncludeAllowance,
		Total:            decimal.Decimal(f.Total),
		LegalReferences:  make([]LegalReference, len(f.LegalReferences)),
	}
	for i, p := range f.Periods {
		m.Periods[i] = PeriodFromFile(p)
	}
	for i, r := range f.LegalReferences {
		m.LegalReferences[i] = LegalReference{Decree: r.Decree, Date: r.Date}
	}
	return m
}

// PeriodToFile converts one period to its serialized form.
func PeriodToFile(p Period) PeriodFile {
	return PeriodFile{
		ID:               string(p.ID),
		Group:            string(p.Group),
		Locality:         string(p.Locality),
		Start:            p.Start,
		End:              p.End,
		Headcount:        Headcount(p.Headcount),
		CountLastDayFull: p.CountLastDayFull,
	}
}

// PeriodFromFile converts one serialized period to the domain type.
func PeriodFromFile(f PeriodFile) Period {
	return Period{
		ID:               PeriodID(f.ID),
		Group:            GroupKey(f.Group),
		Locality:         LocalityKey(f.Locality),
		Start:            f.Start,
		End:              f.End,
		Headcount:        int(f.Headcount),
		CountLastDayFull: f.CountLastDayFull,
	}
}

// =============================================================================
// ENCODE / DECODE
// =============================================================================

// MarshalMission encodes a mission as an indented export document.
func MarshalMission(m Mission) ([]byte, error) {
	return json.MarshalIndent(ToFile(m), "", "  ")
}

// UnmarshalMission decodes an export document.
func UnmarshalMission(data []byte) (Mission, error) {
	var f MissionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Mission{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := checkPeriodDates(f); err != nil {
		return Mission{}, err
	}
	return FromFile(f), nil
}

// checkPeriodDates rejects periods whose start or end is absent. The zero
// Date is year 1 and would otherwise be priced as a real range.
func checkPeriodDates(f MissionFile) error {
	for i, p := range f.Periods {
		switch {
		case p.Start.IsZero():
			return fmt.Errorf("%w: period %d: missing dataInicio", ErrInvalidSnapshot, i+1)
		case p.End.IsZero():
			return fmt.Errorf("%w: period %d: missing dataFim", ErrInvalidSnapshot, i+1)
		}
	}
	return nil
}

// MarshalMissions encodes a list of missions (the layout of the local
// mission list in the mobile app).
func MarshalMissions(ms []Mission) ([]byte, error) {
	files := make([]MissionFile, len(ms))
	for i, m := range ms {
		files[i] = ToFile(m)
	}
	return json.Marshal(files)
}

// UnmarshalMissions decodes a list of missions.
func UnmarshalMissions(data []byte) ([]Mission, error) {
	var files []MissionFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	ms := make([]Mission, len(files))
	for i, f := range files {
		if err := checkPeriodDates(f); err != nil {
			return nil, fmt.Errorf("mission %d: %w", i+1, err)
		}
		ms[i] = FromFile(f)
	}
	return ms, nil
}
