/*
Package diaria provides the per-diem ("diária") calculation core.

PURPOSE:
  This package contains the types and pure functions that turn a list of
  mission periods into a reimbursement total. Whether the caller is the
  HTTP API, the CLI or a report renderer, the same functions compute
  billable days, look up unit rates and aggregate mission totals.

KEY CONCEPTS IN THIS FILE (types.go):
  - RateTable: unit rates indexed by (rank group, locality) plus the AED
  - Period: one contiguous date range for a group of people
  - Mission: a named, persisted collection of periods with a cached total
  - LegalReference: decree citation snapshotted into saved missions

DESIGN PRINCIPLES:
  1. Explicit inputs: every calculation receives the RateTable as an
     argument. There is no package-level table.
  2. Precision: money and fractional days use decimal.Decimal.
  3. Graceful degradation: unknown keys yield zero, never an error.
  4. Cache, not truth: Mission.Total is recomputed on every change.

USAGE:
  table := factory.DefaultRateTable()
  p := diaria.Period{
      Group: "A", Locality: "l1",
      Start: diaria.NewDate(2025, time.March, 1),
      End:   diaria.NewDate(2025, time.March, 3),
      Headcount: 2,
  }
  total := diaria.MissionTotal([]diaria.Period{p}, true, table)

SEE ALSO:
  - calc.go: Day span, rate lookup and aggregation
  - session.go: Editing state for the mission being built
  - snapshot.go: Export/import file format
*/
package diaria

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type GroupKey string
type LocalityKey string
type MissionID string
type PeriodID string

// =============================================================================
// RATE TABLE - Per-diem rates published by decree
// =============================================================================

// Decree is a legal citation as published alongside the rate table.
type Decree struct {
	Title  string
	Decree string
	Date   string
	Link   string
}

// LegalReference is the part of a Decree kept inside saved missions.
type LegalReference struct {
	Decree string
	Date   string
}

// Allowance is the boarding/disembarking allowance (AED), paid once per head.
type Allowance struct {
	Title string
	Value decimal.Decimal
}

// RateTable maps (group, locality) to a unit per-diem rate.
// A pair absent from Rates is a valid zero rate, not an error.
type RateTable struct {
	Groups     map[GroupKey]string
	Localities map[LocalityKey]string
	Rates      map[GroupKey]map[LocalityKey]decimal.Decimal
	Allowance  Allowance
	Decrees    []Decree
}

// GroupKeys returns the group keys in sorted order.
func (t RateTable) GroupKeys() []GroupKey {
	keys := make([]GroupKey, 0, len(t.Groups))
	for k := range t.Groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// LocalityKeys returns the locality keys in sorted order.
func (t RateTable) LocalityKeys() []LocalityKey {
	keys := make([]LocalityKey, 0, len(t.Localities))
	for k := range t.Localities {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// GroupLabel returns the description of a group, or "" when unknown.
func (t RateTable) GroupLabel(g GroupKey) string { return t.Groups[g] }

// LocalityLabel returns the description of a locality, or "" when unknown.
func (t RateTable) LocalityLabel(l LocalityKey) string { return t.Localities[l] }

// LegalReferences returns the decree citations in publication order.
func (t RateTable) LegalReferences() []LegalReference {
	refs := make([]LegalReference, len(t.Decrees))
	for i, d := range t.Decrees {
		refs[i] = LegalReference{Decree: d.Decree, Date: d.Date}
	}
	return refs
}

// IsEmpty reports whether the table has no rates at all.
func (t RateTable) IsEmpty() bool { return len(t.Rates) == 0 }

// =============================================================================
// PERIOD - One line-item of a mission
// =============================================================================

// Period covers a contiguous date range for Headcount people of one group
// travelling to one locality. The type does not enforce End >= Start or a
// positive headcount; see ValidatePeriod.
type Period struct {
	ID               PeriodID
	Group            GroupKey
	Locality         LocalityKey
	Start            Date
	End              Date
	Headcount        int
	CountLastDayFull bool
}

// =============================================================================
// MISSION - Saved calculation
// =============================================================================

// DefaultMissionName is used when a mission is saved without a name.
const DefaultMissionName = "Missão Sem Título"

// Mission is a named snapshot of periods. Total is derived from Periods,
// IncludeAllowance and a RateTable and must never be trusted on its own.
type Mission struct {
	ID               MissionID
	Name             string
	CreatedAt        time.Time
	Periods          []Period
	IncludeAllowance bool
	Total            decimal.Decimal
	LegalReferences  []LegalReference
}

// IsSaved reports whether the mission has been persisted at least once.
func (m Mission) IsSaved() bool { return m.ID != "" }

// Recompute refreshes the cached total against the given table.
func (m *Mission) Recompute(table RateTable) {
	m.Total = MissionTotal(m.Periods, m.IncludeAllowance, table)
}

// Clone returns a copy that shares no slices with m.
func (m Mission) Clone() Mission {
	out := m
	out.Periods = append([]Period(nil), m.Periods...)
	out.LegalReferences = append([]LegalReference(nil), m.LegalReferences...)
	return out
}
