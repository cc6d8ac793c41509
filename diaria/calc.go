/*
calc.go - Per-diem arithmetic

PURPOSE:
  Converts periods into money. Every function here is pure: it reads only
  its arguments, mutates nothing and never returns an error, so it can be
  called from any goroutine without locking.

FORMULAS:
  billable days = (span - 1) + (CountLastDayFull ? 1.0 : 0.5)
                  where span = DaysBetween(start, end) + 1, and 0 if span <= 0
  period cost   = billable days * unit rate * headcount
  mission total = sum(period cost) + (allowance ? AED * sum(headcount) : 0)

MISSING DATA:
  - Unknown group or locality: unit rate 0
  - Negative stored rate: unit rate 0
  - Headcount <= 0: contributes nothing (neither cost nor AED)

PRECISION:
  All arithmetic uses decimal.Decimal. Rounding to cents happens only at
  display time (Round2, FormatBRL), never inside the totals.

SEE ALSO:
  - types.go: RateTable, Period, Mission
  - format.go: Currency display
*/
package diaria

import (
	"github.com/shopspring/decimal"
)

var (
	fullDay = decimal.NewFromInt(1)
	halfDay = decimal.NewFromFloat(0.5)
)

// =============================================================================
// DAY SPAN
// =============================================================================

// BillableDays returns the fractional number of per-diem units for the
// inclusive date range [start, end]. The last day counts half unless
// countLastDayFull is set. An end before start, or a missing date, yields
// zero.
func BillableDays(start, end Date, countLastDayFull bool) decimal.Decimal {
	if start.IsZero() || end.IsZero() {
		return decimal.Zero
	}
	span := DaysBetween(start, end) + 1
	if span <= 0 {
		return decimal.Zero
	}

	lastDay := halfDay
	if countLastDayFull {
		lastDay = fullDay
	}
	return decimal.NewFromInt(int64(span - 1)).Add(lastDay)
}

// =============================================================================
// RATE LOOKUP
// =============================================================================

// UnitRate returns the per-diem rate for (group, locality), or zero when
// either key is unknown or the stored value is negative.
func UnitRate(group GroupKey, locality LocalityKey, table RateTable) decimal.Decimal {
	byLocality, ok := table.Rates[group]
	if !ok {
		return decimal.Zero
	}
	rate, ok := byLocality[locality]
	if !ok || rate.IsNegative() {
		return decimal.Zero
	}
	return rate
}

// =============================================================================
// PERIOD COST
// =============================================================================

// PeriodCost returns billable days * unit rate * headcount for one period.
func PeriodCost(p Period, table RateTable) decimal.Decimal {
	headcount := normalizedHeadcount(p.Headcount)
	if headcount == 0 {
		return decimal.Zero
	}
	days := BillableDays(p.Start, p.End, p.CountLastDayFull)
	rate := UnitRate(p.Group, p.Locality, table)
	return days.Mul(rate).Mul(decimal.NewFromInt(int64(headcount)))
}

// =============================================================================
// MISSION AGGREGATION
// =============================================================================

// MissionTotal sums the cost of every period and, when includeAllowance is
// set, adds the AED once per head across all periods. An empty list is 0.
func MissionTotal(periods []Period, includeAllowance bool, table RateTable) decimal.Decimal {
	total := decimal.Zero
	for _, p := range periods {
		total = total.Add(PeriodCost(p, table))
	}
	if includeAllowance {
		total = total.Add(AllowanceTotal(periods, table))
	}
	return total
}

// TotalHeadcount sums the headcount of all periods, ignoring invalid counts.
func TotalHeadcount(periods []Period) int {
	n := 0
	for _, p := range periods {
		n += normalizedHeadcount(p.Headcount)
	}
	return n
}

// AllowanceTotal is the AED rate times the total headcount.
func AllowanceTotal(periods []Period, table RateTable) decimal.Decimal {
	rate := table.Allowance.Value
	if rate.IsNegative() {
		return decimal.Zero
	}
	return rate.Mul(decimal.NewFromInt(int64(TotalHeadcount(periods))))
}

func normalizedHeadcount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// =============================================================================
// BREAKDOWN - Line items for reports and the calculate endpoint
// =============================================================================

// PeriodLine is the computed view of a single period.
type PeriodLine struct {
	Index         int // 1-based position in the mission
	Period        Period
	GroupLabel    string
	LocalityLabel string
	Days          decimal.Decimal
	UnitRate      decimal.Decimal
	Cost          decimal.Decimal
}

// MissionBreakdown explains how a mission total was reached.
type MissionBreakdown struct {
	Lines            []PeriodLine
	Subtotal         decimal.Decimal
	IncludeAllowance bool
	AllowanceRate    decimal.Decimal
	TotalHeadcount   int
	AllowanceTotal   decimal.Decimal
	Total            decimal.Decimal
}

// Breakdown computes the per-period lines and the allowance line. Its Total
// is always equal to MissionTotal for the same arguments.
func Breakdown(periods []Period, includeAllowance bool, table RateTable) MissionBreakdown {
	b := MissionBreakdown{
		Lines:            make([]PeriodLine, len(periods)),
		Subtotal:         decimal.Zero,
		IncludeAllowance: includeAllowance,
		AllowanceRate:    table.Allowance.Value,
		TotalHeadcount:   TotalHeadcount(periods),
		AllowanceTotal:   decimal.Zero,
	}

	for i, p := range periods {
		cost := PeriodCost(p, table)
		b.Lines[i] = PeriodLine{
			Index:         i + 1,
			Period:        p,
			GroupLabel:    table.GroupLabel(p.Group),
			LocalityLabel: table.LocalityLabel(p.Locality),
			Days:          BillableDays(p.Start, p.End, p.CountLastDayFull),
			UnitRate:      UnitRate(p.Group, p.Locality, table),
			Cost:          cost,
		}
		b.Subtotal = b.Subtotal.Add(cost)
	}

	if includeAllowance {
		b.AllowanceTotal = AllowanceTotal(periods, table)
	}
	b.Total = b.Subtotal.Add(b.AllowanceTotal)
	return b
}
