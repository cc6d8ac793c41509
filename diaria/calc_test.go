package diaria_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cadrimil/engine/diaria"
	"github.com/cadrimil/engine/factory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func march(day int) diaria.Date {
	return diaria.NewDate(2025, time.March, day)
}

func period(group diaria.GroupKey, locality diaria.LocalityKey, start, end diaria.Date, headcount int) diaria.Period {
	return diaria.Period{
		Group:     group,
		Locality:  locality,
		Start:     start,
		End:       end,
		Headcount: headcount,
	}
}

func assertDecimal(t *testing.T, what string, want string, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s: expected %s, got %s", what, want, got)
	}
}

// =============================================================================
// BILLABLE DAYS
// =============================================================================

func TestBillableDays_LastDayHalf(t *testing.T) {
	// GIVEN: March 1st to March 3rd, last day counted as half
	// WHEN: Counting billable days
	// THEN: 2 full days + 0.5

	assertDecimal(t, "1..3 half", "2.5", diaria.BillableDays(march(1), march(3), false))
}

func TestBillableDays_LastDayFull(t *testing.T) {
	assertDecimal(t, "1..3 full", "3", diaria.BillableDays(march(1), march(3), true))
}

func TestBillableDays_SingleDay(t *testing.T) {
	// A same-day trip is the last day itself.
	assertDecimal(t, "same day half", "0.5", diaria.BillableDays(march(5), march(5), false))
	assertDecimal(t, "same day full", "1", diaria.BillableDays(march(5), march(5), true))
}

func TestBillableDays_EndBeforeStart(t *testing.T) {
	assertDecimal(t, "reversed", "0", diaria.BillableDays(march(3), march(1), false))
	assertDecimal(t, "reversed full", "0", diaria.BillableDays(march(3), march(1), true))
}

func TestBillableDays_MissingDate(t *testing.T) {
	// An absent date is the zero Date (year 1), never a real range.
	assertDecimal(t, "no start", "0", diaria.BillableDays(diaria.Date{}, march(3), false))
	assertDecimal(t, "no end", "0", diaria.BillableDays(march(1), diaria.Date{}, true))
	assertDecimal(t, "neither", "0", diaria.BillableDays(diaria.Date{}, diaria.Date{}, true))
}

func TestDaysBetween_LongRange(t *testing.T) {
	// GIVEN: A range longer than time.Duration can hold
	from := diaria.MustParseDate("1000-01-01")
	to := diaria.MustParseDate("2000-01-01")

	// THEN: The count is exact: 1000 years with 242 leap days
	if got := diaria.DaysBetween(from, to); got != 365242 {
		t.Errorf("DaysBetween = %d, want 365242", got)
	}
	if got := diaria.DaysBetween(to, from); got != -365242 {
		t.Errorf("reversed DaysBetween = %d, want -365242", got)
	}
	assertDecimal(t, "long range", "365242.5", diaria.BillableDays(from, to, false))
}

func TestBillableDays_AcrossMonthAndLeapDay(t *testing.T) {
	start := diaria.NewDate(2024, time.February, 27)
	end := diaria.NewDate(2024, time.March, 2)

	// 27, 28, 29, 1 full + half of the 2nd
	assertDecimal(t, "leap february", "4.5", diaria.BillableDays(start, end, false))
}

func TestBillableDays_MonotonicInEnd(t *testing.T) {
	prev := decimal.Zero
	for day := 1; day <= 31; day++ {
		got := diaria.BillableDays(march(1), march(day), false)
		if got.LessThan(prev) {
			t.Fatalf("billable days decreased at day %d: %s < %s", day, got, prev)
		}
		prev = got
	}
}

// =============================================================================
// UNIT RATE
// =============================================================================

func TestUnitRate_KnownPair(t *testing.T) {
	table := factory.DefaultRateTable()

	assertDecimal(t, "A/l1", "406.70", diaria.UnitRate("A", "l1", table))
	assertDecimal(t, "G/l4", "147.00", diaria.UnitRate("G", "l4", table))
}

func TestUnitRate_UnknownKeysAreZero(t *testing.T) {
	table := factory.DefaultRateTable()

	assertDecimal(t, "unknown group", "0", diaria.UnitRate("Z", "l1", table))
	assertDecimal(t, "unknown locality", "0", diaria.UnitRate("A", "l9", table))
	assertDecimal(t, "empty table", "0", diaria.UnitRate("A", "l1", diaria.RateTable{}))
}

func TestUnitRate_NegativeIsZero(t *testing.T) {
	table := factory.DefaultRateTable()
	table.Rates["A"]["l1"] = dec("-1")

	assertDecimal(t, "negative", "0", diaria.UnitRate("A", "l1", table))
}

// =============================================================================
// PERIOD COST AND MISSION TOTAL
// =============================================================================

func TestPeriodCost(t *testing.T) {
	// GIVEN: 2 people of group A in l1 from March 1st to 3rd
	// WHEN: Costing the period
	// THEN: 2.5 days * 406.70 * 2 = 2033.50

	table := factory.DefaultRateTable()
	p := period("A", "l1", march(1), march(3), 2)

	assertDecimal(t, "cost", "2033.50", diaria.PeriodCost(p, table))
}

func TestPeriodCost_NonPositiveHeadcount(t *testing.T) {
	table := factory.DefaultRateTable()

	assertDecimal(t, "zero", "0", diaria.PeriodCost(period("A", "l1", march(1), march(3), 0), table))
	assertDecimal(t, "negative", "0", diaria.PeriodCost(period("A", "l1", march(1), march(3), -4), table))
}

func TestMissionTotal_WithAllowance(t *testing.T) {
	// GIVEN: The same period with the AED enabled
	// THEN: 2033.50 + 95.00 * 2 = 2223.50

	table := factory.DefaultRateTable()
	periods := []diaria.Period{period("A", "l1", march(1), march(3), 2)}

	assertDecimal(t, "without AED", "2033.50", diaria.MissionTotal(periods, false, table))
	assertDecimal(t, "with AED", "2223.50", diaria.MissionTotal(periods, true, table))
}

func TestMissionTotal_Empty(t *testing.T) {
	table := factory.DefaultRateTable()

	assertDecimal(t, "nil", "0", diaria.MissionTotal(nil, false, table))
	assertDecimal(t, "nil with AED", "0", diaria.MissionTotal(nil, true, table))
}

func TestMissionTotal_OrderDoesNotMatter(t *testing.T) {
	table := factory.DefaultRateTable()
	a := period("A", "l1", march(1), march(3), 2)
	b := period("E", "l3", march(10), march(14), 5)
	c := period("G", "l4", march(20), march(20), 1)

	first := diaria.MissionTotal([]diaria.Period{a, b, c}, true, table)
	second := diaria.MissionTotal([]diaria.Period{c, a, b}, true, table)

	if !first.Equal(second) {
		t.Errorf("total depends on order: %s vs %s", first, second)
	}
}

func TestMissionTotal_AllowanceCountsEveryHead(t *testing.T) {
	// GIVEN: Two periods with 2 and 3 people
	// WHEN: AED enabled
	// THEN: The AED is paid 5 times, once per head per period

	table := factory.DefaultRateTable()
	periods := []diaria.Period{
		period("A", "l1", march(1), march(1), 2),
		period("B", "l2", march(2), march(2), 3),
	}

	with := diaria.MissionTotal(periods, true, table)
	without := diaria.MissionTotal(periods, false, table)

	assertDecimal(t, "AED delta", "475", with.Sub(without))
}

func TestMissionTotal_UnknownKeysContributeAllowanceOnly(t *testing.T) {
	table := factory.DefaultRateTable()
	periods := []diaria.Period{period("Z", "l1", march(1), march(3), 2)}

	assertDecimal(t, "unknown group", "0", diaria.MissionTotal(periods, false, table))
	assertDecimal(t, "unknown group with AED", "190", diaria.MissionTotal(periods, true, table))
}

// =============================================================================
// BREAKDOWN
// =============================================================================

func TestBreakdown_MatchesMissionTotal(t *testing.T) {
	table := factory.DefaultRateTable()
	periods := []diaria.Period{
		period("A", "l1", march(1), march(3), 2),
		period("D", "l4", march(5), march(9), 3),
	}
	periods[1].CountLastDayFull = true

	b := diaria.Breakdown(periods, true, table)

	if len(b.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(b.Lines))
	}
	if b.Lines[0].Index != 1 || b.Lines[1].Index != 2 {
		t.Errorf("lines are not numbered from 1: %d, %d", b.Lines[0].Index, b.Lines[1].Index)
	}
	assertDecimal(t, "line 2 days", "5", b.Lines[1].Days)
	assertDecimal(t, "line 2 rate", "177.00", b.Lines[1].UnitRate)
	assertDecimal(t, "allowance", "475", b.AllowanceTotal)
	if b.TotalHeadcount != 5 {
		t.Errorf("expected headcount 5, got %d", b.TotalHeadcount)
	}
	if !b.Total.Equal(diaria.MissionTotal(periods, true, table)) {
		t.Errorf("breakdown total %s differs from mission total", b.Total)
	}
	if b.Lines[0].GroupLabel == "" || b.Lines[0].LocalityLabel == "" {
		t.Errorf("labels not resolved: %+v", b.Lines[0])
	}
}

// =============================================================================
// FORMATTING
// =============================================================================

func TestFormatBRL(t *testing.T) {
	cases := map[string]string{
		"0":          "0,00",
		"2223.5":     "2.223,50",
		"1234567.89": "1.234.567,89",
		"999.999":    "1.000,00",
		"-15.5":      "-15,50",
	}
	for in, want := range cases {
		if got := diaria.FormatBRL(dec(in)); got != want {
			t.Errorf("FormatBRL(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestRound2(t *testing.T) {
	assertDecimal(t, "half up", "61.73", diaria.Round2(dec("61.725")))
	assertDecimal(t, "half away from zero", "-61.73", diaria.Round2(dec("-61.725")))
	assertDecimal(t, "already cents", "2223.5", diaria.Round2(dec("2223.50")))
}

func TestFormatDays(t *testing.T) {
	if got := diaria.FormatDays(dec("2.5")); got != "2,5" {
		t.Errorf("FormatDays(2.5) = %q", got)
	}
	if got := diaria.FormatDays(dec("3")); got != "3,0" {
		t.Errorf("FormatDays(3) = %q", got)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidatePeriod(t *testing.T) {
	table := factory.DefaultRateTable()
	ok := period("A", "l1", march(1), march(3), 2)

	if err := diaria.ValidateAgainst(ok, table); err != nil {
		t.Fatalf("valid period rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*diaria.Period)
		want   error
	}{
		{"missing group", func(p *diaria.Period) { p.Group = "" }, diaria.ErrMissingGroup},
		{"unknown group", func(p *diaria.Period) { p.Group = "Z" }, diaria.ErrMissingGroup},
		{"unknown locality", func(p *diaria.Period) { p.Locality = "l9" }, diaria.ErrMissingLocality},
		{"zero headcount", func(p *diaria.Period) { p.Headcount = 0 }, diaria.ErrInvalidHeadcount},
		{"end before start", func(p *diaria.Period) { p.End = march(1); p.Start = march(2) }, diaria.ErrInvalidPeriod},
		{"missing date", func(p *diaria.Period) { p.End = diaria.Date{} }, diaria.ErrInvalidPeriod},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := ok
			tc.mutate(&p)
			err := diaria.ValidateAgainst(p, table)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
			if !diaria.IsClientError(err) {
				t.Errorf("expected a client error, got %v", err)
			}
		})
	}
}
