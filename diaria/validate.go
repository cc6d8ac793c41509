package diaria

import "strconv"

// ValidatePeriod rejects input the interactive form would refuse: missing
// keys, non-positive headcount and end before start. The calculation
// functions accept all of these and yield zero; validation is for callers
// that take input from people.
func ValidatePeriod(p Period) error {
	if p.Group == "" {
		return &PeriodValidationError{Field: "group", Value: "", Err: ErrMissingGroup}
	}
	if p.Locality == "" {
		return &PeriodValidationError{Field: "locality", Value: "", Err: ErrMissingLocality}
	}
	if p.Headcount <= 0 {
		return &PeriodValidationError{Field: "headcount", Value: strconv.Itoa(p.Headcount), Err: ErrInvalidHeadcount}
	}
	if p.Start.IsZero() || p.End.IsZero() {
		return &PeriodValidationError{Field: "dates", Value: p.Start.String() + ".." + p.End.String(), Err: ErrInvalidPeriod}
	}
	if DaysBetween(p.Start, p.End) < 0 {
		return &PeriodValidationError{Field: "end", Value: p.End.String(), Err: ErrInvalidPeriod}
	}
	return nil
}

// ValidateAgainst runs ValidatePeriod and also requires both keys to be
// present in the table.
func ValidateAgainst(p Period, table RateTable) error {
	if err := ValidatePeriod(p); err != nil {
		return err
	}
	if _, ok := table.Groups[p.Group]; !ok {
		return &PeriodValidationError{Field: "group", Value: string(p.Group), Err: ErrMissingGroup}
	}
	if _, ok := table.Localities[p.Locality]; !ok {
		return &PeriodValidationError{Field: "locality", Value: string(p.Locality), Err: ErrMissingLocality}
	}
	return nil
}
