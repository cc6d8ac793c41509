package diaria

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 rounds half away from zero to cents. Display only: spreadsheet
// cells hold the rounded amount.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatBRL renders an amount the Brazilian way without the "R$" prefix:
// 1234.5 -> "1.234,50".
func FormatBRL(d decimal.Decimal) string {
	return formatPtBR(d, 2)
}

// FormatDays renders a billable-day count with one decimal: 2.5 -> "2,5".
func FormatDays(d decimal.Decimal) string {
	return formatPtBR(d, 1)
}

func formatPtBR(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	if negative && strings.Trim(intPart+fracPart, "0") != "" {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if places > 0 {
		b.WriteByte(',')
		b.WriteString(fracPart)
	}
	return b.String()
}
