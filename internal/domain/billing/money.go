package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is held as an exact decimal in major currency units and rounded to
// two places, half away from zero, after every arithmetic step.
const moneyPlaces = 2

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// ParseAmount interprets the text of a monetary input field. Blank text means
// the field holds no user input. Any other text counts as user input; text
// that is not a number is read as zero.
func ParseAmount(raw string) (value decimal.Decimal, hasInput bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, true
	}
	return round(d), true
}
