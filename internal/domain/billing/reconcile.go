package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EditedField records which of discount and total the user typed into last.
type EditedField int

const (
	EditedNone EditedField = iota
	EditedDiscount
	EditedTotal
)

func (f EditedField) String() string {
	switch f {
	case EditedDiscount:
		return "discount"
	case EditedTotal:
		return "total"
	default:
		return "none"
	}
}

func (f EditedField) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *EditedField) UnmarshalText(b []byte) error {
	switch string(b) {
	case "discount":
		*f = EditedDiscount
	case "total":
		*f = EditedTotal
	case "none", "":
		*f = EditedNone
	default:
		return fmt.Errorf("unknown edited field %q", b)
	}
	return nil
}

// Field is a monetary input. HasUserInput is set only by user edits; values
// written back by the engine leave it untouched.
type Field struct {
	Value        decimal.Decimal `json:"value"`
	HasUserInput bool            `json:"hasUserInput"`
}

// Reconciled holds the discount and total derived from one recomputation.
type Reconciled struct {
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Reconcile derives discount and total from the base total. The field edited
// last wins; otherwise whichever single field carries user input; otherwise
// no discount.
func Reconcile(base decimal.Decimal, discount, total Field, last EditedField) Reconciled {
	base = round(base)
	fromDiscount := func() Reconciled {
		d := round(discount.Value)
		return Reconciled{Discount: d, Total: round(base.Sub(d))}
	}
	fromTotal := func() Reconciled {
		t := round(total.Value)
		return Reconciled{Discount: round(base.Sub(t)), Total: t}
	}

	switch {
	case last == EditedDiscount:
		return fromDiscount()
	case last == EditedTotal:
		return fromTotal()
	case discount.HasUserInput && !total.HasUserInput:
		return fromDiscount()
	case total.HasUserInput && !discount.HasUserInput:
		return fromTotal()
	default:
		return Reconciled{Discount: decimal.Zero, Total: base}
	}
}

// SyncDue is total minus paid once a payment has been entered, else the full
// total. Overpayment yields a negative due and is kept as is.
func SyncDue(total decimal.Decimal, paid Field) decimal.Decimal {
	if !paid.HasUserInput {
		return round(total)
	}
	return round(total.Sub(paid.Value))
}
