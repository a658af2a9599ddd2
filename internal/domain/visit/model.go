package visit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Visit is a submitted bill together with the patient it was raised for.
type Visit struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	PatientName string          `db:"patient_name" json:"patientName"`
	Age         *int            `db:"age" json:"age,omitempty"`
	Gender      *string         `db:"gender" json:"gender,omitempty"`
	Phone       *string         `db:"phone" json:"phone,omitempty"`
	ReferredBy  *string         `db:"referred_by" json:"referredBy,omitempty"`
	BaseTotal   decimal.Decimal `db:"base_total" json:"baseTotal"`
	Discount    decimal.Decimal `db:"discount" json:"discount"`
	Total       decimal.Decimal `db:"total" json:"total"`
	Paid        decimal.Decimal `db:"paid" json:"paid"`
	Due         decimal.Decimal `db:"due" json:"due"`
	Lines       []Line          `json:"lines,omitempty"`
	CreatedBy   string          `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// Line is a persisted bill line.
type Line struct {
	Position int             `db:"position" json:"position"`
	Label    string          `db:"label" json:"label"`
	Cost     decimal.Decimal `db:"cost" json:"cost"`
	GroupID  *int64          `db:"group_id" json:"groupId,omitempty"`
	TestIDs  []int64         `db:"test_ids" json:"testIds"`
}

// Patient is the registration data captured when a bill is submitted.
type Patient struct {
	Name       string  `json:"name"`
	Age        *int    `json:"age,omitempty"`
	Gender     *string `json:"gender,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	ReferredBy *string `json:"referredBy,omitempty"`
}

// AccountRow aggregates visits for one referrer ("" for walk-ins).
type AccountRow struct {
	ReferredBy string          `json:"referredBy"`
	Visits     int             `json:"visits"`
	BaseTotal  decimal.Decimal `json:"baseTotal"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
	Paid       decimal.Decimal `json:"paid"`
	Due        decimal.Decimal `json:"due"`
}

// AccountReport is the account summary over a date range.
type AccountReport struct {
	From    *time.Time   `json:"from,omitempty"`
	To      *time.Time   `json:"to,omitempty"`
	Rows    []AccountRow `json:"rows"`
	Overall AccountRow   `json:"overall"`
}
