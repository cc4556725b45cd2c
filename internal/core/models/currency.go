package models

import "github.com/shopspring/decimal"

type Currency struct {
	Code       string `json:"code" db:"code"` // ISO 4217
	Name       string `json:"name" db:"name"`
	MinorUnits int32  `json:"minor_units" db:"minor_units"` // digits after the decimal point
}

// INR is the only currency the school ledger books in.
var INR = Currency{Code: "INR", Name: "Indian Rupee", MinorUnits: 2}

// Fits reports whether amount has no more fractional digits than the currency allows.
func (c Currency) Fits(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(c.MinorUnits))
}
