// Package entity defines data models for the paygate download gate.
package entity

import (
	"github.com/shopspring/decimal"
	"strings"
)

// currencies the provider accepts only as whole amounts
var zeroDecimalCurrencies = map[string]bool{
	"HUF": true,
	"JPY": true,
	"TWD": true,
}

// Resource is a priced document from the catalog. It never changes after the catalog is loaded.
type Resource struct {
	Name     string          `json:"name" bson:"name"`
	Price    decimal.Decimal `json:"price" bson:"price"`
	Currency string          `json:"currency" bson:"currency"`
}

// Amount formats the price the way the NVP API expects it for the resource currency.
func (r Resource) Amount() string {
	return FormatAmount(r.Price, r.Currency)
}

// FormatAmount renders amount with the number of decimal places the currency uses:
// none for zero-decimal currencies, two for all others.
func FormatAmount(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(MinorUnits(currency))
}

func MinorUnits(currency string) int32 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}
