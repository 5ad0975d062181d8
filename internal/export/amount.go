package export

import (
	"math"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is appended to formatted amounts.
const DefaultCurrency = "UGX"

// Formatter renders amounts for people.
type Formatter struct {
	Currency string
}

// FormatAmount rounds to the nearest integer and groups thousands:
// 12345.6 becomes "12,346 UGX". NaN and infinities render as 0.
func FormatAmount(v float64) string {
	return Formatter{}.Amount(v)
}

func (f Formatter) Amount(v float64) string {
	currency := f.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	return humanize.Comma(RoundAmount(v)) + " " + currency
}

// RoundAmount rounds half away from zero; invalid values give 0.
func RoundAmount(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(0).IntPart()
}
