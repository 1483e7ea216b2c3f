// Package money holds the price, quantity and point arithmetic shared by the
// cart, checkout and loyalty packages. All amounts are decimal; rounding
// happens only at the edges (display, tax, points).
package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Quantity bounds for a single cart line.
const (
	MinQuantity = 1
	MaxQuantity = 99
)

var hundred = decimal.NewFromInt(100)

// ValidQuantity reports whether q fits a single cart line.
func ValidQuantity(q int) bool {
	return q >= MinQuantity && q <= MaxQuantity
}

// ClampQuantity bounds q to [MinQuantity, MaxQuantity].
func ClampQuantity(q int) int {
	switch {
	case q < MinQuantity:
		return MinQuantity
	case q > MaxQuantity:
		return MaxQuantity
	default:
		return q
	}
}

// LineTotal returns unit × qty.
func LineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}

// PercentOf returns pct percent of amount, rounded to 2 decimal places.
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred).Round(2)
}

// ApplyDiscount subtracts discount from amount, never going below zero.
func ApplyDiscount(amount, discount decimal.Decimal) decimal.Decimal {
	return FloorAtZero(amount.Sub(discount))
}

// Tax returns the tax owed on amount at ratePercent. A zero or negative rate
// yields zero.
func Tax(amount, ratePercent decimal.Decimal) decimal.Decimal {
	if !ratePercent.IsPositive() {
		return decimal.Zero
	}
	return PercentOf(amount, ratePercent)
}

// FloorPoints converts a spend into whole points: floor(amount × multiplier).
func FloorPoints(amount, multiplier decimal.Decimal) int64 {
	pts := amount.Mul(multiplier).Floor().IntPart()
	if pts < 0 {
		return 0
	}
	return pts
}

// FloorAtZero clamps negative values to zero.
func FloorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Formatter renders prices for display, e.g. "Rs. 1,250.00".
type Formatter struct {
	symbol  string
	printer *message.Printer
}

// NewFormatter returns a Formatter that prefixes amounts with symbol.
func NewFormatter(symbol string) *Formatter {
	return &Formatter{
		symbol:  symbol,
		printer: message.NewPrinter(language.English),
	}
}

// Format renders amount with two fraction digits and thousands grouping.
func (f *Formatter) Format(amount decimal.Decimal) string {
	v := amount.Round(2).InexactFloat64()
	s := f.printer.Sprint(number.Decimal(v, number.Scale(2)))
	if f.symbol == "" {
		return s
	}
	return f.symbol + " " + s
}
