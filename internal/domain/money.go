package domain

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Display rounding is the only rounding the ledger does; stored amounts keep
// full float precision.

// Round2 rounds v half away from zero to two decimals.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// FormatAmount renders v with two decimals and the currency's symbol.
// Symbols unknown to ISO 4217 (such as legacy denominations) print with a
// "1 SYM" template. The global currency registry is never modified.
func FormatAmount(v float64, symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return decimal.NewFromFloat(v).StringFixed(2)
	}
	cur := displayCurrency(symbol)
	minor := decimal.NewFromFloat(v).Round(2).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}

// displayCurrency returns a two-decimal display currency for symbol. ISO
// codes keep their grapheme and template even when their own fraction
// differs (JPY, KWD).
func displayCurrency(symbol string) *money.Currency {
	c := money.GetCurrency(symbol)
	if c == nil {
		return &money.Currency{Code: symbol, Fraction: 2, Grapheme: symbol, Template: "1 $", Decimal: ".", Thousand: ","}
	}
	if c.Fraction == 2 {
		return c
	}
	local := *c
	local.Fraction = 2
	return &local
}
