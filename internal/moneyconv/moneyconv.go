// Package moneyconv converts between the venue-native scaled-integer money
// representation and the human-facing float representation used at the
// pricing-engine boundary (spec §3, Money values).
//
// Every currency has a fixed number of subunits per unit (e.g. 1e8 satoshi
// per BTC). Conversion is a per-currency decimal shift, done through
// shopspring/decimal so that ToFloat(ToInt(x)) == x for all legal x —
// a plain float64 multiply/divide round-trips incorrectly near the edges
// of float64 precision for some scale factors, which decimal.Decimal avoids.
package moneyconv

import "github.com/shopspring/decimal"

// Scale describes a currency's fixed-point precision: Subunits is the number
// of integer subunits per whole unit (1e8 for BTC-style 8-decimal venues,
// 1e2 for a 2-decimal fiat ledger, etc).
type Scale struct {
	Subunits int64
}

func (s Scale) factor() decimal.Decimal {
	return decimal.NewFromInt(s.Subunits)
}

// ToInt converts a human-facing float amount to the venue-native scaled
// integer, truncating any precision finer than the scale allows.
func (s Scale) ToInt(amount float64) int64 {
	d := decimal.NewFromFloat(amount).Mul(s.factor())
	return d.Truncate(0).IntPart()
}

// ToFloat converts a venue-native scaled integer back to a human-facing
// float amount.
func (s Scale) ToFloat(scaled int64) float64 {
	d := decimal.NewFromInt(scaled).Div(s.factor())
	f, _ := d.Float64()
	return f
}

// CeilToDecimals rounds v up (away from zero, for v>0) to the given
// number of decimal places. Used by the pricing engine's next_sell/next_buy
// (spec §4.D, "ceil_to_8dp").
func CeilToDecimals(v float64, decimals int32) float64 {
	d := decimal.NewFromFloat(v).Round(decimals)
	if rounded, _ := d.Float64(); rounded < v {
		step := decimal.New(1, -decimals)
		d = d.Add(step)
	}
	out, _ := d.Float64()
	return out
}
