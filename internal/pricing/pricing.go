// Package pricing implements the rebalancer's pure pricing functions
// (spec §4.D): center price, step factors, next buy/sell prices, fee
// compensation, crossing protection, forced-price override, and the
// must_buy volume formula. Nothing in this package touches the network,
// a clock, or mutable state — every function is total given its inputs,
// which is what makes the invariants in spec §8 checkable directly.
//
// Grounded on caktux/pytrader's balancer.py (center price, step, must_buy)
// and on the teacher's strategy/maker.go (pure compute -> clamp/round ->
// size shape), generalized to the rebalancing formulas instead of
// Avellaneda-Stoikov.
package pricing

import (
	"math"

	"rebalancer/internal/moneyconv"
)

// Inputs bundles everything the engine needs for one computation. Quote and
// Base are current wallet balances (not including cold offsets); QuoteCold
// and BaseCold are config-fixed off-exchange balances folded into the
// center calculation.
type Inputs struct {
	Quote, Base         float64
	QuoteCold, BaseCold float64
	Bid, Ask            float64 // current top-of-book; 0 means "unknown"

	DistanceSellPct  float64 // step_up percentage
	DistancePct      float64 // step_down percentage
	CorrectionMargin float64 // percentage

	CompensateFees bool
	FeeRate        float64 // round-trip fee rate, e.g. 0.002 for 0.2%

	MinVolume float64 // minimum base volume per order

	ForcedPrices []float64 // externally registered price levels, any order
}

// Quotes is the computed pair of next order prices and volumes.
type Quotes struct {
	Center    float64
	NextSell  float64
	SellAmt   float64 // base volume to sell (positive)
	NextBuy   float64
	BuyAmt    float64 // base volume to buy (positive)
}

// ErrUndefinedCenter is returned when neither wallet side nor a ticker is
// sufficient to seed a center price (spec §4.D, "undefined — caller must
// wait").
type ErrUndefinedCenter struct{}

func (ErrUndefinedCenter) Error() string { return "center price undefined: caller must wait" }

// Center computes the balanced price at which bc*p == qc (spec §4.D). qc and
// bc already include the cold offsets.
func Center(qc, bc, bid, ask float64) (float64, error) {
	switch {
	case qc > 0 && bc > 0:
		return qc / bc, nil
	case qc == 0 && bc > 0 && ask > 0:
		return (bc / 2 * ask) / 2, nil
	case bc == 0 && qc > 0 && bid > 0:
		return (qc / 2 / bid) / 2, nil
	default:
		return 0, ErrUndefinedCenter{}
	}
}

// StepFactors returns (step_up, step_down) from the configured percentages.
func StepFactors(distanceSellPct, distancePct float64) (stepUp, stepDown float64) {
	return 1 + distanceSellPct/100, 1 + distancePct/100
}

// feeAdjustment returns the per-unit-price shift that compensates for the
// round-trip fee at the given price and implied volume (spec §4.D "Fee
// compensation", property F). The adjustment is the fee paid on the
// notional value of one round-trip leg, expressed as a fraction of price.
func feeAdjustment(price, feeRate float64) float64 {
	if feeRate <= 0 {
		return 0
	}
	return price * feeRate
}

// MustBuy computes the base volume needed to buy (positive) or sell
// (negative) at price p to rebalance the portfolio (spec §4.D "Volume at
// price"). qc and bc already include cold offsets.
func MustBuy(qc, bc, p float64) float64 {
	if p == 0 {
		return 0
	}
	diffBTC := (qc - bc*p) / p
	return diffBTC / 2
}

// clampMinVolume enforces the configured minimum order size, per spec §4.D.
func clampMinVolume(vol, min float64) float64 {
	if math.Abs(vol) < min {
		if vol < 0 {
			return -min
		}
		return min
	}
	return vol
}

// Compute runs the full pricing pipeline: center -> step -> next prices ->
// fee compensation -> crossing protection -> forced-price override ->
// volumes. It mirrors the teacher's computeQuotes shape (pure compute,
// clamp, round, size) generalized to the rebalancing formulas of spec §4.D.
func Compute(in Inputs) (Quotes, error) {
	qc := in.Quote + in.QuoteCold
	bc := in.Base + in.BaseCold

	center, err := Center(qc, bc, in.Bid, in.Ask)
	if err != nil {
		return Quotes{}, err
	}

	stepUp, stepDown := StepFactors(in.DistanceSellPct, in.DistancePct)

	nextSell := moneyconv.CeilToDecimals(center*stepUp, 8)
	nextBuy := moneyconv.CeilToDecimals(center/stepDown, 8)

	if in.CompensateFees {
		nextSell += feeAdjustment(nextSell, in.FeeRate)
		nextBuy -= feeAdjustment(nextBuy, in.FeeRate)
	}

	// Ask/bid crossing protection (spec §4.D).
	if in.Ask > 0 && nextSell < in.Ask {
		nextSell = in.Ask * (1 + in.CorrectionMargin/100)
	}
	if in.Bid > 0 && nextBuy > in.Bid {
		nextBuy = in.Bid * (1 - in.CorrectionMargin/100)
	}

	// Forced-price override (spec §4.D): lowest forced level strictly
	// greater than center*stepUp for sells, highest strictly less than
	// center/stepDown for buys.
	if forced, ok := lowestAbove(in.ForcedPrices, center*stepUp); ok {
		nextSell = forced
	}
	if forced, ok := highestBelow(in.ForcedPrices, center/stepDown); ok {
		nextBuy = forced
	}

	sellAmt := clampMinVolume(-MustBuy(qc, bc, nextSell), in.MinVolume)
	buyAmt := clampMinVolume(MustBuy(qc, bc, nextBuy), in.MinVolume)

	return Quotes{
		Center:   center,
		NextSell: nextSell,
		SellAmt:  math.Abs(sellAmt),
		NextBuy:  nextBuy,
		BuyAmt:   math.Abs(buyAmt),
	}, nil
}

func lowestAbove(levels []float64, threshold float64) (float64, bool) {
	best, found := 0.0, false
	for _, p := range levels {
		if p > threshold && (!found || p < best) {
			best, found = p, true
		}
	}
	return best, found
}

func highestBelow(levels []float64, threshold float64) (float64, bool) {
	best, found := 0.0, false
	for _, p := range levels {
		if p < threshold && (!found || p > best) {
			best, found = p, true
		}
	}
	return best, found
}
