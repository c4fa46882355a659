package pricing

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestCenterBalanceIdentity(t *testing.T) {
	t.Parallel()
	// Property B: for qc>0, bc>0, bc*center(qc,bc) == qc within 1e-9 relative.
	cases := []struct{ qc, bc float64 }{
		{1000, 2}, {5250.5, 13.2}, {1, 1}, {0.0001, 1e6},
	}
	for _, c := range cases {
		center, err := Center(c.qc, c.bc, 0, 0)
		if err != nil {
			t.Fatalf("Center(%v, %v) returned error: %v", c.qc, c.bc, err)
		}
		got := c.bc * center
		if !almostEqual(got, c.qc, c.qc*1e-9+1e-12) {
			t.Errorf("Center(%v,%v)=%v, bc*center=%v, want %v", c.qc, c.bc, center, got, c.qc)
		}
	}
}

func TestCenterDegenerateBranches(t *testing.T) {
	t.Parallel()
	// qc==0, bc>0, ask known -> (bc/2*ask)/2
	got, err := Center(0, 4, 0, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := (4.0 / 2 * 100) / 2
	if got != want {
		t.Errorf("degenerate qc==0 branch: got %v want %v", got, want)
	}

	// bc==0, qc>0, bid known -> (qc/2/bid)/2
	got, err = Center(200, 0, 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want = (200.0 / 2 / 50) / 2
	if got != want {
		t.Errorf("degenerate bc==0 branch: got %v want %v", got, want)
	}
}

func TestCenterUndefined(t *testing.T) {
	t.Parallel()
	if _, err := Center(0, 0, 0, 0); err == nil {
		t.Fatal("expected ErrUndefinedCenter when both sides are empty and no ticker")
	}
	if _, err := Center(0, 5, 0, 0); err == nil {
		t.Fatal("expected ErrUndefinedCenter when qc==0 and ask unknown")
	}
}

func TestComputeInitialPlacement(t *testing.T) {
	t.Parallel()
	// Spec §8 scenario 1 (center/price levels; volumes follow the stated
	// must_buy formula directly rather than the scenario's own arithmetic,
	// which original_source/balancer.py's get_buy_at_price confirms).
	q, err := Compute(Inputs{
		Quote: 1000, Base: 2,
		Bid: 490, Ask: 510,
		DistanceSellPct: 5, DistancePct: 5,
		CorrectionMargin: 1,
		MinVolume:        0.001,
	})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if q.Center != 500 {
		t.Errorf("center = %v, want 500", q.Center)
	}
	if !almostEqual(q.NextSell, 525, 1e-6) {
		t.Errorf("next_sell = %v, want 525", q.NextSell)
	}
	if !almostEqual(q.NextBuy, 500/1.05, 1e-6) {
		t.Errorf("next_buy = %v, want %v", q.NextBuy, 500/1.05)
	}
}

func TestComputeCrossingPrevention(t *testing.T) {
	t.Parallel()
	// Spec §8 scenario 2: ask=530 is above the naive next_sell (525), so the
	// sell is raised to ask*1.01. The naive next_buy (500/1.05 ≈ 476.19) is
	// already below bid=520, so the buy-side protection does not fire.
	q, err := Compute(Inputs{
		Quote: 1000, Base: 2,
		Bid: 520, Ask: 530,
		DistanceSellPct: 5, DistancePct: 5,
		CorrectionMargin: 1,
		MinVolume:        0.001,
	})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if !almostEqual(q.NextSell, 530*1.01, 1e-6) {
		t.Errorf("next_sell = %v, want %v", q.NextSell, 530*1.01)
	}
	if !almostEqual(q.NextBuy, 500/1.05, 1e-6) {
		t.Errorf("next_buy = %v, want %v", q.NextBuy, 500/1.05)
	}
}

func TestComputeNonCrossingInvariant(t *testing.T) {
	t.Parallel()
	// Property C, fuzzed over a handful of bid/ask/distance combinations.
	cases := []struct{ bid, ask, margin float64 }{
		{490, 510, 1}, {520, 530, 1}, {100, 101, 0.5}, {1, 2, 2},
	}
	for _, c := range cases {
		q, err := Compute(Inputs{
			Quote: 1000, Base: 2,
			Bid: c.bid, Ask: c.ask,
			DistanceSellPct: 5, DistancePct: 5,
			CorrectionMargin: c.margin,
			MinVolume:        0.001,
		})
		if err != nil {
			t.Fatalf("Compute returned error: %v", err)
		}
		const eps = 1e-6
		if q.NextBuy > c.bid*(1-c.margin/100)+eps {
			t.Errorf("next_buy %v crosses bid %v at margin %v", q.NextBuy, c.bid, c.margin)
		}
		if q.NextSell < c.ask*(1+c.margin/100)-eps {
			t.Errorf("next_sell %v crosses ask %v at margin %v", q.NextSell, c.ask, c.margin)
		}
	}
}

func TestComputeSymmetryWithoutFees(t *testing.T) {
	t.Parallel()
	// Property D: distance == distance_sell, fees disabled.
	q, err := Compute(Inputs{
		Quote: 1000, Base: 2,
		Bid: 0, Ask: 0,
		DistanceSellPct: 7, DistancePct: 7,
		MinVolume: 0.001,
	})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	ratioSell := q.NextSell / q.Center
	ratioBuy := q.Center / q.NextBuy
	if !almostEqual(ratioSell, ratioBuy, 1e-6) {
		t.Errorf("asymmetric step: next_sell/center=%v center/next_buy=%v", ratioSell, ratioBuy)
	}
}

func TestComputeVolumeSign(t *testing.T) {
	t.Parallel()
	// Property E: must_buy(next_buy) >= 0, must_buy(next_sell) <= 0 (before
	// the absolute-value clamp Compute applies to SellAmt/BuyAmt).
	q, err := Compute(Inputs{
		Quote: 1000, Base: 2,
		Bid: 490, Ask: 510,
		DistanceSellPct: 5, DistancePct: 5,
		CorrectionMargin: 1,
		MinVolume:        0.0001,
	})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	qc, bc := 1000.0, 2.0
	if MustBuy(qc, bc, q.NextBuy) < 0 {
		t.Errorf("must_buy(next_buy) should be >= 0")
	}
	if MustBuy(qc, bc, q.NextSell) > 0 {
		t.Errorf("must_buy(next_sell) should be <= 0")
	}
}

func TestComputeFeeCompensationKeepsNetGainNonNegative(t *testing.T) {
	t.Parallel()
	// Property F, sampled over a range of fee rates in [0, 1%].
	for _, feeRate := range []float64{0, 0.001, 0.002, 0.005, 0.01} {
		q, err := Compute(Inputs{
			Quote: 1000, Base: 2,
			Bid: 490, Ask: 510,
			DistanceSellPct: 5, DistancePct: 5,
			CorrectionMargin: 1,
			CompensateFees:   true,
			FeeRate:          feeRate,
			MinVolume:        0.001,
		})
		if err != nil {
			t.Fatalf("Compute(feeRate=%v) returned error: %v", feeRate, err)
		}
		v := math.Min(q.SellAmt, q.BuyAmt)
		netQuote := v*q.NextSell*(1-feeRate) - v*q.NextBuy*(1+feeRate)
		if netQuote < -1e-6 {
			t.Errorf("feeRate=%v: round trip net quote change = %v, want >= 0", feeRate, netQuote)
		}
	}
}

func TestComputeMinVolumeClamp(t *testing.T) {
	t.Parallel()
	// Tiny step distances put both next prices right beside the center ->
	// vanishingly small must_buy; MinVolume clamps both sides up to the
	// configured floor.
	q, err := Compute(Inputs{
		Quote: 1000000, Base: 2,
		DistanceSellPct: 0.0001, DistancePct: 0.0001,
		MinVolume: 0.1,
	})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if q.SellAmt < 0.1-1e-9 {
		t.Errorf("SellAmt = %v, want >= MinVolume", q.SellAmt)
	}
	if q.BuyAmt < 0.1-1e-9 {
		t.Errorf("BuyAmt = %v, want >= MinVolume", q.BuyAmt)
	}
}

func TestComputeForcedPriceOverride(t *testing.T) {
	t.Parallel()
	// Spec §8 scenario 6: forced levels 540/560, center=500, step_up=1.05 ->
	// naive next_sell would be 525; lowest forced level above 525 is 540.
	q, err := Compute(Inputs{
		Quote: 1000, Base: 2,
		DistanceSellPct: 5, DistancePct: 5,
		MinVolume:    0.001,
		ForcedPrices: []float64{540, 560},
	})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if q.NextSell != 540 {
		t.Errorf("next_sell = %v, want 540 (lowest forced level above center*step_up)", q.NextSell)
	}
}

func TestComputeUndefinedCenterPropagates(t *testing.T) {
	t.Parallel()
	if _, err := Compute(Inputs{MinVolume: 0.1}); err == nil {
		t.Fatal("expected error when wallet and ticker are both empty")
	}
}

func TestClampMinVolume(t *testing.T) {
	t.Parallel()
	if got := clampMinVolume(0.01, 0.1); got != 0.1 {
		t.Errorf("clampMinVolume(0.01, 0.1) = %v, want 0.1", got)
	}
	if got := clampMinVolume(-0.01, 0.1); got != -0.1 {
		t.Errorf("clampMinVolume(-0.01, 0.1) = %v, want -0.1", got)
	}
	if got := clampMinVolume(0.5, 0.1); got != 0.5 {
		t.Errorf("clampMinVolume(0.5, 0.1) = %v, want 0.5 (unclamped)", got)
	}
}
