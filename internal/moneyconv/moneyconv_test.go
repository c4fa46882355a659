package moneyconv

import "testing"

func TestToIntTruncatesExtraPrecision(t *testing.T) {
	t.Parallel()
	s := Scale{Subunits: 100000000} // 8-decimal, e.g. BTC satoshi
	got := s.ToInt(1.123456789)
	want := int64(112345678)
	if got != want {
		t.Errorf("ToInt(1.123456789) = %d, want %d", got, want)
	}
}

func TestToFloatRoundTrip(t *testing.T) {
	t.Parallel()
	s := Scale{Subunits: 100000000}
	for _, amount := range []float64{0, 1, 0.00000001, 123.45678901, 1e6} {
		scaled := s.ToInt(amount)
		back := s.ToFloat(scaled)
		if diff := back - amount; diff > 1e-8 || diff < -1e-8 {
			t.Errorf("round trip for %v: ToInt=%d ToFloat=%v, diff=%v", amount, scaled, back, diff)
		}
	}
}

func TestToIntToFloatDifferentScales(t *testing.T) {
	t.Parallel()
	cents := Scale{Subunits: 100}
	if got := cents.ToInt(19.99); got != 1999 {
		t.Errorf("cents.ToInt(19.99) = %d, want 1999", got)
	}
	if got := cents.ToFloat(1999); got != 19.99 {
		t.Errorf("cents.ToFloat(1999) = %v, want 19.99", got)
	}
}

func TestCeilToDecimalsRoundsUp(t *testing.T) {
	t.Parallel()
	cases := []struct {
		v        float64
		decimals int32
		want     float64
	}{
		{1.000000001, 8, 1.00000001},
		{1.0, 8, 1.0},
		{2.123456785, 8, 2.12345679},
		{0.1, 1, 0.1},
	}
	for _, c := range cases {
		got := CeilToDecimals(c.v, c.decimals)
		if got < c.v {
			t.Errorf("CeilToDecimals(%v, %d) = %v, must not round below input", c.v, c.decimals, got)
		}
		if diff := got - c.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("CeilToDecimals(%v, %d) = %v, want %v", c.v, c.decimals, got, c.want)
		}
	}
}

func TestCeilToDecimalsNeverRoundsDown(t *testing.T) {
	t.Parallel()
	for _, v := range []float64{0.000000011, 99.999999991, 1.99999999} {
		got := CeilToDecimals(v, 8)
		if got < v {
			t.Errorf("CeilToDecimals(%v, 8) = %v, rounded below input", v, got)
		}
	}
}
