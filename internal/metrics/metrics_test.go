package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	t.Parallel()
	m := New()

	count, err := testutil.GatherAndCount(m.Registry)
	if err != nil {
		t.Fatalf("GatherAndCount returned error: %v", err)
	}
	if count != 7 {
		t.Errorf("registered collector count = %d, want 7", count)
	}
}

func TestSetTicker(t *testing.T) {
	t.Parallel()
	m := New()
	m.SetTicker(100.5, 101.5)

	if got := testutil.ToFloat64(m.Bid); got != 100.5 {
		t.Errorf("Bid = %v, want 100.5", got)
	}
	if got := testutil.ToFloat64(m.Ask); got != 101.5 {
		t.Errorf("Ask = %v, want 101.5", got)
	}
}

func TestSetHaltState(t *testing.T) {
	t.Parallel()
	m := New()
	m.SetHaltState(true)
	if got := testutil.ToFloat64(m.HaltState); got != 1 {
		t.Errorf("HaltState = %v, want 1 after SetHaltState(true)", got)
	}
	m.SetHaltState(false)
	if got := testutil.ToFloat64(m.HaltState); got != 0 {
		t.Errorf("HaltState = %v, want 0 after SetHaltState(false)", got)
	}
}

func TestCountersIncrement(t *testing.T) {
	t.Parallel()
	m := New()
	m.Reconnects.Inc()
	m.OrdersPlaced.Inc()
	m.OrdersPlaced.Inc()
	m.OrdersCancelled.Inc()
	m.QueueDepth.Set(3)

	if got := testutil.ToFloat64(m.Reconnects); got != 1 {
		t.Errorf("Reconnects = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.OrdersPlaced); got != 2 {
		t.Errorf("OrdersPlaced = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.OrdersCancelled); got != 1 {
		t.Errorf("OrdersCancelled = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.QueueDepth); got != 3 {
		t.Errorf("QueueDepth = %v, want 3", got)
	}
}
