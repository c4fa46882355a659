package book

import (
	"testing"
	"time"

	"rebalancer/pkg/types"
)

func TestMarkerConfigRoundTrip(t *testing.T) {
	t.Parallel()
	m := MarkerConfig{Digit: 7}
	marked := m.AddMarker(12340)
	if !m.HasMarker(marked) {
		t.Errorf("HasMarker(%d) = false, want true after AddMarker", marked)
	}
	if marked%10 != 7 {
		t.Errorf("AddMarker produced %d, want low digit 7", marked)
	}
}

func TestApplyTickerAndSnapshot(t *testing.T) {
	t.Parallel()
	b := New(MarkerConfig{Digit: 9})
	if !b.Snapshot().Updated.IsZero() {
		t.Fatalf("fresh book should have zero Updated time")
	}

	b.ApplyTicker(types.TickerSignal{Bid: 100, Ask: 101})
	snap := b.Snapshot()
	if snap.Bid != 100 || snap.Ask != 101 {
		t.Errorf("snapshot bid/ask = %v/%v, want 100/101", snap.Bid, snap.Ask)
	}
	if snap.Updated.IsZero() {
		t.Errorf("Updated should be set after ApplyTicker")
	}
}

func TestRegisterAndRemoveOwn(t *testing.T) {
	t.Parallel()
	b := New(MarkerConfig{Digit: 9})
	o := types.Order{OID: "a", Side: types.Bid, Price: 100, Volume: 1, Status: types.StatusOpen}
	b.RegisterOwn(o)

	snap := b.Snapshot()
	if len(snap.Owns) != 1 || snap.Owns[0].OID != "a" {
		t.Fatalf("expected registered order in snapshot, got %v", snap.Owns)
	}

	b.RemoveOwn("a")
	if len(b.Snapshot().Owns) != 0 {
		t.Errorf("expected empty owns after RemoveOwn")
	}
}

func TestSetOwnStatus(t *testing.T) {
	t.Parallel()
	b := New(MarkerConfig{Digit: 9})
	b.RegisterOwn(types.Order{OID: "a", Side: types.Bid, Status: types.StatusSubmitted})
	b.SetOwnStatus("a", types.StatusOpen)

	snap := b.Snapshot()
	if len(snap.Owns) != 1 || snap.Owns[0].Status != types.StatusOpen {
		t.Fatalf("expected status updated to open, got %v", snap.Owns)
	}

	// Updating an unknown OID is a no-op, not a panic.
	b.SetOwnStatus("missing", types.StatusOpen)
}

func TestCountByStatus(t *testing.T) {
	t.Parallel()
	b := New(MarkerConfig{Digit: 9})
	b.RegisterOwn(types.Order{OID: "a", Status: types.StatusOpen})
	b.RegisterOwn(types.Order{OID: "b", Status: types.StatusOpen})
	b.RegisterOwn(types.Order{OID: "c", Status: types.StatusPending})

	open, pending := b.CountByStatus()
	if open != 2 || pending != 1 {
		t.Errorf("CountByStatus = (%d, %d), want (2, 1)", open, pending)
	}
}

func TestDustOrders(t *testing.T) {
	t.Parallel()
	b := New(MarkerConfig{Digit: 9})
	b.RegisterOwn(types.Order{OID: "dust", Volume: 1})
	b.RegisterOwn(types.Order{OID: "real", Volume: 100})

	dust := b.DustOrders(1)
	if len(dust) != 1 || dust[0].OID != "dust" {
		t.Fatalf("DustOrders(1) = %v, want just the 1-unit order", dust)
	}
}

func TestIsStale(t *testing.T) {
	t.Parallel()
	b := New(MarkerConfig{Digit: 9})
	if !b.IsStale(time.Second) {
		t.Errorf("fresh book with no ticker update should be stale")
	}

	b.ApplyTicker(types.TickerSignal{Bid: 1, Ask: 2})
	if b.IsStale(time.Minute) {
		t.Errorf("book updated just now should not be stale against a 1m window")
	}
}
