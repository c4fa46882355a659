// Package wallet tracks currency balances for the rebalancer and provides
// a simulation-mode wallet that shadows the live one without ever touching
// the venue (spec §9, "simulate toggling" design note).
//
// Grounded on the teacher's internal/strategy/inventory.go (mutex-guarded
// position map, OnFill updating balances from trade events) but simplified
// away from avg-cost/PnL tracking, since spec's Wallet is just a
// currency -> amount map (§3).
package wallet

import (
	"sync"

	"rebalancer/pkg/types"
)

// Wallet is a concurrency-safe holder of the current balances for one pair,
// switchable between a live (venue-reported) and simulated source of truth.
type Wallet struct {
	mu        sync.RWMutex
	live      types.Wallet
	sim       types.Wallet
	simulate  bool
	haveLive  bool
	version   int64
}

// New creates a Wallet. If simulate is true, reads/writes go to the
// simulated balances seeded by SeedSimulated; the live balances are still
// tracked from venue wallet signals so the gap between simulated and real
// state can be observed.
func New(simulate bool) *Wallet {
	return &Wallet{
		live:     make(types.Wallet),
		sim:      make(types.Wallet),
		simulate: simulate,
	}
}

// ApplyLive replaces the live balances from a venue wallet signal.
func (w *Wallet) ApplyLive(snapshot types.Wallet) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.live = snapshot.Clone()
	w.haveLive = true
	w.version++
}

// Version returns a counter bumped on every ApplyLive call, regardless of
// source (streaming push or HTTP info refresh). The rebalancer compares
// Version across ticks to tell whether a fresh balance snapshot has arrived
// since a given point, e.g. since a single-side fill was detected (spec
// §4.E Reconciling->Placing transition).
func (w *Wallet) Version() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.version
}

// SeedSimulated sets the starting simulated balances (spec §6,
// simulate_quote/simulate_base configuration).
func (w *Wallet) SeedSimulated(quote, base string, quoteAmt, baseAmt float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sim[quote] = quoteAmt
	w.sim[base] = baseAmt
}

// ApplySimulatedFill adjusts the simulated wallet as if a trade executed,
// net of the simulated fee rate, mirroring what a live fill would do to the
// venue-reported balances.
func (w *Wallet) ApplySimulatedFill(quote, base string, side types.Side, price, volume, feeRate float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	notional := price * volume
	fee := notional * feeRate
	switch side {
	case types.Ask: // we sold base for quote
		w.sim[base] -= volume
		w.sim[quote] += notional - fee
	case types.Bid: // we bought base with quote
		w.sim[quote] -= notional
		w.sim[base] += volume - volume*feeRate
	}
}

// Balances returns the currently-active (simulated or live) balances for
// quote and base. ok is false until the relevant source has reported at
// least once; in live mode it is also false while the last snapshot is
// empty.
func (w *Wallet) Balances(quote, base string) (quoteAmt, baseAmt float64, ok bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.simulate {
		q, qok := w.sim[quote]
		b, bok := w.sim[base]
		return q, b, qok || bok
	}
	if !w.haveLive || len(w.live) == 0 {
		return 0, 0, false
	}
	return w.live[quote], w.live[base], true
}

// Live returns a copy of the last-known venue balances regardless of mode,
// for reporting/comparison purposes (e.g. drift between simulated and live).
func (w *Wallet) Live() (types.Wallet, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.live.Clone(), w.haveLive
}

// Simulating reports whether the wallet is currently serving simulated
// balances instead of venue-reported ones.
func (w *Wallet) Simulating() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.simulate
}

// SetSimulate toggles simulation mode at runtime (e.g. driven by an
// operator command, spec §3 "simulate toggling").
func (w *Wallet) SetSimulate(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.simulate = on
}
