// Package book maintains the local order book + own-order projection for a
// single venue/pair (spec §4.C, §3 OrderBook projection).
//
// It mirrors venue state from the streaming ticker feed and from own-order
// lifecycle events: venue user-order pushes, own-trade fills, and the
// rebalancer's own placements and cancels. Own-order identification is primarily a registry of
// issued OIDs (correlated via ReqID on the add/cancel round-trip), with the
// legacy marker-digit scheme as a fallback — per spec §9's explicit
// direction to keep the marker as a fallback only.
//
// Grounded on the teacher's internal/market/book.go (RWMutex-protected
// snapshot, MidPrice/BestBidAsk accessors, staleness check) generalized from
// a binary-outcome CLOB mirror to a single bid/ask + owns projection.
package book

import (
	"sync"
	"time"

	"rebalancer/pkg/types"
)

// MarkerConfig configures the legacy own-order marker fallback (spec §9).
type MarkerConfig struct {
	Digit int // 0-9, low decimal digit identifying our own orders
}

// HasMarker reports whether price carries the configured marker digit in
// its lowest decimal place.
func (m MarkerConfig) HasMarker(price int64) bool {
	return price%10 == int64(m.Digit)
}

// AddMarker embeds the marker digit into price's lowest decimal place.
func (m MarkerConfig) AddMarker(price int64) int64 {
	return price/10*10 + int64(m.Digit)
}

// Book is the concurrency-safe local projection of one venue's order book
// and our own resting orders for a single pair.
type Book struct {
	mu sync.RWMutex

	bid, ask float64
	updated  time.Time

	// registry maps OID -> Order, the primary own-order identification
	// mechanism (spec §9).
	registry map[string]types.Order
	marker   MarkerConfig
}

// New creates an empty book.
func New(marker MarkerConfig) *Book {
	return &Book{
		registry: make(map[string]types.Order),
		marker:   marker,
	}
}

// ApplyTicker updates best bid/ask from a ticker signal.
func (b *Book) ApplyTicker(sig types.TickerSignal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bid, b.ask = sig.Bid, sig.Ask
	b.updated = time.Now()
}

// RegisterOwn adds or updates an order in the own-orders registry. Called
// when a reqid round-trip confirms an order_add, or when a venue "owns"
// snapshot reports an order we recognize.
func (b *Book) RegisterOwn(o types.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registry[o.OID] = o
	b.updated = time.Now()
}

// RemoveOwn deletes an order from the registry (cancel acknowledged, or
// the order disappeared with a matching fill).
func (b *Book) RemoveOwn(oid string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.registry, oid)
	b.updated = time.Now()
}

// SetOwnStatus updates the status of a tracked own order.
func (b *Book) SetOwnStatus(oid string, status types.OrderStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o, ok := b.registry[oid]; ok {
		o.Status = status
		b.registry[oid] = o
		b.updated = time.Now()
	}
}

// IsOwn reports whether price carries our marker digit — the legacy
// fallback path for recognizing own orders when the OID registry doesn't
// (yet) know about one, e.g. after a reconnect that skipped the initial
// owns snapshot.
func (b *Book) IsOwn(price int64) bool {
	return b.marker.HasMarker(price)
}

// Snapshot returns a point-in-time copy of bid/ask and the own-orders list.
func (b *Book) Snapshot() types.BookSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	owns := make([]types.Order, 0, len(b.registry))
	for _, o := range b.registry {
		owns = append(owns, o)
	}
	return types.BookSnapshot{
		Bid:     b.bid,
		Ask:     b.ask,
		Owns:    owns,
		Updated: b.updated,
	}
}

// CountByStatus returns the number of own orders currently open and the
// number currently pending (any status other than open), per spec §4.E
// step 3 of check_trades.
func (b *Book) CountByStatus() (openN, pendingN int) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, o := range b.registry {
		if o.Status == types.StatusOpen {
			openN++
		} else {
			pendingN++
		}
	}
	return openN, pendingN
}

// DustOrders returns own orders whose volume is exactly the configured
// satoshi-dust unit (spec §4.E "Satoshi-dust fix") — these are cancelled
// proactively because venue experience shows they never fill.
func (b *Book) DustOrders(dustUnits int64) []types.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []types.Order
	for _, o := range b.registry {
		if o.Volume == dustUnits {
			out = append(out, o)
		}
	}
	return out
}

// IsStale reports whether the book has had no update within maxAge. Both
// ticker updates and own-order registry changes count as updates.
func (b *Book) IsStale(maxAge time.Duration) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.updated.IsZero() {
		return true
	}
	return time.Since(b.updated) > maxAge
}
