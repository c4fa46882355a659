// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the rebalancer — currency pairs,
// orders, order book projections, wallet snapshots, and the venue wire
// shapes exchanged over streaming and REST transports. It has no
// dependencies on internal packages, so it can be imported by any layer.
package types

import "time"

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents which side of the book an order rests on.
type Side string

const (
	Bid Side = "bid"
	Ask Side = "ask"
)

// OrderStatus tracks an order through its venue lifecycle. The core never
// mutates an order directly; transitions only ever arrive as venue events.
type OrderStatus string

const (
	StatusSubmitted   OrderStatus = "submitted"
	StatusPending     OrderStatus = "pending"
	StatusOpen        OrderStatus = "open"
	StatusExecuting   OrderStatus = "executing"
	StatusPostPending OrderStatus = "post-pending"
	StatusRemoved     OrderStatus = "removed"
)

// ————————————————————————————————————————————————————————————————————————
// Pair and money
// ————————————————————————————————————————————————————————————————————————

// Pair is an immutable base/quote currency pair. Prices are quote-per-base;
// volumes are expressed in base.
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// Order is a single resting or in-flight order as projected from venue state.
// Price and Volume are venue-native scaled integers (see internal/moneyconv);
// the pricing engine works in float, the book and wallet work in scaled int.
type Order struct {
	OID    string
	Side   Side
	Price  int64
	Volume int64
	Status OrderStatus
}

// ReqID correlates an outbound order_add/order_cancel command with its
// eventual reply, which arrives as the direct HTTP response delivered through
// the worker queue; streaming remark frames carry it back in their id field.
// Format follows §4.B: "order_add:side:price:volume" (with a uuid suffix
// appended) or "order_cancel:oid".
type ReqID string

// ————————————————————————————————————————————————————————————————————————
// Wallet
// ————————————————————————————————————————————————————————————————————————

// Wallet is a currency -> amount snapshot, in human-facing float units,
// after venue-native conversion. A nil/empty wallet means "not yet known";
// callers must treat it as such and refuse to trade.
type Wallet map[string]float64

// Clone returns an independent copy so simulated and live wallets never
// alias each other's maps.
func (w Wallet) Clone() Wallet {
	out := make(Wallet, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// ————————————————————————————————————————————————————————————————————————
// Order book projection
// ————————————————————————————————————————————————————————————————————————

// BookSnapshot is the in-memory projection of one venue's order book for a
// single pair: best bid/ask plus our own resting orders.
type BookSnapshot struct {
	Bid     float64
	Ask     float64
	Owns    []Order
	Updated time.Time
}

// ————————————————————————————————————————————————————————————————————————
// Signals — the typed events the exchange client layer emits and the
// rebalancer strategy consumes (§4.C / §9 "signal/slot -> channel" note)
// ————————————————————————————————————————————————————————————————————————

// TickerSignal fires whenever top-of-book moves.
type TickerSignal struct {
	Bid, Ask float64
}

// TradeSignal fires once per executed trade. Own=true means it filled one
// of our own resting orders.
type TradeSignal struct {
	Date   time.Time
	Price  float64
	Volume float64
	Side   Side
	Own    bool
}

// OwnsChangedSignal fires whenever the owns sequence in the order book has
// been updated: an order was added, removed, or changed status. Order
// carries the venue's view of the changed order so the book registry can be
// updated without a round-trip through a separate query.
type OwnsChangedSignal struct {
	Order Order
}

// WalletSignal fires when a fresh wallet snapshot has been received.
type WalletSignal struct {
	Wallet Wallet
}

// RemarkSignal carries a venue-level business error surfaced from either the
// streaming channel or the HTTP worker (§4.A Failure, §4.B task 2).
type RemarkSignal struct {
	Success bool
	Message string
	Token   string
	ReqID   ReqID
}

// ConnectedSignal fires once the streaming receive loop has (re)subscribed
// successfully after connecting.
type ConnectedSignal struct{}

// ————————————————————————————————————————————————————————————————————————
// Venue wire shapes (all JSON) — §6
// ————————————————————————————————————————————————————————————————————————

// StreamEnvelope is the generic inbound streaming frame shape. Stream.dispatch
// picks the handler by which field is present (Ticker, Trade, Remark, Wallet,
// UserOrder, in that order), not by Op; Depth and Result frames are decoded
// but not dispatched.
type StreamEnvelope struct {
	Op        string            `json:"op"`
	Ticker    *WireTicker       `json:"ticker,omitempty"`
	Depth     *WireDepth        `json:"depth,omitempty"`
	Trade     *WireTrade        `json:"trade,omitempty"`
	Result    *WireResult       `json:"result,omitempty"`
	Remark    *WireRemark       `json:"remark,omitempty"`
	Wallet    map[string]string `json:"wallet,omitempty"`
	UserOrder *WireUserOrder    `json:"user_order,omitempty"`
	ID        ReqID             `json:"id,omitempty"`
}

// WireUserOrder is one entry of the venue's own-order lifecycle feed (the
// "orders" backfill on connect, and per-update "userorder" pushes): an order
// this bot placed transitioning between submitted/pending/open/removed.
type WireUserOrder struct {
	OID    string `json:"oid"`
	Type   string `json:"type"` // "bid" or "ask"
	Price  string `json:"price"`
	Volume string `json:"volume"`
	Status string `json:"status"`
}

type WireTicker struct {
	Bid string `json:"bid"`
	Ask string `json:"ask"`
}

type WireDepth struct {
	Type   string `json:"type_str"` // "bid" or "ask"
	Price  string `json:"price"`
	Volume string `json:"volume"`
}

type WireTrade struct {
	Date       int64  `json:"date"`
	Price      string `json:"price"`
	Amount     string `json:"amount"`
	Type       string `json:"trade_type"` // "bid" or "ask"
	PrimaryOid string `json:"primary_order_oid,omitempty"`
}

// WireResult is the slot for a "result" frame. Raw is not filled from JSON,
// and signed HTTP responses are not translated into this shape: they reach
// callers as exchange.WorkResult bodies instead.
type WireResult struct {
	Raw []byte `json:"-"`
}

type WireRemark struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

// OutboundRequest is one entry in the HTTP worker's FIFO queue (§4.B task 2).
type OutboundRequest struct {
	Endpoint string
	Params   map[string]string
	ReqID    ReqID
}
