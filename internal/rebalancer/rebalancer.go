// Package rebalancer implements the strategy state machine (spec §4.E): it
// watches the order book and wallet, decides when to (re)place a bid/ask
// pair around the computed center price, and halts trading when balances
// drop below the configured minimums.
//
// Grounded on caktux/pytrader's balancer.py (check_trades decision
// procedure, place_orders, cancel_orders, slot_trade) and on the teacher's
// internal/strategy/maker.go (Run's select loop, quoteUpdate/reconcileOrders
// shape), generalized from Avellaneda-Stoikov quoting to the rebalancing
// formulas in internal/pricing.
package rebalancer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rebalancer/internal/book"
	"rebalancer/internal/moneyconv"
	"rebalancer/internal/pricing"
	"rebalancer/internal/wallet"
	"rebalancer/pkg/types"
)

// State names the five phases of the rebalancer state machine (spec §4.E).
type State string

const (
	StateIdleWaiting State = "idle_waiting"
	StateHalted      State = "halted"
	StateArmed       State = "armed"
	StateReconciling State = "reconciling"
	StatePlacing     State = "placing"
)

// OrderPlacer is the subset of the exchange client the rebalancer needs to
// place orders, cancel them, and request a fresh balance snapshot.
// Implemented by internal/exchange.Client via a thin adapter in
// internal/engine. PlaceOrder returns the venue-assigned order id (not a
// reqid): the book registry keys own orders on that id since every
// subsequent venue event references it the same way (spec §9).
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, side types.Side, price, volume int64) (oid string, err error)
	CancelOrder(ctx context.Context, oid string) (types.ReqID, error)

	// RequestInfo asks the venue for a fresh balance snapshot without
	// blocking the caller; the result is applied to the wallet once it
	// arrives. Used to gate re-placement on a post-fill balance (spec
	// §4.E Reconciling->Placing transition).
	RequestInfo(ctx context.Context) error
}

// Config tunes the rebalancer's behavior (spec §6).
type Config struct {
	Pair types.Pair

	QuoteScale moneyconv.Scale
	BaseScale  moneyconv.Scale

	QuoteCold, BaseCold     float64
	QuoteLimit, BaseLimit   float64
	DistanceSellPct         float64
	DistancePct             float64
	CorrectionMargin        float64
	CompensateFees          bool
	FeeRate                 float64
	MinOrderVolume          float64
	SatoshiDustUnits        int64
	SimulateFeeRate         float64

	// ForcedPrices, when set, is called fresh before every PlaceOrders to
	// pick up the current contents of the forced-price marker directory
	// (spec §6 "Forced-price interface"). Nil means the feature is
	// disabled and the computed next price is always used.
	ForcedPrices func() []float64
}

// Rebalancer is the strategy state machine for one venue/pair.
type Rebalancer struct {
	cfg     Config
	book    *book.Book
	wallet  *wallet.Wallet
	placer  OrderPlacer
	logger  *slog.Logger

	state      State
	halted     bool
	userHalted bool // halt requested explicitly (spec §8 property H)
	lastBid    float64
	lastAsk    float64
	waitingInfo string

	// awaitingFill gates the Reconciling->Placing transition after a
	// single-side fill (spec §4.E): once set, CheckTrades withholds
	// cancel+replace until the wallet has been refreshed at least once
	// since fillInfoVersion was recorded.
	awaitingFill     bool
	fillInfoVersion  int64

	simOrders simOrders
}

// simOrders mirrors spec §3's Strategy.sim_orders: the resting price/volume
// pair the simulation path watches for crossing, since simulate mode never
// places a real order the venue could report a fill for.
type simOrders struct {
	active   bool
	nextBuy  float64
	buyAmt   float64
	nextSell float64
	sellAmt  float64
}

// New builds a Rebalancer.
func New(cfg Config, b *book.Book, w *wallet.Wallet, placer OrderPlacer, logger *slog.Logger) *Rebalancer {
	return &Rebalancer{
		cfg:    cfg,
		book:   b,
		wallet: w,
		placer: placer,
		state:  StateIdleWaiting,
		logger: logger.With("component", "rebalancer", "pair", cfg.Pair.String()),
	}
}

// State returns the current phase.
func (r *Rebalancer) State() State { return r.state }

// Halt puts the rebalancer into the Halted state and cancels resting orders.
// Exposed per the supplemented interactive-command surface (spec's dropped
// keypress UI, SPEC_FULL §3) so an API layer can drive it directly.
func (r *Rebalancer) Halt(ctx context.Context) {
	r.userHalted = true
	r.transitionHalted("user requested halt")
	r.cancelAll(ctx)
}

// Resume clears a user-requested halt. If a balance-driven halt condition
// still holds, CheckTrades will re-halt on the next tick.
func (r *Rebalancer) Resume() {
	r.userHalted = false
	if r.halted {
		r.halted = false
		r.state = StateIdleWaiting
	}
	r.awaitingFill = false
}

// RebalanceAtMarket cancels resting orders and immediately re-arms, standing
// in for balancer.py's slot_keypress 'r' command.
func (r *Rebalancer) RebalanceAtMarket(ctx context.Context) error {
	r.cancelAll(ctx)
	return r.PlaceOrders(ctx)
}

func (r *Rebalancer) transitionHalted(reason string) {
	r.halted = true
	r.state = StateHalted
	r.waitingInfo = reason
	r.awaitingFill = false
	r.logger.Warn("halted", "reason", reason)
}

// CheckTrades is the central decision procedure (spec §4.E), called on
// every ticker/trade/owns_changed signal. It decides whether to leave
// resting orders alone, cancel and replace them, or halt trading.
func (r *Rebalancer) CheckTrades(ctx context.Context) error {
	if r.userHalted {
		r.state = StateHalted
		return nil
	}

	quote, base, ok := r.wallet.Balances(r.cfg.Pair.Quote, r.cfg.Pair.Base)
	if !ok {
		r.state = StateIdleWaiting
		r.waitingInfo = "wallet not yet known"
		return nil
	}

	if quote < r.cfg.QuoteLimit || base < r.cfg.BaseLimit {
		r.transitionHalted(fmt.Sprintf("balance below limit: quote=%.8f base=%.8f", quote, base))
		r.cancelAll(ctx)
		return nil
	}
	if r.halted {
		r.halted = false
	}

	// Simulation path (spec §4.E "Simulation path"): sim_wallet and
	// sim_orders replace the book-registry reconciliation below entirely,
	// since no real order exists for the venue to report a fill on.
	if r.wallet.Simulating() {
		if !r.simOrders.active {
			return r.PlaceOrders(ctx)
		}
		filled, err := r.trySimulatedFill(ctx)
		if err != nil {
			return err
		}
		if !filled {
			r.state = StateArmed
		}
		return nil
	}

	// Satoshi-dust fix (spec §4.E): proactively cancel orders stuck at the
	// dust volume, since venue experience shows they never fill.
	for _, dust := range r.book.DustOrders(r.cfg.SatoshiDustUnits) {
		if _, err := r.placer.CancelOrder(ctx, dust.OID); err != nil {
			r.logger.Warn("cancel dust order failed", "oid", dust.OID, "err", err)
		} else {
			r.book.RemoveOwn(dust.OID)
		}
	}

	openN, pendingN := r.book.CountByStatus()
	if pendingN > 0 {
		r.state = StateReconciling
		return nil
	}

	switch {
	case openN == 2:
		r.state = StateArmed
		r.awaitingFill = false
		return nil
	case openN == 0:
		r.awaitingFill = false
		return r.PlaceOrders(ctx)
	case openN == 1:
		// Exactly one own order remains open: the other side filled.
		// Spec §4.E requires a fresh info/wallet snapshot before
		// recomputing and replacing orders, rather than reusing the
		// (possibly pre-fill) cached balance (scenario 3: "After the next
		// info snapshot, the remaining buy is cancelled and two new
		// orders are placed around the new center").
		return r.reconcileSingleFill(ctx)
	default:
		// openN >= 3: invariant breach. Cancel everything and re-place
		// (spec §4.E check_trades, grounded on balancer.py's
		// slot_trade -> check_trades path).
		r.awaitingFill = false
		r.cancelAll(ctx)
		return r.PlaceOrders(ctx)
	}
}

// reconcileSingleFill implements the Reconciling->Placing gate of spec §4.E:
// on first observing a single-side fill, it requests a fresh balance
// snapshot and waits; it only cancels the stale remainder and re-places
// both sides once the wallet has been refreshed since that request.
func (r *Rebalancer) reconcileSingleFill(ctx context.Context) error {
	r.state = StateReconciling

	if !r.awaitingFill {
		r.awaitingFill = true
		r.fillInfoVersion = r.wallet.Version()
		r.waitingInfo = "balance refresh requested after single-side fill"
		if err := r.placer.RequestInfo(ctx); err != nil {
			r.logger.Warn("request info failed", "err", err)
		}
		return nil
	}

	if r.wallet.Version() == r.fillInfoVersion {
		// Still waiting for a snapshot newer than the one in effect when
		// the fill was first detected.
		return nil
	}

	r.awaitingFill = false
	r.waitingInfo = ""
	r.cancelAll(ctx)
	return r.PlaceOrders(ctx)
}

// PlaceOrders computes the next bid/ask pair and submits both, transitioning
// through Placing while the requests are in flight.
func (r *Rebalancer) PlaceOrders(ctx context.Context) error {
	r.state = StatePlacing

	quote, base, ok := r.wallet.Balances(r.cfg.Pair.Quote, r.cfg.Pair.Base)
	if !ok {
		r.state = StateIdleWaiting
		return nil
	}

	var forced []float64
	if r.cfg.ForcedPrices != nil {
		forced = r.cfg.ForcedPrices()
	}

	snap := r.book.Snapshot()
	quotes, err := pricing.Compute(pricing.Inputs{
		Quote:            quote,
		Base:             base,
		QuoteCold:        r.cfg.QuoteCold,
		BaseCold:         r.cfg.BaseCold,
		Bid:              snap.Bid,
		Ask:              snap.Ask,
		DistanceSellPct:  r.cfg.DistanceSellPct,
		DistancePct:      r.cfg.DistancePct,
		CorrectionMargin: r.cfg.CorrectionMargin,
		CompensateFees:   r.cfg.CompensateFees,
		FeeRate:          r.cfg.FeeRate,
		MinVolume:        r.cfg.MinOrderVolume,
		ForcedPrices:     forced,
	})
	if err != nil {
		r.state = StateIdleWaiting
		r.waitingInfo = err.Error()
		return nil
	}

	r.lastBid, r.lastAsk = quotes.NextBuy, quotes.NextSell

	if r.wallet.Simulating() {
		// No venue order is ever submitted in simulate mode (spec §4.E);
		// sim_orders records the levels the next ticker tick checks for
		// crossing, standing in for the venue's own fill notification.
		r.simOrders = simOrders{
			active:   true,
			nextBuy:  quotes.NextBuy,
			buyAmt:   quotes.BuyAmt,
			nextSell: quotes.NextSell,
			sellAmt:  quotes.SellAmt,
		}
		r.state = StateArmed
		return nil
	}

	sellPrice := r.cfg.QuoteScale.ToInt(quotes.NextSell)
	sellVol := r.cfg.BaseScale.ToInt(quotes.SellAmt)
	if oid, err := r.placer.PlaceOrder(ctx, types.Ask, sellPrice, sellVol); err != nil {
		return fmt.Errorf("place sell order: %w", err)
	} else {
		r.book.RegisterOwn(types.Order{OID: oid, Side: types.Ask, Price: sellPrice, Volume: sellVol, Status: types.StatusSubmitted})
	}

	buyPrice := r.cfg.QuoteScale.ToInt(quotes.NextBuy)
	buyVol := r.cfg.BaseScale.ToInt(quotes.BuyAmt)
	if oid, err := r.placer.PlaceOrder(ctx, types.Bid, buyPrice, buyVol); err != nil {
		return fmt.Errorf("place buy order: %w", err)
	} else {
		r.book.RegisterOwn(types.Order{OID: oid, Side: types.Bid, Price: buyPrice, Volume: buyVol, Status: types.StatusSubmitted})
	}

	r.state = StateReconciling
	return nil
}

// trySimulatedFill checks the current top-of-book against the resting
// sim_orders levels and, if crossed, synthesizes the fill: it debits/credits
// the simulated wallet and re-enters PlaceOrders (spec §4.E simulation
// path). It reports whether a fill was synthesized.
func (r *Rebalancer) trySimulatedFill(ctx context.Context) (bool, error) {
	snap := r.book.Snapshot()
	so := r.simOrders

	switch {
	case so.sellAmt > 0 && snap.Ask > 0 && snap.Ask >= so.nextSell:
		r.wallet.ApplySimulatedFill(r.cfg.Pair.Quote, r.cfg.Pair.Base, types.Ask, so.nextSell, so.sellAmt, r.cfg.SimulateFeeRate)
		r.simOrders = simOrders{}
		r.logger.Info("simulated fill", "side", types.Ask, "price", so.nextSell, "volume", so.sellAmt)
		return true, r.PlaceOrders(ctx)
	case so.buyAmt > 0 && snap.Bid > 0 && snap.Bid <= so.nextBuy:
		r.wallet.ApplySimulatedFill(r.cfg.Pair.Quote, r.cfg.Pair.Base, types.Bid, so.nextBuy, so.buyAmt, r.cfg.SimulateFeeRate)
		r.simOrders = simOrders{}
		r.logger.Info("simulated fill", "side", types.Bid, "price", so.nextBuy, "volume", so.buyAmt)
		return true, r.PlaceOrders(ctx)
	default:
		return false, nil
	}
}

func (r *Rebalancer) cancelAll(ctx context.Context) {
	snap := r.book.Snapshot()
	for _, o := range snap.Owns {
		if _, err := r.placer.CancelOrder(ctx, o.OID); err != nil {
			r.logger.Warn("cancel order failed", "oid", o.OID, "err", err)
			continue
		}
		r.book.RemoveOwn(o.OID)
	}
}

// WaitingInfo describes why the strategy is idle, when applicable.
func (r *Rebalancer) WaitingInfo() string { return r.waitingInfo }

// LastPrices returns the most recently computed bid/ask, for persistence
// and reporting.
func (r *Rebalancer) LastPrices() (bid, ask float64) { return r.lastBid, r.lastAsk }

// WatchdogInterval bounds how long CheckTrades may go un-called before the
// engine forces a tick, guarding against a stalled signal source (e.g. a
// venue that stops pushing ticker updates without dropping the connection).
const WatchdogInterval = 30 * time.Second
