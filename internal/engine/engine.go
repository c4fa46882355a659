// Package engine wires the signed HTTP caller, streaming client, order
// book/wallet projections, pricing engine and rebalancer state machine into
// one running service for a single venue/pair (spec §4, orchestration).
//
// Grounded on the teacher's internal/engine/engine.go: the New/Start/Stop
// lifecycle and channel-based event dispatch are kept, but the multi-market
// slot machinery collapses to a single always-on pair, since this spec
// trades exactly one venue/pair (Non-goal: holding more than one book).
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rebalancer/internal/api"
	"rebalancer/internal/book"
	"rebalancer/internal/config"
	"rebalancer/internal/exchange"
	"rebalancer/internal/forcedprice"
	"rebalancer/internal/metrics"
	"rebalancer/internal/moneyconv"
	"rebalancer/internal/pricing"
	"rebalancer/internal/rebalancer"
	"rebalancer/internal/risk"
	"rebalancer/internal/store"
	"rebalancer/internal/wallet"
	"rebalancer/pkg/types"
)

// Engine owns the full running stack for one pair.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	client  *exchange.Client
	stream  *exchange.Stream
	signals exchange.Signals

	book   *book.Book
	wallet *wallet.Wallet
	reb    *rebalancer.Rebalancer
	riskM  *risk.Manager
	store  *store.Store
	metrics *metrics.Metrics
	tradeLog *api.TradeLog
	apiServer *api.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds and wires an Engine from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	pair := types.Pair{Base: cfg.Pair.Base, Quote: cfg.Pair.Quote}

	client, err := exchange.NewClient(exchange.Config{
		Venue:           cfg.Venue.Name,
		RESTBaseURL:     cfg.Venue.RESTBaseURL,
		Credentials:     exchange.Credentials{Key: cfg.API.Key, Secret: cfg.API.Secret},
		MinRequestDelay: cfg.Venue.MinRequestDelay,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build exchange client: %w", err)
	}

	signals := exchange.Signals{
		Ticker:      make(chan types.TickerSignal, 32),
		Trade:       make(chan types.TradeSignal, 32),
		OwnsChanged: make(chan types.OwnsChangedSignal, 32),
		Wallet:      make(chan types.WalletSignal, 8),
		Remark:      make(chan types.RemarkSignal, 32),
		Connected:   make(chan types.ConnectedSignal, 1),
	}
	quoteScale := moneyconv.Scale{Subunits: cfg.Venue.QuoteSubunits}
	baseScale := moneyconv.Scale{Subunits: cfg.Venue.BaseSubunits}
	stream := exchange.NewStream(cfg.Venue.StreamURL, pair, quoteScale, baseScale, signals, logger)

	m := metrics.New()
	stream.OnReconnect = m.Reconnects.Inc

	b := book.New(book.MarkerConfig{Digit: cfg.Strategy.Marker})
	w := wallet.New(cfg.Simulate)
	if cfg.Simulate {
		w.SeedSimulated(cfg.Pair.Quote, cfg.Pair.Base, cfg.Strategy.SimulateQuote, cfg.Strategy.SimulateBase)
	}

	riskM := risk.NewManager(risk.Limits{
		QuoteLimit: cfg.Strategy.QuoteLimit,
		BaseLimit:  cfg.Strategy.BaseLimit,
		Cooldown:   10 * time.Second,
	}, logger)

	st, err := store.New(cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("build store: %w", err)
	}

	placer := &clientPlacer{client: client, pair: pair, metrics: m, wallet: w, quoteScale: quoteScale, baseScale: baseScale, logger: logger}
	rebCfg := rebalancer.Config{
		Pair:             pair,
		QuoteScale:       quoteScale,
		BaseScale:        baseScale,
		QuoteCold:        cfg.Strategy.QuoteCold,
		BaseCold:         cfg.Strategy.BaseCold,
		QuoteLimit:       cfg.Strategy.QuoteLimit,
		BaseLimit:        cfg.Strategy.BaseLimit,
		DistanceSellPct:  cfg.Strategy.DistanceSell,
		DistancePct:      cfg.Strategy.Distance,
		CorrectionMargin: cfg.Strategy.CorrectionMargin,
		CompensateFees:   cfg.Strategy.CompensateFees,
		FeeRate:          cfg.Strategy.FeeRate,
		MinOrderVolume:   cfg.Strategy.MinOrderVolume,
		SatoshiDustUnits: cfg.Venue.SatoshiDustUnits,
		SimulateFeeRate:  cfg.Strategy.SimulateFee,
	}
	if cfg.Strategy.ForcedPriceDir != "" {
		fpCfg := forcedprice.Config{Dir: cfg.Strategy.ForcedPriceDir, Pattern: cfg.Strategy.ForcedPricePattern}
		rebCfg.ForcedPrices = func() []float64 {
			prices, err := forcedprice.Load(fpCfg)
			if err != nil {
				logger.Warn("forced price scan failed", "err", err)
				return nil
			}
			return prices
		}
	}
	reb := rebalancer.New(rebCfg, b, w, placer, logger)

	tradeLog, err := api.NewTradeLog(cfg.Store.DataDir + "/trades.csv")
	if err != nil {
		return nil, fmt.Errorf("build trade log: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		stream:   stream,
		signals:  signals,
		book:     b,
		wallet:   w,
		reb:      reb,
		riskM:    riskM,
		store:    st,
		metrics:  m,
		tradeLog: tradeLog,
	}

	if cfg.Dashboard.Enabled {
		e.apiServer = api.NewServer(cfg.Dashboard, reb, promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}), logger)
	}

	return e, nil
}

// Start launches all background goroutines.
func (e *Engine) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() { defer e.wg.Done(); e.client.RunWorker(e.ctx) }()

	e.wg.Add(1)
	go func() { defer e.wg.Done(); e.stream.Run(e.ctx) }()

	e.wg.Add(1)
	go func() { defer e.wg.Done(); e.riskM.Run(e.ctx) }()

	e.wg.Add(1)
	go func() { defer e.wg.Done(); e.dispatch() }()

	if e.apiServer != nil {
		go func() {
			if err := e.apiServer.Start(); err != nil {
				e.logger.Warn("api server exited", "err", err)
			}
		}()
	}

	if err := e.restoreState(); err != nil {
		e.logger.Warn("restore state failed", "err", err)
	}
}

// Stop cancels all background work, cancels resting orders as a safety
// net, persists state, and waits for goroutines to exit.
func (e *Engine) Stop() {
	if e.apiServer != nil {
		if err := e.apiServer.Stop(); err != nil {
			e.logger.Warn("api server stop failed", "err", err)
		}
	}
	e.reb.Halt(context.Background())
	if err := e.persistState(); err != nil {
		e.logger.Warn("persist state failed", "err", err)
	}
	e.cancel()
	e.wg.Wait()
}

func (e *Engine) dispatch() {
	metricsTicker := time.NewTicker(5 * time.Second)
	defer metricsTicker.Stop()
	watchdog := time.NewTicker(rebalancer.WatchdogInterval)
	defer watchdog.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-watchdog.C:
			e.tick()
		case sig := <-e.signals.Ticker:
			e.book.ApplyTicker(sig)
			e.metrics.SetTicker(sig.Bid, sig.Ask)
			e.tick()
		case sig := <-e.signals.Trade:
			if sig.Own {
				e.logTrade(sig)
			}
			e.tick()
		case sig := <-e.signals.OwnsChanged:
			e.applyOwnsChanged(sig)
			e.tick()
		case sig := <-e.signals.Wallet:
			e.wallet.ApplyLive(sig.Wallet)
			quote := sig.Wallet[e.cfg.Pair.Quote]
			base := sig.Wallet[e.cfg.Pair.Base]
			// riskM only logs/reports here; the rebalancer's own inline
			// balance check in CheckTrades is the sole gate on halting,
			// so a risk-driven event can never race with or clear an
			// operator-requested halt (spec §8 property H).
			e.riskM.Report(risk.Report{Quote: quote, Base: base})
			e.tick()
		case rem := <-e.signals.Remark:
			if !rem.Success {
				e.logger.Warn("venue remark", "message", rem.Message, "reqid", rem.ReqID)
			}
		case <-metricsTicker.C:
			e.metrics.SetHaltState(e.reb.State() == rebalancer.StateHalted)
		}
	}
}

// logTrade appends a CSV record for an own fill (spec §6 log surface).
func (e *Engine) logTrade(sig types.TradeSignal) {
	quote, base, ok := e.wallet.Balances(e.cfg.Pair.Quote, e.cfg.Pair.Base)
	if !ok {
		return
	}
	totalQuote := quote + e.cfg.Strategy.QuoteCold
	totalBase := base + e.cfg.Strategy.BaseCold
	snap := e.book.Snapshot()
	center, _ := pricing.Center(totalQuote, totalBase, snap.Bid, snap.Ask)

	entry := api.TradeLogEntry{
		Time:        sig.Date,
		Side:        string(sig.Side),
		Volume:      sig.Volume,
		Price:       sig.Price,
		FeeRate:     e.cfg.Strategy.FeeRate,
		Center:      center,
		WalletQuote: quote,
		TotalQuote:  totalQuote,
		QuoteCold:   e.cfg.Strategy.QuoteCold,
		WalletBase:  base,
		TotalBase:   totalBase,
		BaseCold:    e.cfg.Strategy.BaseCold,
	}
	if totalQuote > 0 {
		entry.QuoteRatio = quote / totalQuote
	}
	if totalBase > 0 {
		entry.BaseRatio = base / totalBase
	}
	if err := e.tradeLog.Append(entry); err != nil {
		e.logger.Warn("trade log append failed", "err", err)
	}
}

// applyOwnsChanged mirrors a venue-reported own-order lifecycle push into
// the local book registry (spec §3 "the core never mutates an order
// directly; mutations come from venue events"). A zero-value OID means the
// signal carried no order payload (e.g. a trade-inferred owns_changed with
// no separate userorder push); CheckTrades still re-runs off the book's
// current state in that case.
func (e *Engine) applyOwnsChanged(sig types.OwnsChangedSignal) {
	if sig.Order.OID == "" {
		return
	}
	if sig.Order.Status == types.StatusRemoved {
		e.book.RemoveOwn(sig.Order.OID)
		return
	}
	e.book.RegisterOwn(sig.Order)
}

func (e *Engine) tick() {
	if err := e.reb.CheckTrades(e.ctx); err != nil {
		e.logger.Warn("check_trades failed", "err", err)
	}
}

func (e *Engine) persistState() error {
	bid, ask := e.reb.LastPrices()
	return e.store.Save(store.State{
		Halted:      e.reb.State() == rebalancer.StateHalted,
		Simulate:    e.wallet.Simulating(),
		LastBid:     bid,
		LastAsk:     ask,
		WaitingInfo: e.reb.WaitingInfo(),
	})
}

// restoreState reads the persisted snapshot back and reports a read error.
// The loaded values are not applied to the rebalancer or the wallet.
func (e *Engine) restoreState() error {
	_, err := e.store.Load()
	return err
}

// clientPlacer adapts exchange.Client's FIFO worker queue to the
// rebalancer.OrderPlacer interface, generating a reqid per spec §4.B's
// "order_add:side:price:volume" / "order_cancel:oid" correlation scheme.
// reqid only correlates a request with its reply; the book registers orders
// under the venue-assigned oid parsed out of the response body (spec §9).
type clientPlacer struct {
	client     *exchange.Client
	pair       types.Pair
	metrics    *metrics.Metrics
	wallet     *wallet.Wallet
	quoteScale moneyconv.Scale
	baseScale  moneyconv.Scale
	logger     *slog.Logger
}

func (p *clientPlacer) PlaceOrder(ctx context.Context, side types.Side, price, volume int64) (string, error) {
	reqid := types.ReqID(fmt.Sprintf("order_add:%s:%d:%d:%s", side, price, volume, uuid.NewString()))
	replyC := p.client.Enqueue(types.OutboundRequest{
		Endpoint: "/order/add",
		Params: map[string]string{
			"pair":   p.pair.String(),
			"type":   string(side),
			"price":  strconv.FormatInt(price, 10),
			"amount": strconv.FormatInt(volume, 10),
		},
		ReqID: reqid,
	})
	p.metrics.QueueDepth.Set(float64(p.client.QueueDepth()))
	select {
	case res := <-replyC:
		if res.Err != nil {
			return "", res.Err
		}
		oid, err := exchange.ParseOrderAddResult(res.Body)
		if err != nil {
			return "", fmt.Errorf("place order %s: %w", reqid, err)
		}
		p.metrics.OrdersPlaced.Inc()
		return oid, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RequestInfo fires a fresh balance snapshot request and, once the reply
// arrives, applies it to the live wallet asynchronously so CheckTrades never
// blocks on a venue round trip from within the strategy slot (spec §5,
// suspension points confined to the streaming/HTTP/timer layers). Used by
// the rebalancer's Reconciling->Placing gate (spec §4.E) after a single-side
// fill, so the replacement pair is priced off balances newer than the fill.
func (p *clientPlacer) RequestInfo(ctx context.Context) error {
	reqid := types.ReqID(fmt.Sprintf("info:%s", uuid.NewString()))
	replyC := p.client.Enqueue(types.OutboundRequest{
		Endpoint: "/info",
		Params:   map[string]string{"pair": p.pair.String()},
		ReqID:    reqid,
	})
	p.metrics.QueueDepth.Set(float64(p.client.QueueDepth()))
	go func() {
		select {
		case res := <-replyC:
			if res.Err != nil {
				p.logger.Warn("info request failed", "reqid", reqid, "err", res.Err)
				return
			}
			snapshot, err := exchange.ParseInfoResponse(res.Body, p.pair, p.quoteScale, p.baseScale, p.logger)
			if err != nil {
				p.logger.Warn("parse info response failed", "reqid", reqid, "err", err)
				return
			}
			p.wallet.ApplyLive(snapshot)
		case <-ctx.Done():
		}
	}()
	return nil
}

func (p *clientPlacer) CancelOrder(ctx context.Context, oid string) (types.ReqID, error) {
	reqid := types.ReqID(fmt.Sprintf("order_cancel:%s", oid))
	replyC := p.client.Enqueue(types.OutboundRequest{
		Endpoint: "/order/cancel",
		Params:   map[string]string{"oid": oid},
		ReqID:    reqid,
	})
	p.metrics.QueueDepth.Set(float64(p.client.QueueDepth()))
	select {
	case res := <-replyC:
		if res.Err != nil {
			return "", res.Err
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
	p.metrics.OrdersCancelled.Inc()
	return reqid, nil
}
