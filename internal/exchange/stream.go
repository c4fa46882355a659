package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"rebalancer/internal/moneyconv"
	"rebalancer/pkg/types"
)

const (
	reconnectBackoffCap = time.Second
	resubscribeEvery    = 30 * time.Minute
	keepaliveInterval   = 60 * time.Second
	staleAfter          = 60 * time.Second
)

// Signals is the set of channels the streaming loop dispatches typed events
// onto (spec §4.C / §9's "signal/slot -> channel" note). Channels are
// buffered by the caller; Stream never blocks indefinitely on a send
// because it selects against ctx.Done as well.
type Signals struct {
	Ticker      chan types.TickerSignal
	Trade       chan types.TradeSignal
	OwnsChanged chan types.OwnsChangedSignal
	Wallet      chan types.WalletSignal
	Remark      chan types.RemarkSignal
	Connected   chan types.ConnectedSignal
}

// Stream manages the streaming connection's full lifecycle: connect,
// subscribe, reconnect with capped backoff, periodic keepalive and
// re-subscribe, and dispatch of inbound frames onto Signals (spec §4.B
// task 1).
//
// Grounded on the teacher's internal/exchange/ws.go reconnect/ping loop,
// generalized from the Polymarket market/user socket pair to the single
// multiplexed venue stream of §4.B.
type Stream struct {
	url     string
	pair    types.Pair
	signals Signals
	logger  *slog.Logger

	quoteScale moneyconv.Scale
	baseScale  moneyconv.Scale

	// OnReconnect, if set, is called each time the loop re-dials after a
	// disconnect (not on the initial connection attempt). Wired to the
	// engine's reconnect-count metric.
	OnReconnect func()
}

// NewStream builds a Stream for the given venue URL and pair. quoteScale and
// baseScale convert the venue-native scaled-integer wallet amounts for
// pair.Quote/pair.Base into the human-facing floats WalletSignal carries
// (spec §3, "Money values").
func NewStream(url string, pair types.Pair, quoteScale, baseScale moneyconv.Scale, signals Signals, logger *slog.Logger) *Stream {
	return &Stream{
		url:        url,
		pair:       pair,
		signals:    signals,
		quoteScale: quoteScale,
		baseScale:  baseScale,
		logger:     logger.With("component", "exchange.stream"),
	}
}

// Run connects and re-connects until ctx is cancelled, applying an
// exponential backoff capped at reconnectBackoffCap between attempts
// (spec §4.B task 1).
func (s *Stream) Run(ctx context.Context) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.runOnce(ctx); err != nil {
			s.logger.Warn("stream disconnected", "err", err, "attempt", attempt)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		backoff := time.Duration(math.Min(
			float64(reconnectBackoffCap),
			float64(100*time.Millisecond)*math.Pow(2, float64(attempt)),
		))
		attempt++
		if s.OnReconnect != nil {
			s.OnReconnect()
		}

		t := time.NewTimer(backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}

func (s *Stream) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := s.subscribe(conn); err != nil {
		return err
	}
	emit(ctx, s.signals.Connected, types.ConnectedSignal{}, s.logger)

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()
	resub := time.NewTicker(resubscribeEvery)
	defer resub.Stop()
	staleCheck := time.NewTicker(keepaliveInterval)
	defer staleCheck.Stop()

	msgC := make(chan []byte, 64)
	errC := make(chan error, 1)
	go s.readLoop(conn, msgC, errC)

	lastReceived := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errC:
			return err
		case raw := <-msgC:
			lastReceived = time.Now()
			s.dispatch(ctx, raw)
		case <-keepalive.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return err
			}
		case <-staleCheck.C:
			// spec §4.B task 1: force a reconnect if time_last_received
			// ages beyond 60s, since an unresponsive-but-open socket won't
			// necessarily fail the keepalive ping write itself.
			if time.Since(lastReceived) > staleAfter {
				return fmt.Errorf("no frames received in %s, forcing reconnect", staleAfter)
			}
		case <-resub.C:
			if err := s.subscribe(conn); err != nil {
				return err
			}
		}
	}
}

func (s *Stream) readLoop(conn *websocket.Conn, msgC chan<- []byte, errC chan<- error) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			errC <- err
			return
		}
		msgC <- raw
	}
}

// subscribe sends the initial subscribe-and-backfill request (spec §4.B task
// 1: "subscribes to depth, ticker, trades, and (when supported) lag;
// requests idkey, initial orders, info"). One generic frame carries all of
// it; see DESIGN.md's Open Question decision on why this isn't split into
// one message per channel (the three target venues' real subscribe dialects
// diverge too much for a single literal wire format to pick one correctly).
func (s *Stream) subscribe(conn *websocket.Conn) error {
	msg := map[string]any{
		"op":       "subscribe",
		"pair":     s.pair.String(),
		"channels": []string{"depth", "ticker", "trades", "lag"},
		"request":  []string{"idkey", "orders", "info"},
	}
	return conn.WriteJSON(msg)
}

func (s *Stream) dispatch(ctx context.Context, raw []byte) {
	var env types.StreamEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Debug("unparseable stream frame", "err", err)
		return
	}

	switch {
	case env.Ticker != nil:
		bid, _ := strconv.ParseFloat(env.Ticker.Bid, 64)
		ask, _ := strconv.ParseFloat(env.Ticker.Ask, 64)
		emit(ctx, s.signals.Ticker, types.TickerSignal{Bid: bid, Ask: ask}, s.logger)
	case env.Trade != nil:
		price, _ := strconv.ParseFloat(env.Trade.Price, 64)
		amt, _ := strconv.ParseFloat(env.Trade.Amount, 64)
		side := types.Bid
		if env.Trade.Type == "ask" {
			side = types.Ask
		}
		emit(ctx, s.signals.Trade, types.TradeSignal{
			Date:   time.Unix(env.Trade.Date, 0),
			Price:  price,
			Volume: amt,
			Side:   side,
			Own:    env.Trade.PrimaryOid != "",
		}, s.logger)
		if env.Trade.PrimaryOid != "" {
			// The filled order disappears from the venue's own-orders list
			// rather than transitioning through an explicit "removed"
			// status (spec §3 Lifecycles); model the fill the same way.
			emit(ctx, s.signals.OwnsChanged, types.OwnsChangedSignal{
				Order: types.Order{OID: env.Trade.PrimaryOid, Status: types.StatusRemoved},
			}, s.logger)
		}
	case env.Remark != nil:
		emit(ctx, s.signals.Remark, types.RemarkSignal{
			Success: env.Remark.Success,
			Message: env.Remark.Message,
			Token:   env.Remark.Token,
			ReqID:   env.ID,
		}, s.logger)
	case env.Wallet != nil:
		emit(ctx, s.signals.Wallet, types.WalletSignal{Wallet: s.parseWallet(env.Wallet)}, s.logger)
	case env.UserOrder != nil:
		emit(ctx, s.signals.OwnsChanged, types.OwnsChangedSignal{Order: s.parseUserOrder(env.UserOrder)}, s.logger)
	}
}

// parseWallet converts the venue's scaled-integer wallet snapshot into the
// human-facing float map the rebalancer reads (spec §3, Wallet). Uses the
// same ParseWalletAmounts as the HTTP info-refresh path (ParseInfoResponse
// in wallet.go) so both sources of a wallet snapshot scale currencies
// identically.
func (s *Stream) parseWallet(raw map[string]string) types.Wallet {
	return ParseWalletAmounts(raw, s.pair, s.quoteScale, s.baseScale, s.logger)
}

// parseUserOrder converts one own-order lifecycle push into the book's
// Order shape (spec §3, Order). Price/Volume stay in venue-native scaled
// integers; only the pricing engine works in float.
func (s *Stream) parseUserOrder(w *types.WireUserOrder) types.Order {
	price, _ := strconv.ParseInt(w.Price, 10, 64)
	volume, _ := strconv.ParseInt(w.Volume, 10, 64)
	side := types.Bid
	if w.Type == "ask" {
		side = types.Ask
	}
	return types.Order{
		OID:    w.OID,
		Side:   side,
		Price:  price,
		Volume: volume,
		Status: types.OrderStatus(w.Status),
	}
}

// emit sends sig on ch without blocking indefinitely: it gives up if ctx is
// done or the channel is full, logging a drop in the latter case so a stuck
// consumer shows up in logs instead of stalling the read loop.
func emit[T any](ctx context.Context, ch chan<- T, sig T, logger *slog.Logger) {
	select {
	case ch <- sig:
	case <-ctx.Done():
	default:
		logger.Debug("dropped signal, channel full")
	}
}
