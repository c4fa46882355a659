package exchange

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"rebalancer/internal/moneyconv"
	"rebalancer/pkg/types"
)

// ParseWalletAmounts converts a venue's scaled-integer currency->amount map
// into human-facing floats, scaling pair.Quote/pair.Base by their configured
// subunits (spec §3, Money values). Currencies outside the traded pair are
// passed through unscaled since no per-currency scale is known for them and
// this single-pair bot never consumes them. Shared by the streaming wallet
// push (stream.go) and the HTTP info-refresh response below, since both
// carry the same venue-native wallet shape.
func ParseWalletAmounts(raw map[string]string, pair types.Pair, quoteScale, baseScale moneyconv.Scale, logger *slog.Logger) types.Wallet {
	out := make(types.Wallet, len(raw))
	for currency, amount := range raw {
		scaled, err := strconv.ParseInt(amount, 10, 64)
		if err != nil {
			if logger != nil {
				logger.Debug("unparseable wallet amount", "currency", currency, "err", err)
			}
			continue
		}
		switch currency {
		case pair.Quote:
			out[currency] = quoteScale.ToFloat(scaled)
		case pair.Base:
			out[currency] = baseScale.ToFloat(scaled)
		default:
			out[currency] = float64(scaled)
		}
	}
	return out
}

// infoResponse is the HTTP info-call response body shape: a wallet snapshot
// keyed the same way as the streaming "wallet" push.
type infoResponse struct {
	Wallet map[string]string `json:"wallet"`
}

// ParseInfoResponse parses a signed HTTP info-call response body into a
// wallet snapshot (spec §4.B, "requests idkey, initial orders, info"; §4.E
// reconciling-after-a-fill requests a fresh info snapshot before replacing
// orders).
func ParseInfoResponse(body []byte, pair types.Pair, quoteScale, baseScale moneyconv.Scale, logger *slog.Logger) (types.Wallet, error) {
	var resp infoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse info response: %w", err)
	}
	return ParseWalletAmounts(resp.Wallet, pair, quoteScale, baseScale, logger), nil
}

// orderAddResponse is a successful order/add response body. The three
// target venues spell the assigned order id differently: MtGox returns
// {"oid": "..."}, Kraken returns {"result": {"txid": ["..."]}}, Poloniex
// returns {"orderNumber": "..."}. ParseOrderAddResult tries each in turn
// rather than picking one venue's literal shape, the same reasoning as the
// subscribe()/parseUserOrder generic frame documented in DESIGN.md.
type orderAddResponse struct {
	OID    string `json:"oid"`
	Result struct {
		TxID []string `json:"txid"`
	} `json:"result"`
	OrderNumber string `json:"orderNumber"`
}

// ParseOrderAddResult extracts the venue-assigned order id from an
// order/add response body. This id, not the client-generated reqid, is what
// the book registry keys own orders on (spec §9, "primarily rely on a
// registry of issued oids correlated via the reqid round-trip" — the reqid
// correlates the request with this reply; the oid returned here is what
// every subsequent venue event references).
func ParseOrderAddResult(body []byte) (string, error) {
	var resp orderAddResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse order/add response: %w", err)
	}
	switch {
	case resp.OID != "":
		return resp.OID, nil
	case len(resp.Result.TxID) > 0 && resp.Result.TxID[0] != "":
		return resp.Result.TxID[0], nil
	case resp.OrderNumber != "":
		return resp.OrderNumber, nil
	default:
		return "", fmt.Errorf("order/add response missing oid/txid/orderNumber")
	}
}
