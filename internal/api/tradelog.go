package api

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"
)

// TradeLogEntry is one own-trade record, matching spec §6's CSV log
// surface: timestamp, side, volume, price, fee rate, center price, and the
// wallet/cold/ratio figures for both currencies at the time of the trade.
type TradeLogEntry struct {
	Time        time.Time
	Side        string
	Volume      float64
	Price       float64
	FeeRate     float64
	Center      float64
	WalletQuote float64
	TotalQuote  float64
	QuoteCold   float64
	QuoteRatio  float64
	WalletBase  float64
	TotalBase   float64
	BaseCold    float64
	BaseRatio   float64
}

// TradeLog appends one CSV line per own trade to a file, grounded on the
// teacher's atomic-write store discipline but append-only since a trade
// log is a ledger, not a snapshot.
type TradeLog struct {
	mu   sync.Mutex
	path string
}

// NewTradeLog opens (creating if needed) the CSV file at path, writing a
// header row if the file is new.
func NewTradeLog(path string) (*TradeLog, error) {
	_, err := os.Stat(path)
	isNew := os.IsNotExist(err)

	t := &TradeLog{path: path}
	if isNew {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("create trade log: %w", err)
		}
		w := csv.NewWriter(f)
		_ = w.Write([]string{
			"time", "side", "volume", "price", "fee_rate", "center",
			"wallet_quote", "total_quote", "quote_cold", "quote_ratio",
			"wallet_base", "total_base", "base_cold", "base_ratio",
		})
		w.Flush()
		f.Close()
	}
	return t, nil
}

// Append writes one entry to the log.
func (t *TradeLog) Append(e TradeLogEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open trade log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	err = w.Write([]string{
		e.Time.Format(time.RFC3339),
		e.Side,
		fmt.Sprintf("%.8f", e.Volume),
		fmt.Sprintf("%.8f", e.Price),
		fmt.Sprintf("%.6f", e.FeeRate),
		fmt.Sprintf("%.8f", e.Center),
		fmt.Sprintf("%.8f", e.WalletQuote),
		fmt.Sprintf("%.8f", e.TotalQuote),
		fmt.Sprintf("%.8f", e.QuoteCold),
		fmt.Sprintf("%.4f", e.QuoteRatio),
		fmt.Sprintf("%.8f", e.WalletBase),
		fmt.Sprintf("%.8f", e.TotalBase),
		fmt.Sprintf("%.8f", e.BaseCold),
		fmt.Sprintf("%.4f", e.BaseRatio),
	})
	if err != nil {
		return fmt.Errorf("write trade log row: %w", err)
	}
	w.Flush()
	return w.Error()
}
