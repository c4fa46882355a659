package api

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewTradeLogWritesHeaderOnce(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "trades.csv")

	if _, err := NewTradeLog(path); err != nil {
		t.Fatalf("NewTradeLog returned error: %v", err)
	}
	if _, err := NewTradeLog(path); err != nil {
		t.Fatalf("second NewTradeLog returned error: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 1 {
		t.Fatalf("expected exactly one header row after two NewTradeLog calls, got %d rows", len(rows))
	}
	if rows[0][0] != "time" {
		t.Errorf("header row[0] = %q, want \"time\"", rows[0][0])
	}
}

func TestTradeLogAppend(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "trades.csv")
	log, err := NewTradeLog(path)
	if err != nil {
		t.Fatalf("NewTradeLog returned error: %v", err)
	}

	entry := TradeLogEntry{
		Time: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Side: "bid", Volume: 0.01, Price: 500, FeeRate: 0.002, Center: 500,
		WalletQuote: 100, TotalQuote: 100, QuoteCold: 0, QuoteRatio: 1,
		WalletBase: 1, TotalBase: 1, BaseCold: 0, BaseRatio: 1,
	}
	if err := log.Append(entry); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 data row, got %d rows", len(rows))
	}
	if rows[1][1] != "bid" {
		t.Errorf("row[1][1] (side) = %q, want \"bid\"", rows[1][1])
	}
}

func TestTradeLogAppendMultipleRows(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "trades.csv")
	log, err := NewTradeLog(path)
	if err != nil {
		t.Fatalf("NewTradeLog returned error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := log.Append(TradeLogEntry{Time: time.Now(), Side: "ask"}); err != nil {
			t.Fatalf("Append #%d returned error: %v", i, err)
		}
	}

	rows := readCSV(t, path)
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 data rows, got %d rows", len(rows))
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %q: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse csv %q: %v", path, err)
	}
	return rows
}
