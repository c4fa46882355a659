// Package risk independently watches the minimum-balance condition of spec
// §4.E step 5 for reporting purposes: internal/rebalancer.Rebalancer
// enforces the actual halt/resume transition itself from the same balance
// reports, so a Manager-detected recovery can never race with or silently
// clear an operator-requested halt (spec §8 property H). KillCh is not
// wired into the engine for this reason; it remains available for a
// future alerting consumer.
//
// Grounded on the teacher's internal/risk/manager.go: the Report/KillCh
// channel pattern and cooldown-on-recovery shape are kept, but the
// per-market exposure tracking, global-exposure aggregation, and
// price-shock detection are dropped — this spec trades exactly one pair
// with no cross-market budget to track (documented in DESIGN.md).
package risk

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Limits are the configured balance floors (spec §6 quote_limit/base_limit).
type Limits struct {
	QuoteLimit float64
	BaseLimit  float64
	// Cooldown is how long a halt stays latched after balances recover,
	// to avoid rapid halt/resume flapping right at the threshold.
	Cooldown time.Duration
}

// Report is one balance observation fed to the manager.
type Report struct {
	Quote, Base float64
}

// Manager watches wallet reports and emits on KillCh when trading must
// halt, clearing automatically once balances recover past the cooldown.
type Manager struct {
	limits Limits
	logger *slog.Logger

	mu          sync.Mutex
	haltActive  bool
	haltSince   time.Time
	lastReport  Report
	haveReport  bool

	reportCh chan Report
	killCh   chan bool // true = halt engaged, false = halt cleared
}

// NewManager builds a Manager for the given limits.
func NewManager(limits Limits, logger *slog.Logger) *Manager {
	return &Manager{
		limits:   limits,
		logger:   logger.With("component", "risk.manager"),
		reportCh: make(chan Report, 8),
		killCh:   make(chan bool, 1),
	}
}

// Report submits a balance observation without blocking; if the channel is
// full the oldest pending report is dropped in favor of the newest.
func (m *Manager) Report(r Report) {
	select {
	case m.reportCh <- r:
	default:
		select {
		case <-m.reportCh:
		default:
		}
		m.reportCh <- r
	}
}

// KillCh delivers true when the halt engages and false when it clears.
func (m *Manager) KillCh() <-chan bool { return m.killCh }

// IsHaltActive reports the current latched state.
func (m *Manager) IsHaltActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.haltActive
}

// Run processes reports until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-m.reportCh:
			m.process(r)
		}
	}
}

func (m *Manager) process(r Report) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastReport = r
	m.haveReport = true
	belowLimit := r.Quote < m.limits.QuoteLimit || r.Base < m.limits.BaseLimit

	switch {
	case belowLimit && !m.haltActive:
		m.haltActive = true
		m.haltSince = time.Now()
		m.logger.Warn("risk halt engaged", "quote", r.Quote, "base", r.Base)
		m.emit(true)
	case !belowLimit && m.haltActive:
		if time.Since(m.haltSince) < m.limits.Cooldown {
			return
		}
		m.haltActive = false
		m.logger.Info("risk halt cleared", "quote", r.Quote, "base", r.Base)
		m.emit(false)
	}
}

func (m *Manager) emit(active bool) {
	select {
	case m.killCh <- active:
	default:
		select {
		case <-m.killCh:
		default:
		}
		m.killCh <- active
	}
}
