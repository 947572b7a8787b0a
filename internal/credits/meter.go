// ABOUTME: Credit meter tracking the rolling monthly AI-generation allowance
// ABOUTME: Lazy month rollover: status reads never mutate the stored ledger

package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chatpilot-app/chatpilot/internal/kvstore"
)

// ErrQuotaExhausted is returned by Consume when no credits remain this month.
var ErrQuotaExhausted = errors.New("monthly credit allowance exhausted")

const (
	// MonthlyAllowance is the fixed number of metered generations per month.
	MonthlyAllowance = 500
	// WarnRemaining is the low-credit warning threshold.
	WarnRemaining = 50
	// CriticalRemaining is the critical warning threshold.
	CriticalRemaining = 10

	docCredits = "credits"
)

// Ledger is the persisted monthly counter.
type Ledger struct {
	Used  int    `json:"used"`
	Month string `json:"month"`
}

// Status reports the current allowance state.
type Status struct {
	Remaining int    `json:"remaining"`
	Used      int    `json:"used"`
	Month     string `json:"month"`
}

// Warning is the user-facing low-credit state.
type Warning struct {
	Warning bool   `json:"warning"`
	Level   string `json:"level,omitempty"` // "low" or "critical"
	Message string `json:"message,omitempty"`
}

// Meter gates calls into the remote text-generation collaborator.
type Meter struct {
	kv     kvstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewMeter creates a credit meter on top of the storage substrate.
func NewMeter(kv kvstore.Store) *Meter {
	return &Meter{
		kv:     kv,
		logger: slog.Default().With("component", "credits"),
		now:    time.Now,
	}
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// readLedger loads the stored ledger. Missing documents and read failures
// degrade to a zero ledger for the current month.
func (m *Meter) readLedger(ctx context.Context) Ledger {
	var ledger Ledger
	err := kvstore.GetJSON(ctx, m.kv, kvstore.AreaLocal, docCredits, &ledger)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			m.logger.Warn("reading credit ledger failed, assuming fresh allowance", "error", err)
		}
		return Ledger{Month: monthKey(m.now())}
	}
	return ledger
}

// GetStatus reports the remaining allowance. When the stored month differs
// from the current one it reports a fresh allowance without writing; the
// ledger is only physically reset by the next successful Consume.
func (m *Meter) GetStatus(ctx context.Context) Status {
	current := monthKey(m.now())
	ledger := m.readLedger(ctx)
	if ledger.Month != current {
		return Status{Remaining: MonthlyAllowance, Used: 0, Month: current}
	}

	remaining := MonthlyAllowance - ledger.Used
	if remaining < 0 {
		remaining = 0
	}
	return Status{Remaining: remaining, Used: ledger.Used, Month: current}
}

// Consume spends one credit and returns the remaining count. The decision is
// made from a freshly read ledger, not a cached status; the read-then-write
// sequence has no isolation, so two contexts consuming concurrently may lose
// one increment.
func (m *Meter) Consume(ctx context.Context) (int, error) {
	current := monthKey(m.now())
	ledger := m.readLedger(ctx)
	if ledger.Month != current {
		ledger = Ledger{Month: current}
	}

	if MonthlyAllowance-ledger.Used <= 0 {
		return 0, ErrQuotaExhausted
	}

	ledger.Used++
	if err := kvstore.SetJSON(ctx, m.kv, kvstore.AreaLocal, docCredits, ledger); err != nil {
		return 0, fmt.Errorf("persisting credit ledger: %w", err)
	}

	remaining := MonthlyAllowance - ledger.Used
	m.logger.Debug("consumed credit", "used", ledger.Used, "remaining", remaining)
	return remaining, nil
}

// CheckWarning reports whether the user should see a low-credit notice.
func (m *Meter) CheckWarning(ctx context.Context) Warning {
	status := m.GetStatus(ctx)
	resetDate := m.resetDate().Format("January 2, 2006")

	switch {
	case status.Remaining <= CriticalRemaining:
		return Warning{
			Warning: true,
			Level:   "critical",
			Message: fmt.Sprintf("Only %d AI replies left this month. Resets on %s.", status.Remaining, resetDate),
		}
	case status.Remaining <= WarnRemaining:
		return Warning{
			Warning: true,
			Level:   "low",
			Message: fmt.Sprintf("%d AI replies left this month. Resets on %s.", status.Remaining, resetDate),
		}
	default:
		return Warning{}
	}
}

// resetDate is the first day of the next month.
func (m *Meter) resetDate() time.Time {
	now := m.now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
