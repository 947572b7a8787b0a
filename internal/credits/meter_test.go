// ABOUTME: Tests for the monthly credit meter
// ABOUTME: Covers lazy rollover, exhaustion, warning thresholds, and read degradation

package credits

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatpilot-app/chatpilot/internal/kvstore"
)

func newTestMeter(t *testing.T, now time.Time) (*Meter, *kvstore.MemStore) {
	t.Helper()
	kv := kvstore.NewMemStore()
	m := NewMeter(kv)
	m.now = func() time.Time { return now }
	return m, kv
}

func seedLedger(t *testing.T, kv *kvstore.MemStore, used int, month string) {
	t.Helper()
	doc := fmt.Sprintf(`{"used":%d,"month":%q}`, used, month)
	require.NoError(t, kv.Set(context.Background(), kvstore.AreaLocal, "credits", []byte(doc)))
}

func TestGetStatus_FreshInstall(t *testing.T) {
	m, _ := newTestMeter(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC))

	status := m.GetStatus(context.Background())
	assert.Equal(t, MonthlyAllowance, status.Remaining)
	assert.Equal(t, 0, status.Used)
	assert.Equal(t, "2026-02", status.Month)
}

func TestGetStatus_RolloverWithoutWrite(t *testing.T) {
	m, kv := newTestMeter(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	seedLedger(t, kv, 500, "2025-01")

	status := m.GetStatus(context.Background())
	assert.Equal(t, MonthlyAllowance, status.Remaining)
	assert.Equal(t, 0, status.Used)
	assert.Equal(t, "2025-02", status.Month)

	// The stored ledger is untouched; only Consume resets it.
	raw, err := kv.Get(context.Background(), kvstore.AreaLocal, "credits")
	require.NoError(t, err)
	assert.JSONEq(t, `{"used":500,"month":"2025-01"}`, string(raw))
}

func TestGetStatus_OverdrawnClampsToZero(t *testing.T) {
	m, kv := newTestMeter(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC))
	seedLedger(t, kv, 650, "2026-02")

	status := m.GetStatus(context.Background())
	assert.Equal(t, 0, status.Remaining)
	assert.Equal(t, 650, status.Used)
}

func TestConsume(t *testing.T) {
	m, _ := newTestMeter(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	remaining, err := m.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, MonthlyAllowance-1, remaining)

	status := m.GetStatus(ctx)
	assert.Equal(t, 1, status.Used)
}

func TestConsume_ExhaustsAtAllowance(t *testing.T) {
	m, kv := newTestMeter(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	seedLedger(t, kv, MonthlyAllowance-1, "2026-02")

	remaining, err := m.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	_, err = m.Consume(ctx)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
}

func TestConsume_RolloverResetsLedger(t *testing.T) {
	m, kv := newTestMeter(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	seedLedger(t, kv, MonthlyAllowance, "2025-01")

	remaining, err := m.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, MonthlyAllowance-1, remaining)

	raw, err := kv.Get(ctx, kvstore.AreaLocal, "credits")
	require.NoError(t, err)
	assert.JSONEq(t, `{"used":1,"month":"2025-02"}`, string(raw))
}

func TestConsume_WriteFailure(t *testing.T) {
	m, kv := newTestMeter(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC))
	kv.SetErr = errors.New("disk full")

	_, err := m.Consume(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrQuotaExhausted)
}

func TestReadFailureDegradesToFreshAllowance(t *testing.T) {
	m, kv := newTestMeter(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC))
	kv.GetErr = errors.New("disk exploded")

	status := m.GetStatus(context.Background())
	assert.Equal(t, MonthlyAllowance, status.Remaining)
}

func TestCheckWarning(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	tests := []struct {
		name    string
		used    int
		warning bool
		level   string
		message string
	}{
		{"plenty left", 100, false, "", ""},
		{"at low threshold", MonthlyAllowance - WarnRemaining, true, "low", "50 AI replies left this month. Resets on March 1, 2026."},
		{"at critical threshold", MonthlyAllowance - CriticalRemaining, true, "critical", "Only 10 AI replies left this month. Resets on March 1, 2026."},
		{"exhausted", MonthlyAllowance, true, "critical", "Only 0 AI replies left this month. Resets on March 1, 2026."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, kv := newTestMeter(t, now)
			seedLedger(t, kv, tt.used, "2026-02")

			w := m.CheckWarning(ctx)
			assert.Equal(t, tt.warning, w.Warning)
			assert.Equal(t, tt.level, w.Level)
			assert.Equal(t, tt.message, w.Message)
		})
	}
}

func TestCheckWarning_DecemberResetsInJanuary(t *testing.T) {
	m, kv := newTestMeter(t, time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC))
	seedLedger(t, kv, MonthlyAllowance-5, "2026-12")

	w := m.CheckWarning(context.Background())
	require.True(t, w.Warning)
	assert.Contains(t, w.Message, "January 1, 2027")
}
