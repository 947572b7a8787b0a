// ABOUTME: Shared test fixtures for the facade package
// ABOUTME: Builds a fully wired service on the in-memory substrate

package facade

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatpilot-app/chatpilot/internal/analytics"
	"github.com/chatpilot-app/chatpilot/internal/credits"
	"github.com/chatpilot-app/chatpilot/internal/kvstore"
	"github.com/chatpilot-app/chatpilot/internal/license"
	"github.com/chatpilot-app/chatpilot/internal/profile"
)

// stubBilling is a BillingClient that always reports a free account.
type stubBilling struct {
	account *license.Account
}

func (s *stubBilling) FetchAccount(ctx context.Context) (*license.Account, error) {
	if s.account != nil {
		return s.account, nil
	}
	return &license.Account{Found: false}, nil
}

func (s *stubBilling) StartTrial(ctx context.Context) (*license.Account, error) {
	return s.FetchAccount(ctx)
}

// newTestService wires the full facade service on a migrated in-memory store.
func newTestService(t *testing.T) (*Service, *kvstore.MemStore) {
	t.Helper()
	kv := kvstore.NewMemStore()

	profiles := profile.NewStore(kv)
	migrated, err := profiles.MigrateLegacy(context.Background())
	require.NoError(t, err)
	require.True(t, migrated)

	cache := license.NewCache(kv, &stubBilling{}, profiles)
	svc := NewService(profiles, cache, credits.NewMeter(kv), analytics.NewStore(kv))
	return svc, kv
}
