// ABOUTME: Entitlement cache resolving the paid tier with a 24h freshness window
// ABOUTME: Degrades to the last cached license or a free default, never to an error

package license

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chatpilot-app/chatpilot/internal/kvstore"
	"github.com/chatpilot-app/chatpilot/internal/profile"
)

const (
	docLicense = "license"

	// freshFor is how long a cached license is served without re-verification.
	freshFor = 24 * time.Hour
	// trialLength is the fixed trial duration.
	trialLength = 7 * 24 * time.Hour

	planBusiness = "business"
)

// License is the cached entitlement. It is always replaced as a whole unit
// together with its CachedAt stamp, so concurrent readers never observe a
// torn value.
type License struct {
	Tier        profile.Tier `json:"tier"`
	Paid        bool         `json:"paid"`
	TrialActive bool         `json:"trialActive"`
	TrialEndsAt *time.Time   `json:"trialEndsAt,omitempty"`
	Email       string       `json:"email,omitempty"`
	CustomerID  string       `json:"customerId,omitempty"`
	CachedAt    time.Time    `json:"cachedAt"`
}

// Cache resolves and caches the user's paid tier.
type Cache struct {
	kv       kvstore.Store
	billing  BillingClient
	profiles *profile.Store
	logger   *slog.Logger
	now      func() time.Time
}

// NewCache creates an entitlement cache.
func NewCache(kv kvstore.Store, billing BillingClient, profiles *profile.Store) *Cache {
	return &Cache{
		kv:       kv,
		billing:  billing,
		profiles: profiles,
		logger:   slog.Default().With("component", "license"),
		now:      time.Now,
	}
}

// cached returns the stored license, or nil when none exists or the read fails.
func (c *Cache) cached(ctx context.Context) *License {
	var lic License
	err := kvstore.GetJSON(ctx, c.kv, kvstore.AreaSync, docLicense, &lic)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			c.logger.Warn("reading cached license failed", "error", err)
		}
		return nil
	}
	return &lic
}

func (c *Cache) freeLicense() *License {
	return &License{Tier: profile.TierFree, CachedAt: c.now().UTC()}
}

// Init returns the cached license when it is fresher than 24 hours without a
// remote call; otherwise it verifies. Never fails: degradation ends at a
// free/unpaid default.
func (c *Cache) Init(ctx context.Context) *License {
	if lic := c.cached(ctx); lic != nil && c.now().Sub(lic.CachedAt) < freshFor {
		return lic
	}
	return c.Verify(ctx)
}

// Verify queries the billing collaborator once and replaces the cache on
// success. On remote failure the last cached license is served indefinitely,
// or a free default when none exists — the caller never sees an error.
func (c *Cache) Verify(ctx context.Context) *License {
	prev := c.cached(ctx)

	acct, err := c.billing.FetchAccount(ctx)
	if err != nil {
		if prev != nil {
			c.logger.Warn("verification failed, serving cached license", "error", err, "tier", prev.Tier)
			return prev
		}
		c.logger.Warn("verification failed with no cache, serving free default", "error", err)
		return c.freeLicense()
	}

	lic := c.mapAccount(acct)
	c.store(ctx, lic)
	c.reconcileTier(ctx, prev, lic)
	return lic
}

// mapAccount converts a billing record into a license per the tier rules.
func (c *Cache) mapAccount(acct *Account) *License {
	now := c.now().UTC()
	lic := &License{
		Tier:       profile.TierFree,
		Email:      acct.Email,
		CustomerID: acct.CustomerID,
		CachedAt:   now,
	}

	if !acct.Found {
		return lic
	}

	if acct.Paid {
		lic.Paid = true
		if acct.PlanID == planBusiness {
			lic.Tier = profile.TierBusiness
		} else {
			lic.Tier = profile.TierPro
		}
		return lic
	}

	if acct.TrialStartedAt != nil {
		endsAt := acct.TrialStartedAt.Add(trialLength)
		if now.Before(endsAt) {
			lic.Tier = profile.TierPro
			lic.TrialActive = true
			lic.TrialEndsAt = &endsAt
		}
	}

	return lic
}

// store replaces the cached license as a whole unit.
func (c *Cache) store(ctx context.Context, lic *License) {
	if err := kvstore.SetJSON(ctx, c.kv, kvstore.AreaSync, docLicense, lic); err != nil {
		c.logger.Warn("caching license failed", "error", err)
	}
}

// reconcileTier pushes the new tier's limits into the active profile whenever
// the cached tier changed.
func (c *Cache) reconcileTier(ctx context.Context, prev, next *License) {
	if prev != nil && prev.Tier == next.Tier {
		return
	}
	if err := c.profiles.ApplyTierLimits(ctx, next.Tier); err != nil {
		if errors.Is(err, profile.ErrNeedsMigration) {
			return
		}
		c.logger.Warn("applying tier limits failed", "tier", next.Tier, "error", err)
	}
}

// CanStartTrial reports whether a trial may be started: true iff no user
// record exists or no trial was ever started. Trials are non-repeatable per
// installation; when the remote cannot be reached the answer is false.
func (c *Cache) CanStartTrial(ctx context.Context) bool {
	acct, err := c.billing.FetchAccount(ctx)
	if err != nil {
		return false
	}
	return !acct.Found || acct.TrialStartedAt == nil
}

// StartTrial registers a trial with the billing collaborator and caches the
// resulting pro/trial license. Unlike verification this surfaces remote
// failure, because it is an explicit user action with no local fallback.
func (c *Cache) StartTrial(ctx context.Context) (*License, error) {
	acct, err := c.billing.StartTrial(ctx)
	if err != nil {
		return nil, err
	}

	prev := c.cached(ctx)
	lic := c.mapAccount(acct)
	c.store(ctx, lic)
	c.reconcileTier(ctx, prev, lic)

	c.logger.Info("trial started", "ends_at", lic.TrialEndsAt)
	return lic, nil
}
