// ABOUTME: Analytics counters exposed through the facade contract
// ABOUTME: Read-merge-write over one local document, degrading to zeros on read failure

package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chatpilot-app/chatpilot/internal/kvstore"
)

const docAnalytics = "analytics"

// Stats are the per-installation usage counters.
type Stats struct {
	MessagesSent  int       `json:"messagesSent"`
	AIReplies     int       `json:"aiReplies"`
	TriggersFired int       `json:"triggersFired"`
	GiveawaysRun  int       `json:"giveawaysRun"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Patch is a partial counter update; nil fields keep their stored value.
type Patch struct {
	MessagesSent  *int `json:"messagesSent,omitempty"`
	AIReplies     *int `json:"aiReplies,omitempty"`
	TriggersFired *int `json:"triggersFired,omitempty"`
	GiveawaysRun  *int `json:"giveawaysRun,omitempty"`
}

// Store reads and merge-updates the analytics document.
type Store struct {
	kv     kvstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates an analytics store.
func NewStore(kv kvstore.Store) *Store {
	return &Store{
		kv:     kv,
		logger: slog.Default().With("component", "analytics"),
		now:    time.Now,
	}
}

// Get returns the stored counters, degrading to zeros on any read failure.
func (s *Store) Get(ctx context.Context) Stats {
	var stats Stats
	err := kvstore.GetJSON(ctx, s.kv, kvstore.AreaLocal, docAnalytics, &stats)
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		s.logger.Warn("reading analytics failed, serving zeros", "error", err)
		return Stats{}
	}
	return stats
}

// Update merges a patch into the stored counters and writes the whole
// document back. Like every substrate update, concurrent writers race.
func (s *Store) Update(ctx context.Context, patch Patch) (Stats, error) {
	stats := s.Get(ctx)

	if patch.MessagesSent != nil {
		stats.MessagesSent = *patch.MessagesSent
	}
	if patch.AIReplies != nil {
		stats.AIReplies = *patch.AIReplies
	}
	if patch.TriggersFired != nil {
		stats.TriggersFired = *patch.TriggersFired
	}
	if patch.GiveawaysRun != nil {
		stats.GiveawaysRun = *patch.GiveawaysRun
	}
	stats.UpdatedAt = s.now().UTC()

	if err := kvstore.SetJSON(ctx, s.kv, kvstore.AreaLocal, docAnalytics, stats); err != nil {
		return Stats{}, fmt.Errorf("persisting analytics: %w", err)
	}
	return stats, nil
}
