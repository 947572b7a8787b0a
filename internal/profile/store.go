// ABOUTME: Profile store owning named configuration profiles and the active pointer
// ABOUTME: Implements create/duplicate/rename/delete, merge updates and legacy migration

package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chatpilot-app/chatpilot/internal/kvstore"
)

// Profile store errors
var (
	// ErrNotFound is returned when a requested profile does not exist.
	ErrNotFound = errors.New("profile not found")
	// ErrInvalidName is returned when a profile name is empty after trimming.
	ErrInvalidName = errors.New("profile name is empty")
	// ErrProfileLimit is returned when the profile cap would be exceeded.
	ErrProfileLimit = errors.New("profile limit reached")
	// ErrProtectedProfile is returned on attempts to delete or rename the default profile.
	ErrProtectedProfile = errors.New("default profile is protected")
	// ErrNeedsMigration is returned when no profiles exist at all.
	ErrNeedsMigration = errors.New("no profiles exist, migration required")
	// ErrLimitExceeded is returned when a winner count exceeds the entrant pool.
	ErrLimitExceeded = errors.New("winner count exceeds entrant pool")
)

const (
	// DefaultProfileID is the id of the undeletable default profile.
	DefaultProfileID = "default"
	// MaxProfiles caps how many profiles one installation may hold.
	MaxProfiles = 10

	maxNameLen = 50

	docProfiles = "profiles"
	docActive   = "activeProfile"
	docLegacy   = "settings"
)

// Profile is one named configuration bundle.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	Settings  Settings  `json:"settings"`
}

// Info is the listing view of a profile.
type Info struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	IsActive  bool      `json:"isActive"`
}

// Store owns the profile map document and the active-profile pointer.
// The active profile is resolved explicitly on every call rather than held as
// ambient state, so concurrent logical sessions cannot interfere.
type Store struct {
	kv     kvstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a profile store on top of the storage substrate.
func NewStore(kv kvstore.Store) *Store {
	return &Store{
		kv:     kv,
		logger: slog.Default().With("component", "profile"),
		now:    time.Now,
	}
}

// loadProfiles reads the whole profile map. A missing document is an empty map.
func (s *Store) loadProfiles(ctx context.Context) (map[string]*Profile, error) {
	profiles := map[string]*Profile{}
	err := kvstore.GetJSON(ctx, s.kv, kvstore.AreaSync, docProfiles, &profiles)
	if errors.Is(err, kvstore.ErrNotFound) {
		return map[string]*Profile{}, nil
	}
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// saveProfiles writes the whole profile map back. Concurrent writers race:
// the last whole-document write wins and silently discards the other.
func (s *Store) saveProfiles(ctx context.Context, profiles map[string]*Profile) error {
	return kvstore.SetJSON(ctx, s.kv, kvstore.AreaSync, docProfiles, profiles)
}

// ActiveProfileID returns the stored active pointer, defaulting to "default".
func (s *Store) ActiveProfileID(ctx context.Context) string {
	var id string
	if err := kvstore.GetJSON(ctx, s.kv, kvstore.AreaSync, docActive, &id); err != nil || id == "" {
		return DefaultProfileID
	}
	return id
}

// ListProfiles returns all profiles, default first, the rest ordered by
// creation time ascending. Storage read failures degrade to an empty list.
func (s *Store) ListProfiles(ctx context.Context) []Info {
	profiles, err := s.loadProfiles(ctx)
	if err != nil {
		s.logger.Warn("listing profiles failed, returning empty list", "error", err)
		return nil
	}
	activeID := s.ActiveProfileID(ctx)

	var rest []*Profile
	for id, p := range profiles {
		if id != DefaultProfileID {
			rest = append(rest, p)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].CreatedAt.Equal(rest[j].CreatedAt) {
			return rest[i].ID < rest[j].ID
		}
		return rest[i].CreatedAt.Before(rest[j].CreatedAt)
	})

	var infos []Info
	if def, ok := profiles[DefaultProfileID]; ok {
		infos = append(infos, Info{ID: def.ID, Name: def.Name, CreatedAt: def.CreatedAt, IsActive: def.ID == activeID})
	}
	for _, p := range rest {
		infos = append(infos, Info{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt, IsActive: p.ID == activeID})
	}
	return infos
}

// normalizeName trims and truncates a profile name to 50 runes.
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > maxNameLen {
		name = strings.TrimSpace(string(runes[:maxNameLen]))
	}
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}

// CreateProfile creates a new profile with the full default settings document.
func (s *Store) CreateProfile(ctx context.Context, name string) (*Profile, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	profiles, err := s.loadProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	if len(profiles) >= MaxProfiles {
		return nil, ErrProfileLimit
	}

	p := &Profile{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: s.now().UTC(),
		Settings:  DefaultSettings(),
	}
	profiles[p.ID] = p
	if err := s.saveProfiles(ctx, profiles); err != nil {
		return nil, err
	}

	s.logger.Info("created profile", "id", p.ID, "name", p.Name)
	return p, nil
}

// DuplicateProfile deep-copies a source profile's settings into a new profile.
// The copy starts with zero messages used. An empty newName derives one from
// the source.
func (s *Store) DuplicateProfile(ctx context.Context, sourceID, newName string) (*Profile, error) {
	profiles, err := s.loadProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	source, ok := profiles[sourceID]
	if !ok {
		return nil, ErrNotFound
	}

	if newName == "" {
		newName = source.Name + " (copy)"
	}
	newName, err = normalizeName(newName)
	if err != nil {
		return nil, err
	}
	if len(profiles) >= MaxProfiles {
		return nil, ErrProfileLimit
	}

	settings, err := cloneSettings(source.Settings)
	if err != nil {
		return nil, err
	}
	settings.MessagesUsed = 0

	p := &Profile{
		ID:        uuid.New().String(),
		Name:      newName,
		CreatedAt: s.now().UTC(),
		Settings:  settings,
	}
	profiles[p.ID] = p
	if err := s.saveProfiles(ctx, profiles); err != nil {
		return nil, err
	}

	s.logger.Info("duplicated profile", "source", sourceID, "id", p.ID)
	return p, nil
}

// RenameProfile changes a profile's display name. The default profile keeps
// its name.
func (s *Store) RenameProfile(ctx context.Context, id, newName string) error {
	if id == DefaultProfileID {
		return ErrProtectedProfile
	}
	newName, err := normalizeName(newName)
	if err != nil {
		return err
	}

	profiles, err := s.loadProfiles(ctx)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}
	p, ok := profiles[id]
	if !ok {
		return ErrNotFound
	}
	p.Name = newName
	return s.saveProfiles(ctx, profiles)
}

// DeleteProfile removes a profile. The default profile can never be deleted.
// If the deleted profile was active, the pointer moves back to default.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	if id == DefaultProfileID {
		return ErrProtectedProfile
	}

	profiles, err := s.loadProfiles(ctx)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}
	if _, ok := profiles[id]; !ok {
		return ErrNotFound
	}
	delete(profiles, id)
	if err := s.saveProfiles(ctx, profiles); err != nil {
		return err
	}

	if s.ActiveProfileID(ctx) == id {
		if err := kvstore.SetJSON(ctx, s.kv, kvstore.AreaSync, docActive, DefaultProfileID); err != nil {
			s.logger.Warn("resetting active pointer after delete failed", "error", err)
		}
	}

	s.logger.Info("deleted profile", "id", id)
	return nil
}

// SetActiveProfile points the active pointer at an existing profile.
func (s *Store) SetActiveProfile(ctx context.Context, id string) error {
	profiles, err := s.loadProfiles(ctx)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}
	if _, ok := profiles[id]; !ok {
		return ErrNotFound
	}
	return kvstore.SetJSON(ctx, s.kv, kvstore.AreaSync, docActive, id)
}

// resolveActive picks the profile the active pointer refers to, falling back
// to the default profile when the pointer is stale.
func (s *Store) resolveActive(profiles map[string]*Profile, activeID string) (*Profile, error) {
	if len(profiles) == 0 {
		return nil, ErrNeedsMigration
	}
	if p, ok := profiles[activeID]; ok {
		return p, nil
	}
	if p, ok := profiles[DefaultProfileID]; ok {
		return p, nil
	}
	return nil, ErrNeedsMigration
}

// GetActiveSettings returns the active profile's settings. A stale active
// pointer falls back to the default profile; a storage read failure degrades
// to the default settings document; an empty installation reports
// ErrNeedsMigration so the caller can run MigrateLegacy.
func (s *Store) GetActiveSettings(ctx context.Context) (Settings, error) {
	profiles, err := s.loadProfiles(ctx)
	if err != nil {
		s.logger.Warn("reading profiles failed, serving defaults", "error", err)
		return DefaultSettings(), nil
	}
	p, err := s.resolveActive(profiles, s.ActiveProfileID(ctx))
	if err != nil {
		return Settings{}, err
	}
	return cloneSettings(p.Settings)
}

// UpdateActiveSettings merges a patch into the active profile's settings and
// persists the whole profile map. This is a read-then-write sequence with no
// isolation guarantee; a concurrent update may be lost.
func (s *Store) UpdateActiveSettings(ctx context.Context, patch SettingsPatch) (Settings, error) {
	profiles, err := s.loadProfiles(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("loading profiles: %w", err)
	}
	p, err := s.resolveActive(profiles, s.ActiveProfileID(ctx))
	if err != nil {
		return Settings{}, err
	}

	Merge(&p.Settings, patch)
	if err := s.saveProfiles(ctx, profiles); err != nil {
		return Settings{}, err
	}
	return cloneSettings(p.Settings)
}

// MigrateLegacy performs the one-time move from a flat pre-profile settings
// document to the profile map. Returns false without touching storage when
// profiles already exist. The existence check is repeated as late as possible
// before the write; with no CAS primitive this remains best-effort, not a
// hard guarantee.
func (s *Store) MigrateLegacy(ctx context.Context) (bool, error) {
	profiles, err := s.loadProfiles(ctx)
	if err != nil {
		return false, fmt.Errorf("loading profiles: %w", err)
	}
	if len(profiles) > 0 {
		return false, nil
	}

	settings := DefaultSettings()
	var legacy SettingsPatch
	err = kvstore.GetJSON(ctx, s.kv, kvstore.AreaSync, docLegacy, &legacy)
	if err == nil {
		Merge(&settings, legacy)
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		s.logger.Warn("reading legacy settings failed, migrating defaults", "error", err)
	}

	// Late re-check before the write to narrow the concurrent-migration window.
	profiles, err = s.loadProfiles(ctx)
	if err != nil {
		return false, fmt.Errorf("re-checking profiles: %w", err)
	}
	if len(profiles) > 0 {
		return false, nil
	}

	profiles[DefaultProfileID] = &Profile{
		ID:        DefaultProfileID,
		Name:      "Default",
		CreatedAt: s.now().UTC(),
		Settings:  settings,
	}
	if err := s.saveProfiles(ctx, profiles); err != nil {
		return false, err
	}
	if err := kvstore.SetJSON(ctx, s.kv, kvstore.AreaSync, docActive, DefaultProfileID); err != nil {
		s.logger.Warn("setting active pointer after migration failed", "error", err)
	}

	s.logger.Info("migrated legacy settings into default profile")
	return true, nil
}

// ApplyTierLimits writes the numeric limits for a tier into the active
// profile's settings so downstream surfaces never branch on tier themselves.
func (s *Store) ApplyTierLimits(ctx context.Context, tier Tier) error {
	limits := LimitsForTier(tier)
	_, err := s.UpdateActiveSettings(ctx, SettingsPatch{
		Tier:          &tier,
		MessagesLimit: &limits.MessagesLimit,
		Limits: &FeatureLimitsPatch{
			FAQRules:      &limits.FAQRules,
			Templates:     &limits.Templates,
			TimerMessages: &limits.TimerMessages,
		},
	})
	return err
}

// DrawWinners picks n distinct winners from the active profile's giveaway
// entries. With UniqueOnly set, repeat entries by the same user count once.
func (s *Store) DrawWinners(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: winner count must be positive", ErrLimitExceeded)
	}
	settings, err := s.GetActiveSettings(ctx)
	if err != nil {
		return nil, err
	}

	pool := make([]string, 0, len(settings.Giveaway.Entries))
	seen := map[string]bool{}
	for _, e := range settings.Giveaway.Entries {
		if settings.Giveaway.UniqueOnly && seen[e.User] {
			continue
		}
		seen[e.User] = true
		pool = append(pool, e.User)
	}

	if n > len(pool) {
		return nil, ErrLimitExceeded
	}

	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:n], nil
}

// cloneSettings deep-copies a settings document via JSON so callers never
// alias the stored slices.
func cloneSettings(s Settings) (Settings, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return Settings{}, fmt.Errorf("cloning settings: %w", err)
	}
	var out Settings
	if err := json.Unmarshal(data, &out); err != nil {
		return Settings{}, fmt.Errorf("cloning settings: %w", err)
	}
	return out, nil
}
