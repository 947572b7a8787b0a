// ABOUTME: Tests for the profile store
// ABOUTME: Covers CRUD, protection of the default profile, migration, and winner drawing

package profile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatpilot-app/chatpilot/internal/kvstore"
)

func newTestStore(t *testing.T) (*Store, *kvstore.MemStore) {
	t.Helper()
	kv := kvstore.NewMemStore()
	return NewStore(kv), kv
}

// newMigratedStore returns a store with the default profile already in place.
func newMigratedStore(t *testing.T) (*Store, *kvstore.MemStore) {
	t.Helper()
	s, kv := newTestStore(t)
	migrated, err := s.MigrateLegacy(context.Background())
	require.NoError(t, err)
	require.True(t, migrated)
	return s, kv
}

func TestMigrateLegacy_FreshInstall(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	migrated, err := s.MigrateLegacy(ctx)
	require.NoError(t, err)
	assert.True(t, migrated)

	infos := s.ListProfiles(ctx)
	require.Len(t, infos, 1)
	assert.Equal(t, DefaultProfileID, infos[0].ID)
	assert.Equal(t, "Default", infos[0].Name)
	assert.True(t, infos[0].IsActive)

	settings, err := s.GetActiveSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)
}

func TestMigrateLegacy_MergesLegacyDocument(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()

	legacy := []byte(`{"tier":"pro","welcome":{"enabled":true,"message":"hi there"},"faq":{"rules":[{"trigger":"hours","response":"9-5"}]}}`)
	require.NoError(t, kv.Set(ctx, kvstore.AreaSync, "settings", legacy))

	migrated, err := s.MigrateLegacy(ctx)
	require.NoError(t, err)
	require.True(t, migrated)

	settings, err := s.GetActiveSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, TierPro, settings.Tier)
	assert.True(t, settings.Welcome.Enabled)
	assert.Equal(t, "hi there", settings.Welcome.Message)
	require.Len(t, settings.FAQ.Rules, 1)
	assert.Equal(t, "hours", settings.FAQ.Rules[0].Trigger)
	// Fields absent from the legacy document keep their defaults.
	assert.True(t, settings.MasterEnabled)
}

func TestMigrateLegacy_Idempotent(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	// Customize the default profile, then re-run migration.
	_, err := s.UpdateActiveSettings(ctx, SettingsPatch{MessagesUsed: ptr(9)})
	require.NoError(t, err)

	migrated, err := s.MigrateLegacy(ctx)
	require.NoError(t, err)
	assert.False(t, migrated)

	settings, err := s.GetActiveSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, settings.MessagesUsed, "second migration must not clobber existing profiles")
}

func TestGetActiveSettings_NeedsMigration(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetActiveSettings(context.Background())
	assert.ErrorIs(t, err, ErrNeedsMigration)
}

func TestGetActiveSettings_ReadFailureServesDefaults(t *testing.T) {
	s, kv := newMigratedStore(t)
	kv.GetErr = errors.New("disk exploded")

	settings, err := s.GetActiveSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)
}

func TestCreateProfile(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	p, err := s.CreateProfile(ctx, "  Weekend Stream  ")
	require.NoError(t, err)
	assert.Equal(t, "Weekend Stream", p.Name)
	assert.NotEqual(t, DefaultProfileID, p.ID)
	assert.Equal(t, DefaultSettings(), p.Settings)

	infos := s.ListProfiles(ctx)
	require.Len(t, infos, 2)
	// New profile is not active until selected.
	assert.False(t, infos[1].IsActive)
}

func TestCreateProfile_InvalidNames(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := s.CreateProfile(ctx, name)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
}

func TestCreateProfile_TruncatesLongNames(t *testing.T) {
	s, _ := newMigratedStore(t)

	p, err := s.CreateProfile(context.Background(), strings.Repeat("x", 80))
	require.NoError(t, err)
	assert.Len(t, []rune(p.Name), 50)
}

func TestCreateProfile_LimitReached(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	for i := 1; i < MaxProfiles; i++ {
		_, err := s.CreateProfile(ctx, "profile "+strings.Repeat("i", i))
		require.NoError(t, err)
	}

	_, err := s.CreateProfile(ctx, "one too many")
	assert.ErrorIs(t, err, ErrProfileLimit)
}

func TestListProfiles_OrderedByCreation(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	later, err := s.CreateProfile(ctx, "later")
	require.NoError(t, err)
	s.now = func() time.Time { return base }
	earlier, err := s.CreateProfile(ctx, "earlier")
	require.NoError(t, err)

	infos := s.ListProfiles(ctx)
	require.Len(t, infos, 3)
	assert.Equal(t, DefaultProfileID, infos[0].ID)
	assert.Equal(t, earlier.ID, infos[1].ID)
	assert.Equal(t, later.ID, infos[2].ID)
}

func TestDuplicateProfile(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	_, err := s.UpdateActiveSettings(ctx, SettingsPatch{
		MessagesUsed: ptr(42),
		Tier:         ptr(TierPro),
		FAQ:          &FAQPatch{Rules: &[]FAQRule{{Trigger: "a", Response: "b"}}},
	})
	require.NoError(t, err)

	dup, err := s.DuplicateProfile(ctx, DefaultProfileID, "")
	require.NoError(t, err)

	assert.Equal(t, "Default (copy)", dup.Name)
	assert.Equal(t, 0, dup.Settings.MessagesUsed, "usage counter resets in the copy")
	assert.Equal(t, TierPro, dup.Settings.Tier)
	assert.Equal(t, []FAQRule{{Trigger: "a", Response: "b"}}, dup.Settings.FAQ.Rules)
}

func TestDuplicateProfile_SourceMissing(t *testing.T) {
	s, _ := newMigratedStore(t)

	_, err := s.DuplicateProfile(context.Background(), "no-such-id", "copy")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenameProfile(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	p, err := s.CreateProfile(ctx, "old name")
	require.NoError(t, err)

	require.NoError(t, s.RenameProfile(ctx, p.ID, "new name"))

	infos := s.ListProfiles(ctx)
	assert.Equal(t, "new name", infos[1].Name)
}

func TestRenameProfile_DefaultProtected(t *testing.T) {
	s, _ := newMigratedStore(t)

	err := s.RenameProfile(context.Background(), DefaultProfileID, "renamed")
	assert.ErrorIs(t, err, ErrProtectedProfile)
}

func TestDeleteProfile(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	p, err := s.CreateProfile(ctx, "disposable")
	require.NoError(t, err)
	require.NoError(t, s.SetActiveProfile(ctx, p.ID))

	require.NoError(t, s.DeleteProfile(ctx, p.ID))

	// Deleting the active profile moves the pointer back to default.
	assert.Equal(t, DefaultProfileID, s.ActiveProfileID(ctx))
	assert.Len(t, s.ListProfiles(ctx), 1)
}

func TestDeleteProfile_DefaultProtected(t *testing.T) {
	s, _ := newMigratedStore(t)

	err := s.DeleteProfile(context.Background(), DefaultProfileID)
	assert.ErrorIs(t, err, ErrProtectedProfile)
}

func TestSetActiveProfile_Missing(t *testing.T) {
	s, _ := newMigratedStore(t)

	err := s.SetActiveProfile(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetActiveSettings_StalePointerFallsBack(t *testing.T) {
	s, kv := newMigratedStore(t)
	ctx := context.Background()

	_, err := s.UpdateActiveSettings(ctx, SettingsPatch{ReferralBonus: ptr(3)})
	require.NoError(t, err)

	// Point the active pointer at a profile that no longer exists.
	require.NoError(t, kv.Set(ctx, kvstore.AreaSync, "activeProfile", []byte(`"deleted-id"`)))

	settings, err := s.GetActiveSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, settings.ReferralBonus, "stale pointer resolves to the default profile")
}

func TestUpdateActiveSettings_TargetsActiveProfile(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	p, err := s.CreateProfile(ctx, "second")
	require.NoError(t, err)
	require.NoError(t, s.SetActiveProfile(ctx, p.ID))

	updated, err := s.UpdateActiveSettings(ctx, SettingsPatch{Page: &PagePatch{Theme: ptr("dark")}})
	require.NoError(t, err)
	assert.Equal(t, "dark", updated.Page.Theme)

	// The default profile is untouched.
	require.NoError(t, s.SetActiveProfile(ctx, DefaultProfileID))
	settings, err := s.GetActiveSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "system", settings.Page.Theme)
}

func TestUpdateActiveSettings_ReadFailurePropagates(t *testing.T) {
	s, kv := newMigratedStore(t)
	kv.GetErr = errors.New("disk exploded")

	// Writes must not proceed from a failed read: that would clobber the
	// document with defaults.
	_, err := s.UpdateActiveSettings(context.Background(), SettingsPatch{ReferralBonus: ptr(1)})
	assert.Error(t, err)
}

// TestSaveProfiles_LostUpdate documents the substrate's last-writer-wins
// behavior: two writers working from the same snapshot do not merge, the
// second write silently discards the first.
func TestSaveProfiles_LostUpdate(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	// Both writers read the same snapshot before either writes.
	snapshotA, err := s.loadProfiles(ctx)
	require.NoError(t, err)
	snapshotB, err := s.loadProfiles(ctx)
	require.NoError(t, err)

	snapshotA[DefaultProfileID].Settings.ReferralBonus = 1
	require.NoError(t, s.saveProfiles(ctx, snapshotA))

	snapshotB[DefaultProfileID].Settings.MessagesUsed = 7
	require.NoError(t, s.saveProfiles(ctx, snapshotB))

	settings, err := s.GetActiveSettings(ctx)
	require.NoError(t, err)
	// The second whole-document write wins; the first update is lost.
	assert.Equal(t, 7, settings.MessagesUsed)
	assert.Equal(t, 0, settings.ReferralBonus)
}

func TestApplyTierLimits(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	require.NoError(t, s.ApplyTierLimits(ctx, TierBusiness))

	settings, err := s.GetActiveSettings(ctx)
	require.NoError(t, err)
	want := LimitsForTier(TierBusiness)
	assert.Equal(t, TierBusiness, settings.Tier)
	assert.Equal(t, want.MessagesLimit, settings.MessagesLimit)
	assert.Equal(t, want.FeatureLimits, settings.Limits)
}

func TestDrawWinners(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	entries := []GiveawayEntry{
		{User: "alice"}, {User: "bob"}, {User: "carol"}, {User: "alice"},
	}
	_, err := s.UpdateActiveSettings(ctx, SettingsPatch{
		Giveaway: &GiveawayPatch{Entries: &entries, UniqueOnly: ptr(true)},
	})
	require.NoError(t, err)

	winners, err := s.DrawWinners(ctx, 3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, winners)

	// Four winners exceed the deduplicated pool of three.
	_, err = s.DrawWinners(ctx, 4)
	assert.ErrorIs(t, err, ErrLimitExceeded)

	_, err = s.DrawWinners(ctx, 0)
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestDrawWinners_RepeatEntriesCountWhenNotUnique(t *testing.T) {
	s, _ := newMigratedStore(t)
	ctx := context.Background()

	entries := []GiveawayEntry{{User: "alice"}, {User: "alice"}}
	_, err := s.UpdateActiveSettings(ctx, SettingsPatch{
		Giveaway: &GiveawayPatch{Entries: &entries, UniqueOnly: ptr(false)},
	})
	require.NoError(t, err)

	winners, err := s.DrawWinners(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "alice"}, winners)
}
