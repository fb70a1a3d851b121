package settings_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeview/settingsync/internal/models"
	"github.com/tradeview/settingsync/internal/settings"
	"github.com/tradeview/settingsync/internal/state"
	"github.com/tradeview/settingsync/test/testutil"
)

func TestGetDefault(t *testing.T) {
	store := settings.NewStore("u1", state.NewMockStore(), testutil.NewTestLogger())

	assert.Equal(t, "light", store.Get(models.SettingProfile, "theme", "light"))
}

func TestApplyIdempotent(t *testing.T) {
	store := settings.NewStore("u1", state.NewMockStore(), testutil.NewTestLogger())
	change := testutil.Change("u1", models.SettingProfile, "theme", "light", "dark", 5)

	store.Apply(change)
	first, ok := store.Entry(models.SettingProfile, "theme")
	require.True(t, ok)

	// Applying the same change twice yields identical stored state.
	store.Apply(change)
	second, ok := store.Entry(models.SettingProfile, "theme")
	require.True(t, ok)
	assert.Equal(t, first, second)
	assert.Equal(t, "dark", second.Value)
	assert.Equal(t, int64(5), second.Version)
}

func TestApplyDoesNotArbitrateFreshness(t *testing.T) {
	store := settings.NewStore("u1", state.NewMockStore(), testutil.NewTestLogger())

	newer := testutil.Change("u1", models.SettingProfile, "theme", "light", "dark", 9)
	older := testutil.Change("u1", models.SettingProfile, "theme", "dark", "sepia", 4)

	store.Apply(newer)
	store.Apply(older)

	// Last write wins regardless of version; the orchestrator owns
	// ordering discipline.
	entry, ok := store.Entry(models.SettingProfile, "theme")
	require.True(t, ok)
	assert.Equal(t, "sepia", entry.Value)
	assert.Equal(t, int64(4), entry.Version)
}

func TestEntriesSurviveRestart(t *testing.T) {
	backing := state.NewMockStore()

	store := settings.NewStore("u1", backing, testutil.NewTestLogger())
	store.Apply(testutil.Change("u1", models.SettingNotifications, "email_alerts", false, true, 2))

	reloaded := settings.NewStore("u1", backing, testutil.NewTestLogger())
	assert.Equal(t, true, reloaded.Get(models.SettingNotifications, "email_alerts", false))
	assert.Len(t, reloaded.All(), 1)
}

func TestPersistFailureKeepsMemoryAuthoritative(t *testing.T) {
	backing := state.NewMockStore()
	backing.SettingErr = assert.AnError

	store := settings.NewStore("u1", backing, testutil.NewTestLogger())
	store.Apply(testutil.Change("u1", models.SettingSecurity, "2fa", false, true, 3))

	assert.Equal(t, true, store.Get(models.SettingSecurity, "2fa", false))
}
