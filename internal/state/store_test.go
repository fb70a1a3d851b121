package state_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeview/settingsync/internal/models"
	"github.com/tradeview/settingsync/internal/state"
	"github.com/tradeview/settingsync/test/testutil"
)

// runStoreTests exercises the Store contract against any implementation.
func runStoreTests(t *testing.T, newStore func(t *testing.T) state.Store) {
	t.Run("device identity round trip", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		_, err := store.DeviceID()
		assert.ErrorIs(t, err, state.ErrNotFound)

		require.NoError(t, store.SaveDeviceID("device-1"))

		id, err := store.DeviceID()
		require.NoError(t, err)
		assert.Equal(t, "device-1", id)
	})

	t.Run("queue snapshot round trip", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		_, err := store.LoadQueue("u1")
		assert.ErrorIs(t, err, state.ErrNotFound)

		changes := []models.Change{
			testutil.Change("u1", models.SettingProfile, "theme", "light", "dark", 1),
			testutil.Change("u1", models.SettingPrivacy, "share_data", true, false, 2),
		}
		require.NoError(t, store.SaveQueue("u1", changes))

		loaded, err := store.LoadQueue("u1")
		require.NoError(t, err)
		require.Len(t, loaded, 2)
		// Insertion order survives persistence.
		assert.Equal(t, "theme", loaded[0].SettingKey)
		assert.Equal(t, "share_data", loaded[1].SettingKey)
		assert.Equal(t, changes[0].ID, loaded[0].ID)
		assert.Equal(t, int64(2), loaded[1].Version)
	})

	t.Run("conflict snapshot round trip", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		conflict := models.Conflict{
			ID:           "c1",
			LocalChange:  testutil.Change("u1", models.SettingProfile, "email", "a@x", "b@x", 10),
			RemoteChange: testutil.Change("u1", models.SettingProfile, "email", "a@x", "c@x", 11),
			DetectedAt:   time.Now().UTC(),
		}
		require.NoError(t, store.SaveConflicts("u1", []models.Conflict{conflict}))

		loaded, err := store.LoadConflicts("u1")
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, "c1", loaded[0].ID)
		assert.Equal(t, int64(11), loaded[0].RemoteChange.Version)
	})

	t.Run("setting upsert", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		entry := models.SettingEntry{
			SettingType: models.SettingNotifications,
			SettingKey:  "email_alerts",
			Value:       true,
			Version:     3,
			LastUpdated: time.Now().UTC(),
		}
		require.NoError(t, store.SaveSetting("u1", entry))

		entry.Value = false
		entry.Version = 4
		require.NoError(t, store.SaveSetting("u1", entry))

		loaded, err := store.LoadSettings("u1")
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, false, loaded[0].Value)
		assert.Equal(t, int64(4), loaded[0].Version)
	})

	t.Run("reset clears user state", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		require.NoError(t, store.SaveQueue("u1", []models.Change{
			testutil.Change("u1", models.SettingProfile, "theme", "light", "dark", 1),
		}))
		require.NoError(t, store.Reset("u1"))

		_, err := store.LoadQueue("u1")
		assert.ErrorIs(t, err, state.ErrNotFound)
	})
}

func TestJSONStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) state.Store {
		store, err := state.NewJSONStore(t.TempDir(), testutil.NewTestLogger())
		require.NoError(t, err)
		return store
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) state.Store {
		store, err := state.NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"), testutil.NewTestLogger())
		require.NoError(t, err)
		return store
	})
}

func TestMockStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) state.Store {
		return state.NewMockStore()
	})
}

func TestJSONStoreCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	store, err := state.NewJSONStore(dir, testutil.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "u1"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "u1", "queue.json"), []byte("{not json"), 0600))

	_, err = store.LoadQueue("u1")
	assert.ErrorIs(t, err, state.ErrCorrupt)
}

func TestJSONStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	logger := testutil.NewTestLogger()

	store, err := state.NewJSONStore(dir, logger)
	require.NoError(t, err)
	require.NoError(t, store.SaveQueue("u1", []models.Change{
		testutil.Change("u1", models.SettingSecurity, "2fa", false, true, 7),
	}))
	require.NoError(t, store.Close())

	reopened, err := state.NewJSONStore(dir, logger)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadQueue("u1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "2fa", loaded[0].SettingKey)
}
