package device_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeview/settingsync/internal/device"
	"github.com/tradeview/settingsync/internal/state"
	"github.com/tradeview/settingsync/test/testutil"
)

func TestDeviceIDStable(t *testing.T) {
	store := state.NewMockStore()
	mgr := device.NewManager(store, testutil.NewTestLogger())

	first := mgr.DeviceID()
	require.NotEmpty(t, first)
	assert.Equal(t, first, mgr.DeviceID())

	// A new manager against the same store sees the same identity.
	again := device.NewManager(store, testutil.NewTestLogger())
	assert.Equal(t, first, again.DeviceID())
}

func TestDeviceIDRegeneratedOnCorruption(t *testing.T) {
	store := state.NewMockStore()

	first := device.NewManager(store, testutil.NewTestLogger()).DeviceID()
	require.NotEmpty(t, first)

	// An unreadable persisted identity yields a fresh one, not an error.
	store.DeviceIDErr = errors.New("checksum mismatch")
	second := device.NewManager(store, testutil.NewTestLogger()).DeviceID()
	require.NotEmpty(t, second)
	assert.NotEqual(t, first, second)
}

func TestDeviceIDPersistFailureNonFatal(t *testing.T) {
	store := state.NewMockStore()
	store.DeviceIDErr = state.ErrNotFound

	mgr := device.NewManager(store, testutil.NewTestLogger())
	id := mgr.DeviceID()
	require.NotEmpty(t, id)
	// The session keeps the in-memory identity even if persistence failed.
	assert.Equal(t, id, mgr.DeviceID())
}
