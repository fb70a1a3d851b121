package state

import (
	"errors"

	"github.com/tradeview/settingsync/internal/models"
)

// Store persists the sync engine's durable collections: the device
// identity, the per-user change queue, the conflict set, and the
// materialized settings. Implementations must never leave a
// half-written value readable after a crash; whole-snapshot writes
// with an atomic swap satisfy this.
type Store interface {
	// DeviceID returns the persisted device identity.
	DeviceID() (string, error)

	// SaveDeviceID persists the device identity.
	SaveDeviceID(id string) error

	// LoadQueue returns the queued changes in insertion order.
	LoadQueue(userID string) ([]models.Change, error)

	// SaveQueue replaces the persisted queue snapshot.
	SaveQueue(userID string, changes []models.Change) error

	// LoadConflicts returns the unresolved conflicts.
	LoadConflicts(userID string) ([]models.Conflict, error)

	// SaveConflicts replaces the persisted conflict snapshot.
	SaveConflicts(userID string, conflicts []models.Conflict) error

	// LoadSettings returns every materialized setting entry.
	LoadSettings(userID string) ([]models.SettingEntry, error)

	// SaveSetting persists one materialized entry.
	SaveSetting(userID string, entry models.SettingEntry) error

	// Reset removes all persisted state for a user.
	Reset(userID string) error

	// Close releases resources.
	Close() error
}

// Errors
var (
	ErrNotFound = errors.New("state not found")
	ErrCorrupt  = errors.New("state is corrupt")
)
