// Package device owns the per-installation identity used to attribute
// changes to their originating device.
package device

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/tradeview/settingsync/internal/events"
	"github.com/tradeview/settingsync/internal/state"
)

// Manager assigns and persists the device identifier.
type Manager struct {
	store  state.Store
	logger *events.Logger

	mu sync.Mutex
	id string
}

// NewManager creates a device identity manager.
func NewManager(store state.Store, logger *events.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger.WithField("component", "device_identity"),
	}
}

// DeviceID returns the persisted device identifier, generating and
// persisting a fresh one when none is found. A corrupt or unreadable
// persisted value is treated as "no identity yet"; the resulting
// identity change only affects attribution, never reconciliation.
func (m *Manager) DeviceID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.id != "" {
		return m.id
	}

	id, err := m.store.DeviceID()
	if err == nil {
		m.id = id
		return id
	}
	if !errors.Is(err, state.ErrNotFound) {
		m.logger.WithError(err).Warn("Discarding unreadable device identity")
	}

	id = uuid.NewString()
	if err := m.store.SaveDeviceID(id); err != nil {
		// In-memory identity stays authoritative for the session.
		m.logger.WithError(err).Warn("Failed to persist device identity")
	} else {
		m.logger.WithField("device_id", id).Info("Generated device identity")
	}

	m.id = id
	return id
}
