package state

import (
	"sync"

	"github.com/tradeview/settingsync/internal/models"
)

// MockStore provides an in-memory Store for testing. Snapshots are
// deep-copied on save and load so tests can simulate a process restart
// by constructing new components against the same store.
type MockStore struct {
	mu sync.Mutex

	deviceID  string
	queues    map[string][]models.Change
	conflicts map[string][]models.Conflict
	settings  map[string]map[string]models.SettingEntry

	// Error injection
	DeviceIDErr error
	QueueErr    error
	SettingErr  error
}

// NewMockStore creates an in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		queues:    make(map[string][]models.Change),
		conflicts: make(map[string][]models.Conflict),
		settings:  make(map[string]map[string]models.SettingEntry),
	}
}

// DeviceID returns the stored device identity.
func (m *MockStore) DeviceID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeviceIDErr != nil {
		return "", m.DeviceIDErr
	}
	if m.deviceID == "" {
		return "", ErrNotFound
	}
	return m.deviceID, nil
}

// SaveDeviceID stores the device identity.
func (m *MockStore) SaveDeviceID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deviceID = id
	return nil
}

// LoadQueue returns a copy of the queue snapshot.
func (m *MockStore) LoadQueue(userID string) ([]models.Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.QueueErr != nil {
		return nil, m.QueueErr
	}
	changes, ok := m.queues[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]models.Change(nil), changes...), nil
}

// SaveQueue replaces the queue snapshot.
func (m *MockStore) SaveQueue(userID string, changes []models.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.QueueErr != nil {
		return m.QueueErr
	}
	m.queues[userID] = append([]models.Change(nil), changes...)
	return nil
}

// LoadConflicts returns a copy of the conflict snapshot.
func (m *MockStore) LoadConflicts(userID string) ([]models.Conflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conflicts, ok := m.conflicts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]models.Conflict(nil), conflicts...), nil
}

// SaveConflicts replaces the conflict snapshot.
func (m *MockStore) SaveConflicts(userID string, conflicts []models.Conflict) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conflicts[userID] = append([]models.Conflict(nil), conflicts...)
	return nil
}

// LoadSettings returns all stored entries.
func (m *MockStore) LoadSettings(userID string) ([]models.SettingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.settings[userID]
	if !ok || len(entries) == 0 {
		return nil, ErrNotFound
	}
	out := make([]models.SettingEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	return out, nil
}

// SaveSetting stores one entry.
func (m *MockStore) SaveSetting(userID string, entry models.SettingEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SettingErr != nil {
		return m.SettingErr
	}
	if m.settings[userID] == nil {
		m.settings[userID] = make(map[string]models.SettingEntry)
	}
	m.settings[userID][settingKey(entry.SettingType, entry.SettingKey)] = entry
	return nil
}

// Reset removes all state for a user.
func (m *MockStore) Reset(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.queues, userID)
	delete(m.conflicts, userID)
	delete(m.settings, userID)
	return nil
}

// Close releases resources.
func (m *MockStore) Close() error {
	return nil
}
