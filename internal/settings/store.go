// Package settings holds the materialized read model: the current,
// locally visible value for each setting, kept fresh by optimistic
// local writes and confirmed remote updates.
package settings

import (
	"errors"
	"sync"

	"github.com/tradeview/settingsync/internal/events"
	"github.com/tradeview/settingsync/internal/models"
	"github.com/tradeview/settingsync/internal/state"
)

// Store is the materialized settings cache. It is a deliberately dumb
// last-write-wins store: it does not arbitrate freshness between
// competing versions. Ordering discipline lives in the orchestrator.
type Store struct {
	userID string
	state  state.Store
	logger *events.Logger

	mu      sync.RWMutex
	entries map[string]models.SettingEntry
}

// NewStore creates the settings store, loading any persisted entries.
// Unreadable persisted state starts the session empty rather than
// failing.
func NewStore(userID string, st state.Store, logger *events.Logger) *Store {
	s := &Store{
		userID:  userID,
		state:   st,
		logger:  logger.WithField("component", "settings_store"),
		entries: make(map[string]models.SettingEntry),
	}

	persisted, err := st.LoadSettings(userID)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		s.logger.WithError(err).Warn("Starting with empty settings; persisted state unreadable")
	}
	for _, entry := range persisted {
		s.entries[key(entry.SettingType, entry.SettingKey)] = entry
	}

	return s
}

// Get returns the materialized value, or def when absent. It never
// fails.
func (s *Store) Get(settingType models.SettingType, settingKey string, def interface{}) interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, ok := s.entries[key(settingType, settingKey)]; ok {
		return entry.Value
	}
	return def
}

// Entry returns the full materialized entry for a setting.
func (s *Store) Entry(settingType models.SettingType, settingKey string) (models.SettingEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key(settingType, settingKey)]
	return entry, ok
}

// Apply unconditionally overwrites the entry for the change's key with
// its new value, version, and timestamp. Applying the same change twice
// yields identical stored state.
func (s *Store) Apply(change models.Change) {
	entry := models.SettingEntry{
		SettingType: change.SettingType,
		SettingKey:  change.SettingKey,
		Value:       change.NewValue,
		Version:     change.Version,
		LastUpdated: change.Timestamp,
	}

	s.mu.Lock()
	s.entries[key(change.SettingType, change.SettingKey)] = entry
	s.mu.Unlock()

	if err := s.state.SaveSetting(s.userID, entry); err != nil {
		// The in-memory view stays authoritative for the session; the
		// next successful write re-persists the document.
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"setting_type": change.SettingType,
			"setting_key":  change.SettingKey,
		}).Warn("Failed to persist setting")
	}
}

// All returns a snapshot of every materialized entry.
func (s *Store) All() []models.SettingEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SettingEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry)
	}
	return out
}

func key(settingType models.SettingType, settingKey string) string {
	return string(settingType) + "/" + settingKey
}
