package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tradeview/settingsync/internal/events"
	"github.com/tradeview/settingsync/internal/models"
)

// JSONStore implements file-based state storage. Each collection is a
// single JSON document replaced atomically (write temp, fsync, rename)
// so a crash mid-write cannot corrupt the previous snapshot.
type JSONStore struct {
	baseDir string
	logger  *events.Logger

	mu sync.RWMutex
}

// NewJSONStore creates a JSON-based state store.
func NewJSONStore(baseDir string, logger *events.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	return &JSONStore{
		baseDir: baseDir,
		logger:  logger.WithField("component", "json_state_store"),
	}, nil
}

// DeviceID reads the persisted device identity.
func (s *JSONStore) DeviceID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc struct {
		DeviceID string `json:"device_id"`
	}
	if err := s.readDoc(s.devicePath(), &doc); err != nil {
		return "", err
	}
	if doc.DeviceID == "" {
		return "", ErrCorrupt
	}
	return doc.DeviceID, nil
}

// SaveDeviceID persists the device identity.
func (s *JSONStore) SaveDeviceID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := struct {
		DeviceID string `json:"device_id"`
	}{DeviceID: id}
	return s.writeDoc(s.devicePath(), doc)
}

// LoadQueue reads the queue snapshot.
func (s *JSONStore) LoadQueue(userID string) ([]models.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var changes []models.Change
	if err := s.readDoc(s.userPath(userID, "queue.json"), &changes); err != nil {
		return nil, err
	}
	return changes, nil
}

// SaveQueue replaces the queue snapshot.
func (s *JSONStore) SaveQueue(userID string, changes []models.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if changes == nil {
		changes = []models.Change{}
	}
	return s.writeDoc(s.userPath(userID, "queue.json"), changes)
}

// LoadConflicts reads the conflict snapshot.
func (s *JSONStore) LoadConflicts(userID string) ([]models.Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conflicts []models.Conflict
	if err := s.readDoc(s.userPath(userID, "conflicts.json"), &conflicts); err != nil {
		return nil, err
	}
	return conflicts, nil
}

// SaveConflicts replaces the conflict snapshot.
func (s *JSONStore) SaveConflicts(userID string, conflicts []models.Conflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conflicts == nil {
		conflicts = []models.Conflict{}
	}
	return s.writeDoc(s.userPath(userID, "conflicts.json"), conflicts)
}

// LoadSettings reads all materialized entries.
func (s *JSONStore) LoadSettings(userID string) ([]models.SettingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.loadSettingsLocked(userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.SettingEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SettingType != out[j].SettingType {
			return out[i].SettingType < out[j].SettingType
		}
		return out[i].SettingKey < out[j].SettingKey
	})
	return out, nil
}

// SaveSetting persists one materialized entry via read-modify-write of
// the settings document.
func (s *JSONStore) SaveSetting(userID string, entry models.SettingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadSettingsLocked(userID)
	if err != nil && err != ErrNotFound {
		// A corrupt document is replaced rather than propagated; the
		// in-memory view stays authoritative for the session.
		s.logger.WithError(err).Warn("Rewriting unreadable settings document")
		entries = nil
	}
	if entries == nil {
		entries = make(map[string]models.SettingEntry)
	}

	entries[settingKey(entry.SettingType, entry.SettingKey)] = entry
	return s.writeDoc(s.userPath(userID, "settings.json"), entries)
}

// Reset removes all persisted state for a user.
func (s *JSONStore) Reset(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.WithField("user_id", userID).Info("Resetting persisted state")
	return os.RemoveAll(filepath.Join(s.baseDir, userID))
}

// Close releases resources.
func (s *JSONStore) Close() error {
	return nil
}

// Helper methods

func (s *JSONStore) loadSettingsLocked(userID string) (map[string]models.SettingEntry, error) {
	var entries map[string]models.SettingEntry
	if err := s.readDoc(s.userPath(userID, "settings.json"), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *JSONStore) devicePath() string {
	return filepath.Join(s.baseDir, "device.json")
}

func (s *JSONStore) userPath(userID, name string) string {
	return filepath.Join(s.baseDir, userID, name)
}

func (s *JSONStore) readDoc(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		s.logger.WithError(err).WithField("path", path).Error("State document corrupt")
		return ErrCorrupt
	}
	return nil
}

func (s *JSONStore) writeDoc(path string, doc interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if file, err := os.Open(tmpPath); err == nil {
		_ = file.Sync()
		_ = file.Close()
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}

func settingKey(settingType models.SettingType, key string) string {
	return string(settingType) + "/" + key
}
