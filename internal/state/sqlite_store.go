package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tradeview/settingsync/internal/events"
	"github.com/tradeview/settingsync/internal/models"
)

// SQLiteStore implements SQLite-based state storage. Queue and conflict
// snapshots are replaced transactionally, which gives the same
// no-partial-write guarantee as the JSON store's atomic rename.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore creates a SQLite state store.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_state_store"),
	}

	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates tables and indexes.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS device_identity (
        id INTEGER PRIMARY KEY CHECK (id = 1),
        device_id TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS change_queue (
        user_id TEXT NOT NULL,
        position INTEGER NOT NULL,
        payload TEXT NOT NULL,
        PRIMARY KEY (user_id, position)
    );

    CREATE TABLE IF NOT EXISTS conflicts (
        user_id TEXT NOT NULL,
        conflict_id TEXT NOT NULL,
        payload TEXT NOT NULL,
        detected_at TIMESTAMP NOT NULL,
        PRIMARY KEY (user_id, conflict_id)
    );

    CREATE TABLE IF NOT EXISTS settings (
        user_id TEXT NOT NULL,
        setting_type TEXT NOT NULL,
        setting_key TEXT NOT NULL,
        value TEXT NOT NULL,
        version INTEGER NOT NULL,
        last_updated TIMESTAMP NOT NULL,
        PRIMARY KEY (user_id, setting_type, setting_key)
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// DeviceID retrieves the device identity.
func (s *SQLiteStore) DeviceID() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT device_id FROM device_identity WHERE id = 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query device identity: %w", err)
	}
	return id, nil
}

// SaveDeviceID persists the device identity.
func (s *SQLiteStore) SaveDeviceID(id string) error {
	_, err := s.db.Exec(`
        INSERT INTO device_identity (id, device_id) VALUES (1, ?)
        ON CONFLICT(id) DO UPDATE SET device_id = excluded.device_id
    `, id)
	if err != nil {
		return fmt.Errorf("save device identity: %w", err)
	}
	return nil
}

// LoadQueue returns queued changes in insertion order.
func (s *SQLiteStore) LoadQueue(userID string) ([]models.Change, error) {
	rows, err := s.db.Query(`
        SELECT payload FROM change_queue
        WHERE user_id = ?
        ORDER BY position
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	var changes []models.Change
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan queue row: %w", err)
		}
		var change models.Change
		if err := json.Unmarshal([]byte(payload), &change); err != nil {
			s.logger.WithError(err).Error("Queue row corrupt")
			return nil, ErrCorrupt
		}
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue: %w", err)
	}
	if changes == nil {
		return nil, ErrNotFound
	}
	return changes, nil
}

// SaveQueue replaces the persisted queue snapshot in one transaction.
func (s *SQLiteStore) SaveQueue(userID string, changes []models.Change) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM change_queue WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}

	for i, change := range changes {
		payload, err := json.Marshal(change)
		if err != nil {
			return fmt.Errorf("marshal change %s: %w", change.ID, err)
		}
		if _, err := tx.Exec(`
            INSERT INTO change_queue (user_id, position, payload) VALUES (?, ?, ?)
        `, userID, i, string(payload)); err != nil {
			return fmt.Errorf("insert change %s: %w", change.ID, err)
		}
	}

	return tx.Commit()
}

// LoadConflicts returns the unresolved conflicts.
func (s *SQLiteStore) LoadConflicts(userID string) ([]models.Conflict, error) {
	rows, err := s.db.Query(`
        SELECT payload FROM conflicts
        WHERE user_id = ?
        ORDER BY detected_at
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []models.Conflict
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan conflict row: %w", err)
		}
		var conflict models.Conflict
		if err := json.Unmarshal([]byte(payload), &conflict); err != nil {
			s.logger.WithError(err).Error("Conflict row corrupt")
			return nil, ErrCorrupt
		}
		conflicts = append(conflicts, conflict)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conflicts: %w", err)
	}
	if conflicts == nil {
		return nil, ErrNotFound
	}
	return conflicts, nil
}

// SaveConflicts replaces the persisted conflict snapshot.
func (s *SQLiteStore) SaveConflicts(userID string, conflicts []models.Conflict) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conflicts WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear conflicts: %w", err)
	}

	for _, conflict := range conflicts {
		payload, err := json.Marshal(conflict)
		if err != nil {
			return fmt.Errorf("marshal conflict %s: %w", conflict.ID, err)
		}
		if _, err := tx.Exec(`
            INSERT INTO conflicts (user_id, conflict_id, payload, detected_at)
            VALUES (?, ?, ?, ?)
        `, userID, conflict.ID, string(payload), conflict.DetectedAt); err != nil {
			return fmt.Errorf("insert conflict %s: %w", conflict.ID, err)
		}
	}

	return tx.Commit()
}

// LoadSettings returns every materialized entry.
func (s *SQLiteStore) LoadSettings(userID string) ([]models.SettingEntry, error) {
	rows, err := s.db.Query(`
        SELECT setting_type, setting_key, value, version, last_updated
        FROM settings
        WHERE user_id = ?
        ORDER BY setting_type, setting_key
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	var entries []models.SettingEntry
	for rows.Next() {
		var entry models.SettingEntry
		var settingType, value string
		var lastUpdated time.Time
		if err := rows.Scan(&settingType, &entry.SettingKey, &value, &entry.Version, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scan setting row: %w", err)
		}
		entry.SettingType = models.SettingType(settingType)
		entry.LastUpdated = lastUpdated
		if err := json.Unmarshal([]byte(value), &entry.Value); err != nil {
			s.logger.WithError(err).Error("Setting value corrupt")
			return nil, ErrCorrupt
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	if entries == nil {
		return nil, ErrNotFound
	}
	return entries, nil
}

// SaveSetting upserts one materialized entry.
func (s *SQLiteStore) SaveSetting(userID string, entry models.SettingEntry) error {
	value, err := json.Marshal(entry.Value)
	if err != nil {
		return fmt.Errorf("marshal setting value: %w", err)
	}

	_, err = s.db.Exec(`
        INSERT INTO settings (user_id, setting_type, setting_key, value, version, last_updated)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(user_id, setting_type, setting_key) DO UPDATE SET
            value = excluded.value,
            version = excluded.version,
            last_updated = excluded.last_updated
    `, userID, string(entry.SettingType), entry.SettingKey, string(value), entry.Version, entry.LastUpdated)
	if err != nil {
		return fmt.Errorf("save setting: %w", err)
	}
	return nil
}

// Reset removes all persisted state for a user.
func (s *SQLiteStore) Reset(userID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"change_queue", "conflicts", "settings"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	return tx.Commit()
}

// Close releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
