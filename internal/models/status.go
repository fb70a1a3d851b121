package models

import "time"

// SettingEntry is the materialized value for one setting: the most
// recently applied change, local or remote, regardless of confirmation.
type SettingEntry struct {
	SettingType SettingType `json:"setting_type"`
	SettingKey  string      `json:"setting_key"`
	Value       interface{} `json:"value"`
	Version     int64       `json:"version"`
	LastUpdated time.Time   `json:"last_updated"`
}

// SyncStatus is a point-in-time snapshot of the engine's derived state.
// It is computed on read and never persisted.
type SyncStatus struct {
	Online         bool       `json:"online"`
	Syncing        bool       `json:"syncing"`
	LastSync       time.Time  `json:"last_sync"`
	PendingChanges int        `json:"pending_changes"`
	Conflicts      []Conflict `json:"conflicts"`
}
