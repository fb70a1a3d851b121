package models

import "time"

// Conflict is a pair of competing changes for the same setting key with
// mismatched versions. It exists only while unresolved; resolution
// replaces it with a follow-up change.
type Conflict struct {
	ID            string      `json:"id"`
	LocalChange   Change      `json:"local_change"`
	RemoteChange  Change      `json:"remote_change"`
	ResolvedValue interface{} `json:"resolved_value,omitempty"`
	DetectedAt    time.Time   `json:"detected_at"`
}

// NextVersion returns the version a resolving change must carry:
// one past the highest of the two competing versions.
func (c Conflict) NextVersion() int64 {
	v := c.LocalChange.Version
	if c.RemoteChange.Version > v {
		v = c.RemoteChange.Version
	}
	return v + 1
}

// SettingType returns the setting category both sides contend over.
func (c Conflict) SettingType() SettingType {
	return c.LocalChange.SettingType
}

// SettingKey returns the setting key both sides contend over.
func (c Conflict) SettingKey() string {
	return c.LocalChange.SettingKey
}
