package models

import (
	"fmt"
	"strings"
	"time"
)

// SettingType enumerates the setting categories the platform exposes.
type SettingType string

const (
	SettingProfile       SettingType = "profile"
	SettingSecurity      SettingType = "security"
	SettingNotifications SettingType = "notifications"
	SettingPrivacy       SettingType = "privacy"
)

// Valid reports whether the setting type is a known category.
func (t SettingType) Valid() bool {
	switch t {
	case SettingProfile, SettingSecurity, SettingNotifications, SettingPrivacy:
		return true
	}
	return false
}

// Change is a single proposed mutation of one setting. It carries the
// version and originating device so competing edits can be reconciled.
type Change struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	SettingType SettingType `json:"setting_type"`
	SettingKey  string      `json:"setting_key"`
	OldValue    interface{} `json:"old_value"`
	NewValue    interface{} `json:"new_value"`
	Timestamp   time.Time   `json:"timestamp"`
	DeviceID    string      `json:"device_id"`
	Version     int64       `json:"version"`
}

// Matches reports whether the change targets the given setting.
func (c Change) Matches(settingType SettingType, settingKey string) bool {
	return c.SettingType == settingType && c.SettingKey == settingKey
}

// Validate checks the fields a change must carry before it can be
// queued or applied.
func (c Change) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("change ID is required")
	}
	if !c.SettingType.Valid() {
		return fmt.Errorf("unknown setting type: %q", c.SettingType)
	}
	if strings.TrimSpace(c.SettingKey) == "" {
		return fmt.Errorf("setting key is required")
	}
	if c.Version <= 0 {
		return fmt.Errorf("version must be positive")
	}
	return nil
}

// ChangeRequest carries the caller-supplied fields of a change. The
// orchestrator fills in ID, Timestamp, Version, and DeviceID when the
// request enters the queue.
type ChangeRequest struct {
	UserID      string      `json:"user_id"`
	SettingType SettingType `json:"setting_type"`
	SettingKey  string      `json:"setting_key"`
	OldValue    interface{} `json:"old_value"`
	NewValue    interface{} `json:"new_value"`
}
