// Package testutil provides shared fixtures for settingsync tests.
package testutil

import (
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/tradeview/settingsync/internal/events"
	"github.com/tradeview/settingsync/internal/models"
)

// NewTestLogger returns a quiet logger for tests.
func NewTestLogger() *events.Logger {
	return events.NewTestLogger(events.ErrorLevel, "text", io.Discard)
}

// Change builds a fully populated change fixture.
func Change(userID string, settingType models.SettingType, key string, oldValue, newValue interface{}, version int64) models.Change {
	return models.Change{
		ID:          uuid.NewString(),
		UserID:      userID,
		SettingType: settingType,
		SettingKey:  key,
		OldValue:    oldValue,
		NewValue:    newValue,
		Timestamp:   time.Now().UTC(),
		DeviceID:    "test-device",
		Version:     version,
	}
}

// Conflict builds a conflict fixture from two competing changes.
func Conflict(local, remote models.Change) models.Conflict {
	return models.Conflict{
		ID:           uuid.NewString(),
		LocalChange:  local,
		RemoteChange: remote,
		DetectedAt:   time.Now().UTC(),
	}
}
