package sync

import (
	"time"

	"github.com/tradeview/settingsync/internal/models"
)

// EventType defines sync notification types.
type EventType string

const (
	EventChangeQueued     EventType = "change_queued"
	EventSettingsUpdated  EventType = "settings_updated"
	EventConflictDetected EventType = "conflict_detected"
	EventConflictResolved EventType = "conflict_resolved"
	EventSyncStarted      EventType = "sync_started"
	EventSyncCompleted    EventType = "sync_completed"
	EventSyncFailed       EventType = "sync_failed"
	EventQueueCleared     EventType = "queue_cleared"
)

// Event is one notification published to the UI layer. Consumers
// re-render from these instead of polling the status snapshot.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Change    *models.Change
	Conflict  *models.Conflict
	Err       error
}
