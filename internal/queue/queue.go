// Package queue holds the durable, ordered list of changes awaiting
// confirmation by the settings authority.
package queue

import (
	"errors"
	"sync"

	"github.com/tradeview/settingsync/internal/events"
	"github.com/tradeview/settingsync/internal/models"
	"github.com/tradeview/settingsync/internal/state"
)

// Queue is the change queue. Every successful mutation persists a whole
// snapshot, so a crash between operations cannot corrupt previously
// queued entries.
type Queue struct {
	userID string
	state  state.Store
	logger *events.Logger

	mu      sync.Mutex
	changes []models.Change
}

// New creates the queue, loading any persisted snapshot. Unreadable
// persisted state starts the session empty rather than failing.
func New(userID string, st state.Store, logger *events.Logger) *Queue {
	q := &Queue{
		userID: userID,
		state:  st,
		logger: logger.WithField("component", "change_queue"),
	}

	persisted, err := st.LoadQueue(userID)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		q.logger.WithError(err).Warn("Starting with empty queue; persisted state unreadable")
	}
	q.changes = persisted

	return q
}

// Enqueue appends a change and persists the snapshot immediately, so a
// crash after Enqueue cannot lose the change.
func (q *Queue) Enqueue(change models.Change) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.changes = append(q.changes, change)
	q.persist()
}

// List returns a snapshot of the queue in insertion order.
func (q *Queue) List() []models.Change {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]models.Change(nil), q.changes...)
}

// Len returns the number of queued changes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.changes)
}

// RemoveMatching removes and returns the first queued change for the
// given setting.
func (q *Queue) RemoveMatching(settingType models.SettingType, settingKey string) (models.Change, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, change := range q.changes {
		if change.Matches(settingType, settingKey) {
			q.changes = append(q.changes[:i:i], q.changes[i+1:]...)
			q.persist()
			return change, true
		}
	}
	return models.Change{}, false
}

// RemoveIDs removes the changes with the given IDs, keeping anything
// queued after the snapshot was taken.
func (q *Queue) RemoveIDs(ids []string) {
	if len(ids) == 0 {
		return
	}

	drained := make(map[string]bool, len(ids))
	for _, id := range ids {
		drained[id] = true
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.changes[:0]
	for _, change := range q.changes {
		if !drained[change.ID] {
			kept = append(kept, change)
		}
	}
	if len(kept) == len(q.changes) {
		return
	}
	q.changes = kept
	q.persist()
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.changes) == 0 {
		return
	}
	q.changes = nil
	q.persist()
}

// persist writes the snapshot. Callers hold q.mu. On failure the
// in-memory queue stays authoritative; the next mutation retries.
func (q *Queue) persist() {
	if err := q.state.SaveQueue(q.userID, q.changes); err != nil {
		q.logger.WithError(err).WithField("pending", len(q.changes)).Warn("Failed to persist queue")
	}
}
