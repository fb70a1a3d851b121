// Package conflict holds the durable set of unresolved conflicts
// awaiting a user decision.
package conflict

import (
	"errors"
	"sync"
	"time"

	"github.com/tradeview/settingsync/internal/events"
	"github.com/tradeview/settingsync/internal/models"
	"github.com/tradeview/settingsync/internal/state"
)

// Set is the conflict set. A conflict exists only while unresolved;
// Resolve removes it and hands back the follow-up change.
type Set struct {
	userID string
	state  state.Store
	logger *events.Logger

	mu        sync.Mutex
	conflicts []models.Conflict
}

// New creates the set, loading any persisted snapshot. Unreadable
// persisted state starts the session empty rather than failing.
func New(userID string, st state.Store, logger *events.Logger) *Set {
	s := &Set{
		userID: userID,
		state:  st,
		logger: logger.WithField("component", "conflict_set"),
	}

	persisted, err := st.LoadConflicts(userID)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		s.logger.WithError(err).Warn("Starting with empty conflict set; persisted state unreadable")
	}
	s.conflicts = persisted

	return s
}

// Record files a conflict and persists the snapshot.
func (s *Set) Record(conflict models.Conflict) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conflicts = append(s.conflicts, conflict)
	s.persist()
}

// List returns a snapshot of the unresolved conflicts.
func (s *Set) List() []models.Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.Conflict(nil), s.conflicts...)
}

// Len returns the number of unresolved conflicts.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.conflicts)
}

// Resolve removes the conflict and returns the synthesized follow-up
// change carrying the resolved value at version max(local, remote)+1.
// The caller assigns ID, timestamp, and device before queueing it.
// Resolving a conflict that is no longer present reports
// ErrConflictNotFound; it is not fatal.
func (s *Set) Resolve(conflictID string, resolvedValue interface{}) (models.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.conflicts {
		if c.ID != conflictID {
			continue
		}

		s.conflicts = append(s.conflicts[:i:i], s.conflicts[i+1:]...)
		s.persist()

		// The locally visible value is the optimistically applied local
		// edit, so that is the follow-up change's old value.
		return models.Change{
			UserID:      c.LocalChange.UserID,
			SettingType: c.SettingType(),
			SettingKey:  c.SettingKey(),
			OldValue:    c.LocalChange.NewValue,
			NewValue:    resolvedValue,
			Timestamp:   time.Now().UTC(),
			Version:     c.NextVersion(),
		}, nil
	}

	return models.Change{}, models.ErrConflictNotFound
}

// persist writes the snapshot. Callers hold s.mu. On failure the
// in-memory set stays authoritative; the next mutation retries.
func (s *Set) persist() {
	if err := s.state.SaveConflicts(s.userID, s.conflicts); err != nil {
		s.logger.WithError(err).WithField("conflicts", len(s.conflicts)).Warn("Failed to persist conflicts")
	}
}
