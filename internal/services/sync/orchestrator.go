// Package sync coordinates the settings sync lifecycle: queueing local
// edits, draining them to the authority, reconciling remote updates,
// and walking conflicts through resolution.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradeview/settingsync/internal/conflict"
	"github.com/tradeview/settingsync/internal/events"
	"github.com/tradeview/settingsync/internal/models"
	"github.com/tradeview/settingsync/internal/queue"
	"github.com/tradeview/settingsync/internal/services/audit"
	"github.com/tradeview/settingsync/internal/settings"
	"github.com/tradeview/settingsync/internal/transport"
)

const defaultEventBuffer = 100

// Orchestrator owns the sync lifecycle for one user session. All state
// transitions flow through it; the queue, conflict set, and settings
// store are its collaborators, not independent actors.
type Orchestrator struct {
	userID   string
	deviceID string

	transport transport.Transport
	settings  *settings.Store
	queue     *queue.Queue
	conflicts *conflict.Set
	audit     audit.Emitter
	logger    *events.Logger

	mu          sync.Mutex
	online      bool
	syncing     bool
	lastSync    time.Time
	lastVersion int64

	// kick wakes the drain loop; capacity one collapses bursts of
	// triggers into a single drain.
	kick     chan struct{}
	eventsCh chan Event
}

// NewOrchestrator wires the orchestrator to its collaborators. Call Run
// to start processing inbound traffic.
func NewOrchestrator(
	userID, deviceID string,
	tr transport.Transport,
	st *settings.Store,
	q *queue.Queue,
	cs *conflict.Set,
	em audit.Emitter,
	eventBuffer int,
	logger *events.Logger,
) *Orchestrator {
	if eventBuffer <= 0 {
		eventBuffer = defaultEventBuffer
	}

	o := &Orchestrator{
		userID:    userID,
		deviceID:  deviceID,
		transport: tr,
		settings:  st,
		queue:     q,
		conflicts: cs,
		audit:     em,
		logger:    logger.WithField("component", "sync_orchestrator"),
		kick:      make(chan struct{}, 1),
		eventsCh:  make(chan Event, eventBuffer),
	}

	// Versions must keep climbing across restarts, so seed the clamp
	// from everything the stores remember.
	for _, entry := range st.All() {
		o.observeVersion(entry.Version)
	}
	for _, change := range q.List() {
		o.observeVersion(change.Version)
	}
	for _, c := range cs.List() {
		o.observeVersion(c.LocalChange.Version)
		o.observeVersion(c.RemoteChange.Version)
	}

	return o
}

// Run processes inbound protocol messages and connection transitions
// until the context is cancelled. It also hosts the drain loop, so the
// orchestrator is inert until Run starts.
func (o *Orchestrator) Run(ctx context.Context) {
	go o.drainLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case state := <-o.transport.States():
			if state == transport.Connected {
				o.logger.Debug("Transport connected, scheduling drain")
				o.requestSync()
			}
		case msg := <-o.transport.Messages():
			o.handleMessage(msg)
		}
	}
}

// QueueChange records a local edit: it is applied to the local view
// immediately, queued durably, and pushed when connectivity allows.
func (o *Orchestrator) QueueChange(req models.ChangeRequest) (models.Change, error) {
	if !req.SettingType.Valid() {
		return models.Change{}, fmt.Errorf("unknown setting type: %q", req.SettingType)
	}
	if strings.TrimSpace(req.SettingKey) == "" {
		return models.Change{}, fmt.Errorf("setting key is required")
	}

	userID := req.UserID
	if userID == "" {
		userID = o.userID
	}

	change := models.Change{
		ID:          uuid.New().String(),
		UserID:      userID,
		SettingType: req.SettingType,
		SettingKey:  req.SettingKey,
		OldValue:    req.OldValue,
		NewValue:    req.NewValue,
		Timestamp:   time.Now().UTC(),
		DeviceID:    o.deviceID,
		Version:     o.nextVersion(),
	}

	o.queue.Enqueue(change)
	o.settings.Apply(change)

	o.logger.WithFields(map[string]interface{}{
		"setting_type": change.SettingType,
		"setting_key":  change.SettingKey,
		"version":      change.Version,
	}).Info("Change queued")

	o.audit.Emit(audit.Record{
		Action:      audit.ActionChangeQueued,
		SettingType: change.SettingType,
		SettingKey:  change.SettingKey,
		OldValue:    change.OldValue,
		NewValue:    change.NewValue,
		DeviceID:    o.deviceID,
	})
	o.emit(Event{Type: EventChangeQueued, Change: &change})

	if o.isOnline() {
		o.requestSync()
	}
	return change, nil
}

// SyncSettings drains the whole queue to the authority. A drain that is
// already running, an offline transport, or an empty queue is a quiet
// no-op. Any push failure abandons the drain with the queue intact; the
// next trigger retries everything.
func (o *Orchestrator) SyncSettings(ctx context.Context) error {
	o.mu.Lock()
	if o.syncing || !o.online {
		o.mu.Unlock()
		return nil
	}
	o.syncing = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.syncing = false
		o.mu.Unlock()
	}()

	pending := o.queue.List()
	if len(pending) == 0 {
		return nil
	}

	o.logger.WithField("pending", len(pending)).Info("Draining change queue")
	o.audit.Emit(audit.Record{Action: audit.ActionSyncStarted, DeviceID: o.deviceID})
	o.emit(Event{Type: EventSyncStarted})

	drained := make([]string, 0, len(pending))
	for _, change := range pending {
		if err := o.transport.PushChange(ctx, change); err != nil {
			// All or nothing: nothing pushed so far leaves the queue, so
			// the retry replays the full batch. The authority dedupes by
			// change ID.
			o.logger.WithError(err).WithField("drained", len(drained)).Warn("Drain abandoned")
			o.audit.Emit(audit.Record{Action: audit.ActionSyncFailed, DeviceID: o.deviceID})
			o.emit(Event{Type: EventSyncFailed, Err: err})
			return fmt.Errorf("drain queue: %w", err)
		}
		drained = append(drained, change.ID)
	}

	// Remove exactly what was pushed; edits queued mid-drain survive
	// for the next round.
	o.queue.RemoveIDs(drained)

	o.mu.Lock()
	o.lastSync = time.Now().UTC()
	o.mu.Unlock()

	o.logger.WithField("drained", len(drained)).Info("Drain completed")
	o.audit.Emit(audit.Record{Action: audit.ActionSyncCompleted, DeviceID: o.deviceID})
	o.emit(Event{Type: EventSyncCompleted})
	return nil
}

// ResolveConflict removes the conflict and commits the chosen value:
// applied locally, queued as a fresh change, and pushed when
// connectivity allows.
func (o *Orchestrator) ResolveConflict(conflictID string, resolvedValue interface{}) (models.Change, error) {
	change, err := o.conflicts.Resolve(conflictID, resolvedValue)
	if err != nil {
		return models.Change{}, err
	}

	change.ID = uuid.New().String()
	change.DeviceID = o.deviceID
	if change.UserID == "" {
		change.UserID = o.userID
	}
	o.observeVersion(change.Version)

	o.queue.Enqueue(change)
	o.settings.Apply(change)

	o.logger.WithFields(map[string]interface{}{
		"conflict_id": conflictID,
		"setting_key": change.SettingKey,
		"version":     change.Version,
	}).Info("Conflict resolved")

	o.audit.Emit(audit.Record{
		Action:      audit.ActionConflictResolved,
		SettingType: change.SettingType,
		SettingKey:  change.SettingKey,
		NewValue:    change.NewValue,
		DeviceID:    o.deviceID,
	})
	o.emit(Event{Type: EventConflictResolved, Change: &change})

	if o.isOnline() {
		o.requestSync()
	}
	return change, nil
}

// OfflineChanges returns the queued changes in insertion order.
func (o *Orchestrator) OfflineChanges() []models.Change {
	return o.queue.List()
}

// ClearOfflineChanges abandons every queued change. Optimistically
// applied values stay in the local view; only the intent to sync them
// is dropped.
func (o *Orchestrator) ClearOfflineChanges() {
	dropped := o.queue.Len()
	o.queue.Clear()

	o.logger.WithField("dropped", dropped).Info("Offline changes cleared")
	o.audit.Emit(audit.Record{Action: audit.ActionQueueCleared, DeviceID: o.deviceID})
	o.emit(Event{Type: EventQueueCleared})
}

// GetSetting returns the locally visible value, or def when the setting
// has never been seen.
func (o *Orchestrator) GetSetting(settingType models.SettingType, settingKey string, def interface{}) interface{} {
	return o.settings.Get(settingType, settingKey, def)
}

// Conflicts returns the unresolved conflicts.
func (o *Orchestrator) Conflicts() []models.Conflict {
	return o.conflicts.List()
}

// Status returns a point-in-time snapshot of the sync state.
func (o *Orchestrator) Status() models.SyncStatus {
	o.mu.Lock()
	status := models.SyncStatus{
		Online:   o.online,
		Syncing:  o.syncing,
		LastSync: o.lastSync,
	}
	o.mu.Unlock()

	status.PendingChanges = o.queue.Len()
	status.Conflicts = o.conflicts.List()
	return status
}

// SetOnline records reachability and forwards it to the transport.
// Going online schedules a drain for anything queued while offline.
func (o *Orchestrator) SetOnline(online bool) {
	o.mu.Lock()
	o.online = online
	o.mu.Unlock()

	o.transport.SetOnline(online)
	if online {
		o.requestSync()
	}
}

// Events returns the notification channel. Slow consumers lose events;
// the channel never backpressures the engine.
func (o *Orchestrator) Events() <-chan Event {
	return o.eventsCh
}

func (o *Orchestrator) drainLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.kick:
			if err := o.SyncSettings(ctx); err != nil {
				o.logger.WithError(err).Warn("Sync failed; changes stay queued")
			}
		}
	}
}

// requestSync schedules a drain without blocking. A drain already
// pending absorbs the request.
func (o *Orchestrator) requestSync() {
	select {
	case o.kick <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) handleMessage(msg models.ServerMessage) {
	switch msg.Type {
	case models.MsgSettingsUpdate:
		var update models.SettingsUpdateMessage
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			o.logger.WithError(err).Warn("Dropping malformed settings update")
			return
		}
		o.applyRemote(update.Change)

	case models.MsgSyncRequest:
		o.logger.Debug("Authority requested sync")
		o.requestSync()

	case models.MsgConflictDetected:
		var cm models.ConflictMessage
		if err := json.Unmarshal(msg.Data, &cm); err != nil {
			o.logger.WithError(err).Warn("Dropping malformed conflict message")
			return
		}
		// Authority-side detection mirrors local detection: the pending
		// local change leaves the queue and the pair waits for a
		// decision.
		o.queue.RemoveMatching(cm.LocalChange.SettingType, cm.LocalChange.SettingKey)
		o.fileConflict(cm.LocalChange, cm.RemoteChange)

	default:
		o.logger.WithField("type", string(msg.Type)).Debug("Ignoring message")
	}
}

// applyRemote reconciles one confirmed change from the authority
// against whatever is still queued for the same setting.
func (o *Orchestrator) applyRemote(remote models.Change) {
	o.observeVersion(remote.Version)

	local, pending := o.queue.RemoveMatching(remote.SettingType, remote.SettingKey)
	if !pending {
		o.settings.Apply(remote)
		o.logger.WithFields(map[string]interface{}{
			"setting_key": remote.SettingKey,
			"version":     remote.Version,
		}).Info("Remote change applied")
		o.audit.Emit(audit.Record{
			Action:      audit.ActionRemoteApplied,
			SettingType: remote.SettingType,
			SettingKey:  remote.SettingKey,
			OldValue:    remote.OldValue,
			NewValue:    remote.NewValue,
			DeviceID:    remote.DeviceID,
		})
		o.emit(Event{Type: EventSettingsUpdated, Change: &remote})
		return
	}

	if local.Version == remote.Version {
		// Same version on both sides: this is our own change echoed
		// back, or an identical reconciliation. Apply quietly.
		o.settings.Apply(remote)
		o.emit(Event{Type: EventSettingsUpdated, Change: &remote})
		return
	}

	// Competing edits. Neither value is applied; the pre-conflict local
	// view stands until the user decides.
	o.fileConflict(local, remote)
}

func (o *Orchestrator) fileConflict(local, remote models.Change) {
	c := models.Conflict{
		ID:           uuid.New().String(),
		LocalChange:  local,
		RemoteChange: remote,
		DetectedAt:   time.Now().UTC(),
	}
	o.conflicts.Record(c)

	o.logger.WithFields(map[string]interface{}{
		"conflict_id":    c.ID,
		"setting_key":    c.SettingKey(),
		"local_version":  local.Version,
		"remote_version": remote.Version,
	}).Warn("Conflict detected")

	o.audit.Emit(audit.Record{
		Action:      audit.ActionConflictDetected,
		SettingType: c.SettingType(),
		SettingKey:  c.SettingKey(),
		OldValue:    local.NewValue,
		NewValue:    remote.NewValue,
		DeviceID:    o.deviceID,
	})
	o.emit(Event{Type: EventConflictDetected, Conflict: &c})
}

// nextVersion hands out wall-clock versions clamped to stay strictly
// increasing, so rapid successive edits and skewed clocks cannot reuse
// or regress a version.
func (o *Orchestrator) nextVersion() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	v := time.Now().UnixMilli()
	if v <= o.lastVersion {
		v = o.lastVersion + 1
	}
	o.lastVersion = v
	return v
}

// observeVersion raises the clamp so future local versions sort after
// everything already seen.
func (o *Orchestrator) observeVersion(v int64) {
	o.mu.Lock()
	if v > o.lastVersion {
		o.lastVersion = v
	}
	o.mu.Unlock()
}

func (o *Orchestrator) isOnline() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.online
}

func (o *Orchestrator) emit(event Event) {
	event.Timestamp = time.Now().UTC()
	select {
	case o.eventsCh <- event:
	default:
		o.logger.WithField("type", string(event.Type)).Debug("Event channel full, dropping event")
	}
}
