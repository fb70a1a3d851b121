// Package audit delivers audit records to a remote log sink, best
// effort. Delivery failures are swallowed; the core never blocks on the
// sink.
package audit

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tradeview/settingsync/internal/config"
	"github.com/tradeview/settingsync/internal/events"
	"github.com/tradeview/settingsync/internal/models"
)

// Actions recorded by the sync engine.
const (
	ActionChangeQueued     = "change_queued"
	ActionRemoteApplied    = "remote_applied"
	ActionSyncStarted      = "sync_started"
	ActionSyncCompleted    = "sync_completed"
	ActionSyncFailed       = "sync_failed"
	ActionConflictDetected = "conflict_detected"
	ActionConflictResolved = "conflict_resolved"
	ActionQueueCleared     = "queue_cleared"
)

// Record is one audit log entry.
type Record struct {
	Action      string             `json:"action"`
	SettingType models.SettingType `json:"setting_type,omitempty"`
	SettingKey  string             `json:"setting_key,omitempty"`
	OldValue    interface{}        `json:"old_value,omitempty"`
	NewValue    interface{}        `json:"new_value,omitempty"`
	DeviceID    string             `json:"device_id,omitempty"`
	SessionID   string             `json:"session_id,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Emitter delivers audit records.
type Emitter interface {
	Emit(record Record)
}

// HTTPEmitter posts records to an HTTP sink. An empty endpoint
// disables delivery.
type HTTPEmitter struct {
	client    *http.Client
	endpoint  string
	sessionID string
	logger    *events.Logger
}

// NewHTTPEmitter creates an audit emitter.
func NewHTTPEmitter(cfg *config.AuditConfig, sessionID string, logger *events.Logger) *HTTPEmitter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPEmitter{
		client:    &http.Client{Timeout: timeout},
		endpoint:  cfg.Endpoint,
		sessionID: sessionID,
		logger:    logger.WithField("component", "audit_emitter"),
	}
}

// Emit delivers the record in the background. It never blocks and
// never fails the caller.
func (e *HTTPEmitter) Emit(record Record) {
	if e.endpoint == "" {
		return
	}

	record.SessionID = e.sessionID
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	go e.post(record)
}

func (e *HTTPEmitter) post(record Record) {
	body, err := json.Marshal(record)
	if err != nil {
		e.logger.WithError(err).Debug("Audit record not marshalable")
		return
	}

	resp, err := e.client.Post(e.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		e.logger.WithError(err).Debug("Audit delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		e.logger.WithField("status", resp.StatusCode).Debug("Audit sink refused record")
	}
}

// NopEmitter discards all records.
type NopEmitter struct{}

// Emit discards the record.
func (NopEmitter) Emit(Record) {}
