package models

import "encoding/json"

// MessageType identifies a protocol message on the sync channel.
type MessageType string

const (
	// Inbound (authority -> client).
	MsgSettingsUpdate   MessageType = "settings_update"
	MsgSyncRequest      MessageType = "sync_request"
	MsgConflictDetected MessageType = "conflict_detected"
	MsgChangeAck        MessageType = "change_ack"

	// Outbound (client -> authority).
	MsgHello      MessageType = "hello"
	MsgChangePush MessageType = "change_push"
)

// ServerMessage is the envelope for inbound protocol messages. The
// payload stays raw until the type-specific handler decodes it.
type ServerMessage struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// HelloMessage identifies the session after the connection opens.
type HelloMessage struct {
	Type     MessageType `json:"type"`
	UserID   string      `json:"user_id"`
	DeviceID string      `json:"device_id"`
	Token    string      `json:"token,omitempty"`
}

// SettingsUpdateMessage carries a confirmed change from the authority.
type SettingsUpdateMessage struct {
	Change Change `json:"change"`
}

// ConflictMessage carries a conflict the authority detected on its side.
type ConflictMessage struct {
	LocalChange  Change `json:"local_change"`
	RemoteChange Change `json:"remote_change"`
}

// ChangePushMessage is the outbound envelope for one queued change.
// Application on the authority is idempotent by change ID.
type ChangePushMessage struct {
	Type   MessageType `json:"type"`
	Change Change      `json:"change"`
}

// ChangeAckMessage confirms (or rejects) one pushed change.
type ChangeAckMessage struct {
	ChangeID string `json:"change_id"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}
