// Package transport maintains the live channel to the settings
// authority: a websocket connection with bounded-rate reconnect and a
// small per-change confirmation protocol.
package transport

import (
	"context"

	"github.com/tradeview/settingsync/internal/models"
)

// State is the transport connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Session identifies the sync session to the authority.
type Session struct {
	UserID   string
	DeviceID string
	Token    string
}

// Transport maintains the channel to the settings authority.
type Transport interface {
	// SetOnline feeds the network reachability signal. Going online
	// starts connecting; going offline tears down the connection and
	// cancels any pending reconnect.
	SetOnline(online bool)

	// State returns the current connection state.
	State() State

	// PushChange sends one change and waits for its confirmation. A
	// returned error means the change is not yet confirmed; it stays
	// queued.
	PushChange(ctx context.Context, change models.Change) error

	// Messages returns the inbound protocol message stream.
	Messages() <-chan models.ServerMessage

	// States returns the connection state transition stream.
	States() <-chan State

	// Close permanently tears down the transport, cancelling any
	// pending reconnect so no late timer reanimates the session.
	Close() error
}
