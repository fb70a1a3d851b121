package transport

import (
	"context"
	"sync"

	"github.com/tradeview/settingsync/internal/models"
)

// MockTransport provides a scriptable Transport for testing.
type MockTransport struct {
	mu sync.Mutex

	state  State
	online bool
	closed bool

	failFrom int
	pushErr  error

	pushes   []models.Change
	pushCall int

	messages chan models.ServerMessage
	states   chan State
}

// NewMockTransport creates a mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		messages: make(chan models.ServerMessage, 100),
		states:   make(chan State, 16),
	}
}

// SetOnline records reachability; going online immediately "connects".
func (m *MockTransport) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.online = online
	if online {
		m.setStateLocked(Connected)
	} else {
		m.setStateLocked(Disconnected)
	}
}

// SetState forces a connection state, emitting the transition.
func (m *MockTransport) SetState(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setStateLocked(state)
}

// State returns the current state.
func (m *MockTransport) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PushChange records the push and applies any configured failure.
func (m *MockTransport) PushChange(ctx context.Context, change models.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pushCall++
	if m.state != Connected {
		return &models.PushError{ChangeID: change.ID, SettingType: change.SettingType, SettingKey: change.SettingKey, Err: models.ErrNotConnected}
	}
	if m.failFrom > 0 && m.pushCall >= m.failFrom {
		err := m.pushErr
		if err == nil {
			err = models.ErrAckTimeout
		}
		return &models.PushError{ChangeID: change.ID, SettingType: change.SettingType, SettingKey: change.SettingKey, Err: err}
	}

	m.pushes = append(m.pushes, change)
	return nil
}

// FailPushes makes every PushChange fail starting at the from-th call
// (1-based, counting failures). A zero from clears the injection; a nil
// err defaults to models.ErrAckTimeout.
func (m *MockTransport) FailPushes(from int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFrom = from
	m.pushErr = err
}

// PushCalls returns the number of PushChange calls, failed ones
// included.
func (m *MockTransport) PushCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pushCall
}

// Pushed returns the successfully pushed changes.
func (m *MockTransport) Pushed() []models.Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Change(nil), m.pushes...)
}

// Deliver injects an inbound protocol message.
func (m *MockTransport) Deliver(msg models.ServerMessage) {
	m.messages <- msg
}

// Messages returns the inbound message channel.
func (m *MockTransport) Messages() <-chan models.ServerMessage {
	return m.messages
}

// States returns the state transition channel.
func (m *MockTransport) States() <-chan State {
	return m.states
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.setStateLocked(Disconnected)
	return nil
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockTransport) setStateLocked(state State) {
	if m.state == state {
		return
	}
	m.state = state
	select {
	case m.states <- state:
	default:
	}
}
