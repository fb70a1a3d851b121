package audit

import "sync"

// MockEmitter records emitted audit records for tests.
type MockEmitter struct {
	mu      sync.Mutex
	records []Record
}

// NewMockEmitter creates a recording emitter.
func NewMockEmitter() *MockEmitter {
	return &MockEmitter{}
}

// Emit stores the record.
func (m *MockEmitter) Emit(record Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
}

// Records returns a snapshot of the emitted records.
func (m *MockEmitter) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

// Actions returns just the action names, in emission order.
func (m *MockEmitter) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := make([]string, len(m.records))
	for i, r := range m.records {
		actions[i] = r.Action
	}
	return actions
}
