package audit_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeview/settingsync/internal/config"
	"github.com/tradeview/settingsync/internal/models"
	"github.com/tradeview/settingsync/internal/services/audit"
	"github.com/tradeview/settingsync/test/testutil"
)

func TestEmitPostsRecord(t *testing.T) {
	received := make(chan audit.Record, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var rec audit.Record
		require.NoError(t, json.Unmarshal(body, &rec))
		received <- rec
	}))
	defer server.Close()

	emitter := audit.NewHTTPEmitter(&config.AuditConfig{Endpoint: server.URL}, "sess-1", testutil.NewTestLogger())
	emitter.Emit(audit.Record{
		Action:      audit.ActionChangeQueued,
		SettingType: models.SettingProfile,
		SettingKey:  "theme",
		OldValue:    "light",
		NewValue:    "dark",
		DeviceID:    "d1",
	})

	select {
	case rec := <-received:
		assert.Equal(t, audit.ActionChangeQueued, rec.Action)
		assert.Equal(t, "theme", rec.SettingKey)
		assert.Equal(t, "sess-1", rec.SessionID)
		assert.False(t, rec.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("audit record never delivered")
	}
}

func TestEmitSwallowsDeliveryFailure(t *testing.T) {
	// Nothing listens on the endpoint; Emit must neither block nor panic.
	emitter := audit.NewHTTPEmitter(&config.AuditConfig{
		Endpoint: "http://127.0.0.1:1/audit",
		Timeout:  100 * time.Millisecond,
	}, "sess-1", testutil.NewTestLogger())

	done := make(chan struct{})
	go func() {
		emitter.Emit(audit.Record{Action: audit.ActionSyncStarted})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a failing sink")
	}
}

func TestEmptyEndpointDisablesDelivery(t *testing.T) {
	emitter := audit.NewHTTPEmitter(&config.AuditConfig{}, "sess-1", testutil.NewTestLogger())
	// Must be a no-op.
	emitter.Emit(audit.Record{Action: audit.ActionSyncCompleted})
}

func TestMockEmitterOrdering(t *testing.T) {
	mock := audit.NewMockEmitter()
	mock.Emit(audit.Record{Action: audit.ActionSyncStarted})
	mock.Emit(audit.Record{Action: audit.ActionSyncCompleted})

	assert.Equal(t, []string{audit.ActionSyncStarted, audit.ActionSyncCompleted}, mock.Actions())
}
