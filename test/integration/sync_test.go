//go:build integration
// +build integration

package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeview/settingsync/internal/client"
	"github.com/tradeview/settingsync/internal/config"
	"github.com/tradeview/settingsync/internal/models"
	"github.com/tradeview/settingsync/test/testutil"
)

// authority is a minimal settings authority: it acks every pushed
// change and can send protocol messages to the connected device. A
// scripted key is answered with conflict_detected instead of an ack,
// once.
type authority struct {
	*httptest.Server

	mu        sync.Mutex
	conn      *websocket.Conn
	pushes    []models.Change
	conflicts map[string]models.Change // setting key -> competing remote change

	connected chan struct{}
}

func newAuthority(t *testing.T) *authority {
	t.Helper()

	a := &authority{
		conflicts: make(map[string]models.Change),
		connected: make(chan struct{}, 10),
	}
	upgrader := websocket.Upgrader{}

	a.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		a.mu.Lock()
		a.conn = conn
		a.mu.Unlock()

		var hello models.HelloMessage
		if err := conn.ReadJSON(&hello); err != nil {
			return
		}
		a.connected <- struct{}{}

		for {
			var push models.ChangePushMessage
			if err := conn.ReadJSON(&push); err != nil {
				return
			}
			a.mu.Lock()
			a.pushes = append(a.pushes, push.Change)
			competing, conflicted := a.conflicts[push.Change.SettingKey]
			delete(a.conflicts, push.Change.SettingKey)
			a.mu.Unlock()

			if conflicted {
				a.send(models.MsgConflictDetected, models.ConflictMessage{
					LocalChange:  push.Change,
					RemoteChange: competing,
				})
				continue
			}
			a.send(models.MsgChangeAck, models.ChangeAckMessage{
				ChangeID: push.Change.ID,
				Accepted: true,
			})
		}
	}))
	t.Cleanup(a.Close)
	return a
}

// conflictNext scripts the next push for the key to be rejected as a
// conflict against the given remote change.
func (a *authority) conflictNext(settingKey string, remote models.Change) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conflicts[settingKey] = remote
}

func (a *authority) send(msgType models.MessageType, payload interface{}) {
	data, _ := json.Marshal(payload)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil {
		_ = a.conn.WriteJSON(models.ServerMessage{Type: msgType, Data: data})
	}
}

func (a *authority) pushed() []models.Change {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.Change(nil), a.pushes...)
}

func testConfig(serverURL, dataDir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.API.ServerURL = serverURL
	cfg.API.Timeout = 5 * time.Second
	cfg.Sync.ReconnectDelay = 100 * time.Millisecond
	cfg.Sync.AckTimeout = 2 * time.Second
	cfg.Storage.DataDir = dataDir
	cfg.Log.Level = "error"
	return cfg
}

func TestOfflineEditSurvivesRestartAndDrains(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	server := newAuthority(t)
	dataDir := t.TempDir()
	cfg := testConfig(server.URL, dataDir)

	// Session one: edit offline, then shut down.
	first, err := client.New(cfg, "trader-1", testutil.NewTestLogger())
	require.NoError(t, err)

	change, err := first.Sync.QueueChange(models.ChangeRequest{
		SettingType: models.SettingProfile,
		SettingKey:  "theme",
		OldValue:    "light",
		NewValue:    "dark",
	})
	require.NoError(t, err)
	assert.Equal(t, "dark", first.Sync.GetSetting(models.SettingProfile, "theme", "light"))
	require.NoError(t, first.Close())

	// Session two: the queued change and the optimistic value are back.
	second, err := client.New(cfg, "trader-1", testutil.NewTestLogger())
	require.NoError(t, err)
	defer second.Close()

	pending := second.Sync.OfflineChanges()
	require.Len(t, pending, 1)
	assert.Equal(t, change.ID, pending[0].ID)
	assert.Equal(t, "dark", second.Sync.GetSetting(models.SettingProfile, "theme", "light"))

	// Going online drains the queue to the authority.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go second.Sync.Run(ctx)
	second.Sync.SetOnline(true)

	require.Eventually(t, func() bool {
		return second.Sync.Status().PendingChanges == 0 && len(server.pushed()) == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, change.ID, server.pushed()[0].ID)
}

func TestRemoteUpdateAndConflictRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	server := newAuthority(t)
	cfg := testConfig(server.URL, t.TempDir())

	c, err := client.New(cfg, "trader-1", testutil.NewTestLogger())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Sync.Run(ctx)
	c.Sync.SetOnline(true)

	select {
	case <-server.connected:
	case <-time.After(5 * time.Second):
		t.Fatal("device never connected")
	}

	// A confirmed change from another device lands in the local view.
	remote := testutil.Change("trader-1", models.SettingNotifications, "email_alerts", true, false, 100)
	remote.DeviceID = "other-device"
	server.send(models.MsgSettingsUpdate, models.SettingsUpdateMessage{Change: remote})

	require.Eventually(t, func() bool {
		return c.Sync.GetSetting(models.SettingNotifications, "email_alerts", true) == false
	}, 5*time.Second, 20*time.Millisecond)

	// Competing edits: the authority answers the next chart_layout push
	// with a conflict against a change from another device.
	competing := testutil.Change("trader-1", models.SettingProfile, "chart_layout", nil, "stacked", 200)
	competing.DeviceID = "other-device"
	server.conflictNext("chart_layout", competing)

	local, err := c.Sync.QueueChange(models.ChangeRequest{
		SettingType: models.SettingProfile,
		SettingKey:  "chart_layout",
		NewValue:    "grid",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(c.Sync.Conflicts()) == 1
	}, 10*time.Second, 20*time.Millisecond)

	conflict := c.Sync.Conflicts()[0]
	assert.Equal(t, local.ID, conflict.LocalChange.ID)
	assert.Equal(t, "stacked", conflict.RemoteChange.NewValue)

	resolved, err := c.Sync.ResolveConflict(conflict.ID, "grid")
	require.NoError(t, err)
	assert.Equal(t, conflict.NextVersion(), resolved.Version)

	// The resolution drains to the authority like any other change.
	require.Eventually(t, func() bool {
		for _, pushed := range server.pushed() {
			if pushed.ID == resolved.ID {
				return true
			}
		}
		return false
	}, 10*time.Second, 20*time.Millisecond)

	assert.Empty(t, c.Sync.Conflicts())
	assert.Equal(t, "grid", c.Sync.GetSetting(models.SettingProfile, "chart_layout", ""))
	assert.Zero(t, c.Sync.Status().PendingChanges)
}
