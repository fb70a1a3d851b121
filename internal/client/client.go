// Package client assembles the sync engine from configuration: state
// store, device identity, queue, conflict set, transport, audit, and
// the orchestrator on top.
package client

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/tradeview/settingsync/internal/config"
	"github.com/tradeview/settingsync/internal/conflict"
	"github.com/tradeview/settingsync/internal/device"
	"github.com/tradeview/settingsync/internal/events"
	"github.com/tradeview/settingsync/internal/queue"
	"github.com/tradeview/settingsync/internal/services/audit"
	"github.com/tradeview/settingsync/internal/services/sync"
	"github.com/tradeview/settingsync/internal/settings"
	"github.com/tradeview/settingsync/internal/state"
	"github.com/tradeview/settingsync/internal/transport"
)

// Client is the assembled sync engine for one user session.
type Client struct {
	Sync     *sync.Orchestrator
	Settings *settings.Store
	Device   *device.Manager

	config    *config.Config
	logger    *events.Logger
	state     state.Store
	transport transport.Transport
}

// New builds a client for the given user. The device identity is
// loaded (or minted) from the state store, and a fresh session ID is
// stamped on the audit trail.
func New(cfg *config.Config, userID string, logger *events.Logger) (*Client, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	stateStore, err := newStateStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	deviceMgr := device.NewManager(stateStore, logger)
	deviceID := deviceMgr.DeviceID()

	settingsStore := settings.NewStore(userID, stateStore, logger)
	changeQueue := queue.New(userID, stateStore, logger)
	conflictSet := conflict.New(userID, stateStore, logger)

	session := transport.Session{
		UserID:   userID,
		DeviceID: deviceID,
		Token:    cfg.API.Token,
	}
	wsClient := transport.NewWSClient(&cfg.API, &cfg.Sync, session, logger)

	sessionID := uuid.New().String()
	emitter := audit.NewHTTPEmitter(&cfg.Audit, sessionID, logger)

	orchestrator := sync.NewOrchestrator(
		userID,
		deviceID,
		wsClient,
		settingsStore,
		changeQueue,
		conflictSet,
		emitter,
		cfg.Sync.EventBuffer,
		logger,
	)

	logger.WithFields(map[string]interface{}{
		"user_id":   userID,
		"device_id": deviceID,
		"backend":   cfg.Storage.Backend,
	}).Info("Client initialized")

	return &Client{
		Sync:      orchestrator,
		Settings:  settingsStore,
		Device:    deviceMgr,
		config:    cfg,
		logger:    logger,
		state:     stateStore,
		transport: wsClient,
	}, nil
}

// ResetState wipes all durable sync state for the given user: queued
// changes, conflicts, and the materialized settings.
func (c *Client) ResetState(userID string) error {
	return c.state.Reset(userID)
}

// Close shuts down the transport and releases the state store.
func (c *Client) Close() error {
	if err := c.transport.Close(); err != nil {
		c.logger.WithError(err).Warn("Transport close failed")
	}
	return c.state.Close()
}

func newStateStore(cfg *config.Config, logger *events.Logger) (state.Store, error) {
	if cfg.Storage.Backend == "sqlite" {
		return state.NewSQLiteStore(cfg.StatePath(), logger)
	}
	return state.NewJSONStore(cfg.StatePath(), logger)
}
