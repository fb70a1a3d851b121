package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tradeview/settingsync/internal/services/sync"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync engine until interrupted",
	Long: `Run connects to the settings authority, drains any changes queued
while offline, and keeps the local settings view current until the
process is interrupted.`,
	Example: `  settingsync run --user trader-42
  settingsync run --user trader-42 --json`,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runEngine(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		printWarning("\nShutting down...")
		cancel()
	}()

	go apiClient.Sync.Run(ctx)
	apiClient.Sync.SetOnline(true)

	pending := apiClient.Sync.Status().PendingChanges
	if pending > 0 {
		printInfo("Draining %d queued change(s)...", pending)
	}

	for {
		select {
		case <-ctx.Done():
			apiClient.Sync.SetOnline(false)
			return nil
		case event := <-apiClient.Sync.Events():
			reportEvent(event)
		}
	}
}

func reportEvent(event sync.Event) {
	if jsonOutput {
		out := map[string]interface{}{
			"type":      event.Type,
			"timestamp": event.Timestamp,
		}
		if event.Change != nil {
			out["change"] = event.Change
		}
		if event.Conflict != nil {
			out["conflict"] = event.Conflict
		}
		if event.Err != nil {
			out["error"] = event.Err.Error()
		}
		printJSON(out)
		return
	}

	switch event.Type {
	case sync.EventSyncStarted:
		printInfo("Sync started")
	case sync.EventSyncCompleted:
		printSuccess("Sync completed")
	case sync.EventSyncFailed:
		printWarning("Sync failed: %v (changes stay queued)", event.Err)
	case sync.EventSettingsUpdated:
		if event.Change != nil {
			printInfo("Updated %s/%s -> %v",
				event.Change.SettingType, event.Change.SettingKey, event.Change.NewValue)
		}
	case sync.EventConflictDetected:
		if event.Conflict != nil {
			printWarning("Conflict on %s/%s: local %v vs remote %v (id %s)",
				event.Conflict.SettingType(), event.Conflict.SettingKey(),
				event.Conflict.LocalChange.NewValue, event.Conflict.RemoteChange.NewValue,
				event.Conflict.ID)
			printWarning("Resolve with: settingsync conflicts resolve %s <value>", event.Conflict.ID)
		}
	case sync.EventConflictResolved:
		if event.Change != nil {
			printSuccess("Conflict resolved: %s/%s -> %v",
				event.Change.SettingType, event.Change.SettingKey, event.Change.NewValue)
		}
	default:
		fmt.Printf("%s\n", event.Type)
	}
}
