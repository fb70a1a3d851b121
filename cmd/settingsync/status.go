package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status and local settings",
	RunE:  runStatus,
}

var statusShowSettings bool

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusShowSettings, "settings", false,
		"Also list the locally visible settings")
}

func runStatus(cmd *cobra.Command, args []string) error {
	status := apiClient.Sync.Status()

	if jsonOutput {
		out := map[string]interface{}{
			"device_id":       apiClient.Device.DeviceID(),
			"online":          status.Online,
			"syncing":         status.Syncing,
			"pending_changes": status.PendingChanges,
			"conflicts":       len(status.Conflicts),
		}
		if !status.LastSync.IsZero() {
			out["last_sync"] = status.LastSync
		}
		if statusShowSettings {
			out["settings"] = apiClient.Settings.All()
		}
		printJSON(out)
		return nil
	}

	fmt.Printf("Device:          %s\n", apiClient.Device.DeviceID())
	fmt.Printf("Online:          %v\n", status.Online)
	fmt.Printf("Syncing:         %v\n", status.Syncing)
	fmt.Printf("Pending changes: %d\n", status.PendingChanges)
	fmt.Printf("Conflicts:       %d\n", len(status.Conflicts))
	if !status.LastSync.IsZero() {
		fmt.Printf("Last sync:       %s\n", status.LastSync.Local().Format("2006-01-02 15:04:05"))
	}

	if statusShowSettings {
		fmt.Println()
		for _, entry := range apiClient.Settings.All() {
			fmt.Printf("  %s/%s = %v (v%d)\n",
				entry.SettingType, entry.SettingKey, entry.Value, entry.Version)
		}
	}
	return nil
}
