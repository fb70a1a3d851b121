package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Inspect or abandon queued changes",
}

var changesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List changes queued while offline",
	RunE:  runChangesList,
}

var changesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Abandon all queued changes",
	Long: `Clear drops every queued change without syncing it. Locally applied
values are kept; only the pending uploads are discarded.`,
	RunE: runChangesClear,
}

func init() {
	rootCmd.AddCommand(changesCmd)
	changesCmd.AddCommand(changesListCmd)
	changesCmd.AddCommand(changesClearCmd)
}

func runChangesList(cmd *cobra.Command, args []string) error {
	pending := apiClient.Sync.OfflineChanges()

	if jsonOutput {
		printJSON(pending)
		return nil
	}

	if len(pending) == 0 {
		printInfo("No queued changes.")
		return nil
	}
	for i, change := range pending {
		fmt.Printf("%d. %s/%s: %v -> %v (v%d, %s)\n",
			i+1, change.SettingType, change.SettingKey,
			change.OldValue, change.NewValue, change.Version,
			change.Timestamp.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runChangesClear(cmd *cobra.Command, args []string) error {
	dropped := len(apiClient.Sync.OfflineChanges())
	apiClient.Sync.ClearOfflineChanges()

	if jsonOutput {
		printJSON(map[string]interface{}{"dropped": dropped})
		return nil
	}
	printSuccess("Dropped %d queued change(s).", dropped)
	return nil
}
