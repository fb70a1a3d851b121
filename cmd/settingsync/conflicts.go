package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Inspect or resolve settings conflicts",
}

var conflictsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unresolved conflicts",
	RunE:  runConflictsList,
}

var conflictsResolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id> <value>",
	Short: "Resolve a conflict with the chosen value",
	Long: `Resolve commits the chosen value for a conflicted setting. The value
applies locally at once and queues for synchronization at a version
that supersedes both competing edits.`,
	Example: `  settingsync conflicts resolve 6f1c... dark
  settingsync conflicts resolve 6f1c... '{"email": true, "sms": false}'`,
	Args: cobra.ExactArgs(2),
	RunE: runConflictsResolve,
}

func init() {
	rootCmd.AddCommand(conflictsCmd)
	conflictsCmd.AddCommand(conflictsListCmd)
	conflictsCmd.AddCommand(conflictsResolveCmd)
}

func runConflictsList(cmd *cobra.Command, args []string) error {
	conflicts := apiClient.Sync.Conflicts()

	if jsonOutput {
		printJSON(conflicts)
		return nil
	}

	if len(conflicts) == 0 {
		printInfo("No unresolved conflicts.")
		return nil
	}
	for _, c := range conflicts {
		fmt.Printf("%s  %s/%s\n", c.ID, c.SettingType(), c.SettingKey())
		fmt.Printf("    local:  %v (v%d, device %s)\n",
			c.LocalChange.NewValue, c.LocalChange.Version, c.LocalChange.DeviceID)
		fmt.Printf("    remote: %v (v%d, device %s)\n",
			c.RemoteChange.NewValue, c.RemoteChange.Version, c.RemoteChange.DeviceID)
	}
	return nil
}

func runConflictsResolve(cmd *cobra.Command, args []string) error {
	conflictID := args[0]
	value := parseValue(args[1])

	change, err := apiClient.Sync.ResolveConflict(conflictID, value)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(change)
		return nil
	}
	printSuccess("Resolved %s/%s = %v (v%d, queued as %s)",
		change.SettingType, change.SettingKey, change.NewValue, change.Version, change.ID)
	return nil
}
