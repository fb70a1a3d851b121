package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tradeview/settingsync/internal/models"
)

var setCmd = &cobra.Command{
	Use:   "set <type> <key> <value>",
	Short: "Change a setting",
	Long: `Set applies a setting change to the local view immediately and queues
it for synchronization. Values parse as JSON where possible, so
booleans and numbers keep their type; anything else is a string.`,
	Example: `  settingsync set profile theme dark
  settingsync set notifications email_alerts false
  settingsync set privacy share_activity '{"followers": true, "public": false}'`,
	Args: cobra.ExactArgs(3),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	settingType := models.SettingType(args[0])
	if !settingType.Valid() {
		return fmt.Errorf("unknown setting type %q (profile, security, notifications, privacy)", args[0])
	}
	settingKey := args[1]
	newValue := parseValue(args[2])

	oldValue := apiClient.Sync.GetSetting(settingType, settingKey, nil)

	change, err := apiClient.Sync.QueueChange(models.ChangeRequest{
		SettingType: settingType,
		SettingKey:  settingKey,
		OldValue:    oldValue,
		NewValue:    newValue,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(change)
		return nil
	}
	printSuccess("Set %s/%s = %v (queued as %s)", settingType, settingKey, newValue, change.ID)
	return nil
}

// parseValue keeps JSON types where the input is valid JSON and falls
// back to the raw string.
func parseValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
