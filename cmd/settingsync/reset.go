package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe all local sync state for the user",
	Long: `Reset removes the queued changes, unresolved conflicts, and cached
settings for the user. The next sync rebuilds the local view from the
authority.`,
	RunE: runReset,
}

var resetForce bool

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false,
		"Skip the confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetForce {
		fmt.Fprintf(os.Stderr, "Wipe all local sync state for %s? [y/N] ", userID)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
			printInfo("Aborted.")
			return nil
		}
	}

	if err := apiClient.ResetState(userID); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"reset": true, "user_id": userID})
		return nil
	}
	printSuccess("Local sync state for %s removed.", userID)
	return nil
}
