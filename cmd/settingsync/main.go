package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tradeview/settingsync/internal/client"
	"github.com/tradeview/settingsync/internal/config"
	"github.com/tradeview/settingsync/internal/events"
)

var rootCmd = &cobra.Command{
	Use:   "settingsync",
	Short: "Settings synchronization for trading platform clients",
	Long: `Settingsync keeps user settings consistent across devices.

Local edits apply immediately and queue durably; the queue drains to
the settings authority whenever a connection is available. Competing
edits surface as conflicts for an explicit decision.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	cfgFile    string
	userID     string
	logLevel   string
	jsonOutput bool

	cfg       *config.Config
	logger    *events.Logger
	apiClient *client.Client
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file path (default searches ./settingsync.json, ~/.settingsync/config.json)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "",
		"User ID of the session (or SETTINGSYNC_USER)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Emit machine-readable JSON output")

	rootCmd.PersistentPreRunE = initClient
	rootCmd.PersistentPostRun = closeClient
}

func initClient(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	if userID == "" {
		userID = os.Getenv("SETTINGSYNC_USER")
	}
	if userID == "" {
		return fmt.Errorf("user ID is required (--user or SETTINGSYNC_USER)")
	}

	apiClient, err = client.New(cfg, userID, logger)
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	return nil
}

func closeClient(cmd *cobra.Command, args []string) {
	if apiClient != nil {
		if err := apiClient.Close(); err != nil {
			logger.WithError(err).Warn("Client shutdown failed")
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
