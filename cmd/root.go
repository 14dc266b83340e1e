package cmd

import (
	"fmt"
	"os"

	"songbook/config"
	"songbook/logger"
	"songbook/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "songbook",
	Short: "Songbook is a choir song-book service with per-song audio attachments.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogPath,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		})
	},
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
