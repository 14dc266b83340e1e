package cmd

import (
	"songbook/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the songbook HTTP server",
	Long:  `Start the songbook HTTP server, serving the song catalog and audio attachment API.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
