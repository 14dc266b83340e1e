package cmd

import (
	"log"

	"songbook/config"
	"songbook/db"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check the Redis connection",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		if err := db.ConnectRedis(cfg); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer db.CloseRedis()

		if err := db.CheckRedis(); err != nil {
			log.Fatalf("Redis check failed: %v", err)
		}
		log.Println("✅ Redis connection OK")
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
