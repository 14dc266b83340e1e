package cmd

import (
	"log"

	"songbook/config"
	"songbook/storage"

	"github.com/spf13/cobra"
)

var minioPrefix string

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Inspect the MinIO audio bucket",
}

var minioStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print bucket statistics and the object list",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("Failed to initialize MinIO: %v", err)
		}
		if err := storage.PrintBucketStatus(cfg, minioPrefix); err != nil {
			log.Fatalf("Failed to print bucket status: %v", err)
		}
	},
}

func init() {
	minioStatusCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "audio/", "object prefix to list")
	minioCmd.AddCommand(minioStatusCmd)
	rootCmd.AddCommand(minioCmd)
}
