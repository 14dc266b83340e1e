package db

import (
	"database/sql"
	"fmt"
	"log"

	"songbook/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the database schema, creating tables if they don't exist.
// The songs table is managed by GORM AutoMigrate; only the attachment table
// is created here.
func InitDB() error {
	if err := createSongAudioTable(); err != nil {
		return err
	}
	log.Println("Database initialization completed.")
	return nil
}

func createSongAudioTable() error {
	// song_id is the primary key: the schema itself enforces at most one
	// attachment per song.
	query := `
	CREATE TABLE IF NOT EXISTS song_audio (
		song_id BIGINT PRIMARY KEY,
		file_name VARCHAR(255) NOT NULL,
		audio_url VARCHAR(767) NOT NULL,
		storage_path VARCHAR(767) NOT NULL,
		uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create song_audio table: %w", err)
	}
	log.Println("song_audio table initialized successfully (or already exists).")
	return nil
}
