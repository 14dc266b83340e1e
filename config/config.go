package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// MaxAudioUploadBytes is the hard ceiling for a single audio attachment:
// 50 MB by the power-of-1024 definition.
const MaxAudioUploadBytes int64 = 50 * 1024 * 1024

// Config stores the application configuration.
type Config struct {
	HTTPAddr string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Object storage backend: "minio" (default) or "http".
	AudioStoreBackend string

	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioRegion     string
	MinioUseSSL     bool
	MinioPublicBase string // base URL for public blob links; empty means serve via /static/

	// Path-addressed HTTP store (alternate backend).
	HTTPStoreBaseURL string
	HTTPStoreBucket  string
	HTTPStoreToken   string
	HTTPStoreAPIKey  string

	// Shared secret for the admin gate. Only deletion is gated.
	AdminPasscode    string
	AdminTokenSecret string
	AdminTokenTTLMin int

	CatalogSeedPath string

	LogLevel string
	LogPath  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "songbook"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AudioStoreBackend: getEnv("AUDIO_STORE_BACKEND", "minio"),

		MinioEndpoint:   getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey:  os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:  os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:     getEnv("MINIO_BUCKET", "songbook"),
		MinioRegion:     getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:     getEnvBool("MINIO_USE_SSL", false),
		MinioPublicBase: getEnv("MINIO_PUBLIC_BASE", ""),

		HTTPStoreBaseURL: getEnv("HTTP_STORE_BASE_URL", ""),
		HTTPStoreBucket:  getEnv("HTTP_STORE_BUCKET", "song-audio"),
		HTTPStoreToken:   os.Getenv("HTTP_STORE_TOKEN"),
		HTTPStoreAPIKey:  os.Getenv("HTTP_STORE_API_KEY"),

		AdminPasscode:    getEnv("ADMIN_PASSCODE", ""),
		AdminTokenSecret: getEnv("ADMIN_TOKEN_SECRET", "songbook-dev-secret"),
		AdminTokenTTLMin: getEnvInt("ADMIN_TOKEN_TTL_MIN", 60),

		CatalogSeedPath: getEnv("CATALOG_SEED_PATH", "data/songs.json"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", "logs/songbook.log"),
	}
}
