package server

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"songbook/config"
	"songbook/core/admin"
	"songbook/core/catalog"
	"songbook/db"
	"songbook/logger"
	"songbook/model"
	"songbook/repository"
	"songbook/storage"

	"github.com/gorilla/mux"
	"github.com/minio/minio-go/v7"
)

// Start initializes dependencies and runs the HTTP server until interrupted.
func Start() {
	cfg := config.Load()

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if cfg.AudioStoreBackend != "http" {
		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("Failed to initialize MinIO: %v", err)
		}
	}

	if err := db.ConnectDB(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.DB.Close()

	if err := db.ConnectGormDB(cfg); err != nil {
		log.Fatalf("Failed to connect to database with GORM: %v", err)
	}
	defer db.CloseGormDB()

	if err := db.ConnectRedis(cfg); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer db.CloseRedis()
	log.Println("Successfully connected to Redis")

	if err := db.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := db.AutoMigrateModels(&model.Song{}); err != nil {
		log.Fatalf("Failed to migrate models: %v", err)
	}

	objectStore, err := storage.NewObjectStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}

	audioRepo := repository.NewAudioRepository(objectStore, repository.NewMySQLAttachmentStore(db.DB))
	songRepo := repository.NewGormSongRepository(db.GormDB)

	cat := catalog.New(songRepo, db.RedisClient, cfg.CatalogSeedPath)
	seedCtx, cancelSeed := context.WithCancel(context.Background())
	defer cancelSeed()
	if err := cat.LoadSeed(seedCtx); err != nil {
		// A missing seed file is not fatal; the catalog may already be in the
		// database.
		logger.Warn("catalog seed not loaded", logger.ErrorField(err))
	}
	go func() {
		if err := cat.Watch(seedCtx); err != nil {
			logger.Warn("catalog watcher stopped", logger.ErrorField(err))
		}
	}()

	gate, err := admin.NewGate(cfg.AdminPasscode, cfg.AdminTokenSecret,
		time.Duration(cfg.AdminTokenTTLMin)*time.Minute,
		admin.NewRedisRevocationStore(db.RedisClient))
	if err != nil {
		log.Fatalf("Failed to initialize admin gate: %v", err)
	}

	apiHandler := NewAPIHandler(audioRepo, cat, gate, cfg)
	server.Handler = NewRouter(apiHandler, cfg)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s...", cfg.HTTPAddr)
		log.Println("Browse songs via GET /api/songs")
		log.Println("Upload audio via POST /api/songs/{id}/audio")
		log.Println("Playback sessions via GET /api/player/ws")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// NewRouter builds the route table. Split out of Start so tests can exercise
// the handlers without the full dependency init.
func NewRouter(apiHandler *APIHandler, cfg *config.Config) *mux.Router {
	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request handled",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Duration("elapsed", time.Since(start)))
		})
	})

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Song catalog
	router.HandleFunc("/api/songs", apiHandler.GetSongsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/{id}", apiHandler.GetSongHandler).Methods(http.MethodGet)

	// Audio attachment lifecycle
	router.HandleFunc("/api/songs/{id}/audio", apiHandler.GetAudioHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/{id}/audio", apiHandler.UploadAudioHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/songs/{id}/audio", apiHandler.AdminMiddleware(apiHandler.DeleteAudioHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/uploads/{uploadId}", apiHandler.UploadProgressHandler).Methods(http.MethodGet)

	// Admin gate
	router.HandleFunc("/api/admin/login", apiHandler.AdminLoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/logout", apiHandler.AdminLogoutHandler).Methods(http.MethodPost)

	// Playback session
	router.HandleFunc("/api/player/ws", apiHandler.PlayerSessionHandler).Methods(http.MethodGet)

	// MinIO passthrough for locally-hosted blobs
	router.PathPrefix("/static/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		objectPath := strings.TrimPrefix(r.URL.Path, "/static/")
		client := storage.GetMinioClient()
		if client == nil {
			http.Error(w, "MinIO client not available", http.StatusInternalServerError)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		object, err := client.GetObject(ctx, cfg.MinioBucket, objectPath, minio.GetObjectOptions{})
		if err != nil {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		defer object.Close()

		contentType := "application/octet-stream"
		if strings.HasPrefix(objectPath, "audio/") {
			contentType = "audio/mpeg"
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "public, max-age=31536000")

		if _, err := io.Copy(w, object); err != nil {
			log.Printf("Error serving file from MinIO: %v", err)
		}
	})

	return router
}
