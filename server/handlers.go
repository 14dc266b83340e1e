package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"songbook/config"
	"songbook/core/admin"
	"songbook/core/catalog"
	"songbook/core/player"
	"songbook/logger"
	"songbook/repository"
)

// APIHandler handles all API requests.
type APIHandler struct {
	audioRepo repository.AudioRepository
	catalog   *catalog.Catalog
	gate      *admin.Gate
	players   *player.Manager
	uploads   *UploadTracker
	cfg       *config.Config

	// at most one in-flight upload per song
	inflightMu sync.Mutex
	inflight   map[int64]bool
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(
	audioRepo repository.AudioRepository,
	cat *catalog.Catalog,
	gate *admin.Gate,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		audioRepo: audioRepo,
		catalog:   cat,
		gate:      gate,
		players:   player.NewManager(),
		uploads:   NewUploadTracker(),
		cfg:       cfg,
		inflight:  make(map[int64]bool),
	}
}

// respondJSON writes a JSON body with the given status.
func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logger.Error("failed to encode response", logger.ErrorField(err))
		}
	}
}

// respondError writes an inline error message. Nothing in this subsystem is
// fatal; every failure surfaces as a renderable message.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// AdminMiddleware requires a valid admin token on the request.
func (h *APIHandler) AdminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "Admin token required")
			return
		}
		if err := h.gate.Check(r.Context(), token); err != nil {
			logger.Warn("admin token rejected", logger.ErrorField(err))
			respondError(w, http.StatusUnauthorized, "Invalid admin token")
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
