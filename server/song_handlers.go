package server

import (
	"net/http"

	"songbook/logger"
)

// GetSongsHandler handles GET /api/songs. With ?q= it returns a flat search
// result; without, the catalog grouped by category.
func (h *APIHandler) GetSongsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	if query != "" {
		songs, err := h.catalog.Search(r.Context(), query)
		if err != nil {
			logger.Error("song search failed", logger.String("q", query), logger.ErrorField(err))
			respondError(w, http.StatusInternalServerError, "Failed to search songs")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"songs": songs})
		return
	}

	grouped, err := h.catalog.Grouped(r.Context())
	if err != nil {
		logger.Error("song listing failed", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to list songs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"categories": grouped})
}

// GetSongHandler handles GET /api/songs/{id}.
func (h *APIHandler) GetSongHandler(w http.ResponseWriter, r *http.Request) {
	songID, err := songIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid song id")
		return
	}

	song, err := h.catalog.Song(r.Context(), songID)
	if err != nil {
		logger.Error("song lookup failed", logger.Int64("songId", songID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to look up song")
		return
	}
	if song == nil {
		respondError(w, http.StatusNotFound, "Song not found")
		return
	}
	respondJSON(w, http.StatusOK, song)
}
