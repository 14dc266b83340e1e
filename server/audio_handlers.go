package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"songbook/config"
	"songbook/logger"
	"songbook/repository"

	"github.com/gorilla/mux"
)

// UploadAudioHandler handles POST /api/songs/{id}/audio: multipart upload of
// one audio attachment. Picker and drag-drop clients converge here; the
// validation below is the single routine for both.
func (h *APIHandler) UploadAudioHandler(w http.ResponseWriter, r *http.Request) {
	songID, err := songIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid song id")
		return
	}

	logger.Info("audio upload started",
		logger.Int64("songId", songID),
		logger.String("remoteAddr", r.RemoteAddr),
		logger.Int64("contentLength", r.ContentLength))

	// One upload per song at a time. A stale upload finishing after a newer
	// one would silently win the metadata row otherwise.
	if !h.acquireUpload(songID) {
		respondError(w, http.StatusConflict, "An upload for this song is already in progress")
		return
	}
	defer h.releaseUpload(songID)

	// Multipart parse is bounded a little above the attachment ceiling so a
	// too-large file is rejected by our own check with a clear message.
	if err := r.ParseMultipartForm(config.MaxAudioUploadBytes + 1<<20); err != nil {
		logger.Error("failed to parse upload form", logger.ErrorField(err))
		respondError(w, http.StatusBadRequest, "Failed to parse upload form")
		return
	}

	file, header, err := r.FormFile("audioFile")
	if err != nil {
		if err == http.ErrMissingFile {
			respondError(w, http.StatusBadRequest, "Missing audio file. Please select a file to upload.")
		} else {
			respondError(w, http.StatusBadRequest, "Failed to process uploaded file")
		}
		return
	}
	defer file.Close()

	// Boundary validation: these never reach the repository, let alone the
	// network.
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") {
		logger.Warn("rejected non-audio upload",
			logger.Int64("songId", songID),
			logger.String("contentType", contentType),
			logger.String("filename", header.Filename))
		respondError(w, http.StatusBadRequest, "Please select a valid audio file (MP3, WAV, OGG, M4A)")
		return
	}
	if header.Size > config.MaxAudioUploadBytes {
		logger.Warn("rejected oversized upload",
			logger.Int64("songId", songID),
			logger.Int64("size", header.Size))
		respondError(w, http.StatusBadRequest, "File size too large! Please select a file smaller than 50MB.")
		return
	}

	uploadID := h.uploads.Start(header.Filename, header.Size)

	// The transfer is deliberately detached from the request context: closing
	// the dialog mid-upload must not abort the in-flight operation. It either
	// completes or fails on its own.
	audioURL, err := h.audioRepo.Save(context.Background(), songID, file, header.Size,
		contentType, header.Filename,
		func(transferred, total int64) {
			h.uploads.Update(uploadID, transferred, total)
		})
	if err != nil {
		h.uploads.Finish(uploadID, err.Error())
		respondSaveError(w, songID, err)
		return
	}
	h.uploads.Finish(uploadID, "")

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"uploadId": uploadID,
		"songId":   songID,
		"fileName": header.Filename,
		"size":     header.Size,
		"audioUrl": audioURL,
	})
}

// respondSaveError maps the repository error taxonomy onto HTTP statuses.
func respondSaveError(w http.ResponseWriter, songID int64, err error) {
	var vErr *repository.ValidationError
	var tErr *repository.TransportError
	var mErr *repository.MetadataError

	switch {
	case errors.As(err, &vErr):
		respondError(w, http.StatusBadRequest, vErr.Error())
	case errors.As(err, &tErr):
		logger.Error("upload transport failure", logger.Int64("songId", songID), logger.ErrorField(err))
		respondError(w, http.StatusBadGateway, "Failed to upload audio. Please try again.")
	case errors.As(err, &mErr):
		logger.Error("upload metadata failure", logger.Int64("songId", songID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Audio stored but could not be registered. Please retry the upload.")
	default:
		logger.Error("upload failed", logger.Int64("songId", songID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to upload audio. Please try again.")
	}
}

// GetAudioHandler handles GET /api/songs/{id}/audio. A song without audio is
// a normal empty result, not an error.
func (h *APIHandler) GetAudioHandler(w http.ResponseWriter, r *http.Request) {
	songID, err := songIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid song id")
		return
	}

	att, err := h.audioRepo.Get(r.Context(), songID)
	if err != nil {
		logger.Error("attachment lookup failed", logger.Int64("songId", songID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to look up audio attachment")
		return
	}
	if att == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"attachment": nil})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"attachment": att})
}

// DeleteAudioHandler handles DELETE /api/songs/{id}/audio. The admin gate is
// enforced by middleware before this runs.
func (h *APIHandler) DeleteAudioHandler(w http.ResponseWriter, r *http.Request) {
	songID, err := songIDFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid song id")
		return
	}

	if err := h.audioRepo.Delete(r.Context(), songID); err != nil {
		var mErr *repository.MetadataError
		if errors.As(err, &mErr) && mErr.Op == "delete" {
			// Blob already gone; the dangling row is detectable and a retry
			// will clean it up.
			logger.Error("attachment row left dangling", logger.Int64("songId", songID), logger.ErrorField(err))
			respondError(w, http.StatusInternalServerError, "Audio removed but its record remains; please retry.")
			return
		}
		logger.Error("attachment delete failed", logger.Int64("songId", songID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete audio attachment")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Audio attachment deleted"})
}

// UploadProgressHandler handles GET /api/uploads/{uploadId}.
func (h *APIHandler) UploadProgressHandler(w http.ResponseWriter, r *http.Request) {
	uploadID := mux.Vars(r)["uploadId"]
	progress := h.uploads.Get(uploadID)
	if progress == nil {
		respondError(w, http.StatusNotFound, "Unknown upload")
		return
	}
	respondJSON(w, http.StatusOK, progress)
}

func (h *APIHandler) acquireUpload(songID int64) bool {
	h.inflightMu.Lock()
	defer h.inflightMu.Unlock()

	if h.inflight[songID] {
		return false
	}
	h.inflight[songID] = true
	return true
}

func (h *APIHandler) releaseUpload(songID int64) {
	h.inflightMu.Lock()
	defer h.inflightMu.Unlock()

	delete(h.inflight, songID)
}

func songIDFromRequest(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid song id %q: %w", raw, err)
	}
	return id, nil
}
