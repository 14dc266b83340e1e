package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"songbook/core/admin"
	"songbook/logger"
)

type adminLoginRequest struct {
	Passcode string `json:"passcode"`
}

// AdminLoginHandler handles POST /api/admin/login: passcode in, token out.
func (h *APIHandler) AdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.gate.Verify(req.Passcode)
	if err != nil {
		if errors.Is(err, admin.ErrBadPasscode) {
			logger.Warn("admin login rejected", logger.String("remoteAddr", r.RemoteAddr))
			respondError(w, http.StatusUnauthorized, "Invalid passcode. Please try again.")
			return
		}
		logger.Error("admin login failed", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to verify passcode")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// AdminLogoutHandler handles POST /api/admin/logout: revokes the presented token.
func (h *APIHandler) AdminLogoutHandler(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "Admin token required")
		return
	}
	if err := h.gate.Revoke(r.Context(), token); err != nil {
		logger.Warn("admin logout with invalid token", logger.ErrorField(err))
		respondError(w, http.StatusUnauthorized, "Invalid admin token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
