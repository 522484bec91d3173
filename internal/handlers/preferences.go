package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"lingua-backend/internal/middleware"
	"lingua-backend/internal/models"
	"lingua-backend/internal/repository"
)

type preferencesRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.StudyPreferences, error)
	Save(ctx context.Context, p *models.StudyPreferences) error
}

// PreferencesHandler reads and writes the shuffle and thorough-learning toggles. Live sessions
// pick up a change on their next request.
type PreferencesHandler struct {
	prefsRepo preferencesRepository
}

func NewPreferencesHandler(prefsRepo *repository.PreferencesRepo) *PreferencesHandler {
	return &PreferencesHandler{prefsRepo: prefsRepo}
}

func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.prefsRepo.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load preferences", r))
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *PreferencesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdatePreferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	prefs, err := h.prefsRepo.Get(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load preferences", r))
		return
	}

	if req.Shuffle != nil {
		prefs.Shuffle = *req.Shuffle
	}
	if req.ThoroughLearning != nil {
		prefs.ThoroughLearning = *req.ThoroughLearning
	}

	if err := h.prefsRepo.Save(r.Context(), prefs); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update preferences", r))
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}
