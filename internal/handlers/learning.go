package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"lingua-backend/internal/learning"
	"lingua-backend/internal/middleware"
	"lingua-backend/internal/models"
	"lingua-backend/internal/services"
)

type learningService interface {
	Start(ctx context.Context, userID, deckID uuid.UUID) (*models.LearningState, error)
	State(ctx context.Context, userID, deckID uuid.UUID) (*models.LearningState, error)
	Judge(ctx context.Context, userID, deckID uuid.UUID, result learning.Result) (*models.LearningState, error)
	Reset(ctx context.Context, userID, deckID uuid.UUID) (*models.LearningState, error)
}

// LearningHandler exposes the live learning session of a deck.
type LearningHandler struct {
	learning learningService
}

func NewLearningHandler(svc *services.LearningService) *LearningHandler {
	return &LearningHandler{learning: svc}
}

type learningOp func(ctx context.Context, userID, deckID uuid.UUID) (*models.LearningState, error)

func (h *LearningHandler) serve(w http.ResponseWriter, r *http.Request, op learningOp) {
	deckID, ok := idParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid deck ID", r))
		return
	}

	state, err := op(r.Context(), middleware.GetUserID(r.Context()), deckID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *LearningHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.learning.Start)
}

func (h *LearningHandler) State(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.learning.State)
}

func (h *LearningHandler) Pass(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, userID, deckID uuid.UUID) (*models.LearningState, error) {
		return h.learning.Judge(ctx, userID, deckID, learning.Pass)
	})
}

func (h *LearningHandler) Fail(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, userID, deckID uuid.UUID) (*models.LearningState, error) {
		return h.learning.Judge(ctx, userID, deckID, learning.Fail)
	})
}

func (h *LearningHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.learning.Reset)
}
