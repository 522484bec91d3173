package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"lingua-backend/internal/middleware"
	"lingua-backend/internal/models"
	"lingua-backend/internal/repository"
	"lingua-backend/internal/services"
)

const maxCardsPerDeck = 50

type flashcardRepository interface {
	CreateDeck(ctx context.Context, d *models.FlashcardDeck) error
	GetDeckByID(ctx context.Context, id uuid.UUID) (*models.FlashcardDeck, error)
	GetDeckByShareCode(ctx context.Context, code string) (*models.FlashcardDeck, error)
	ListDecksByUser(ctx context.Context, userID uuid.UUID) ([]*models.FlashcardDeck, error)
	DeleteDeck(ctx context.Context, id uuid.UUID) error
	GetCardsByDeck(ctx context.Context, deckID uuid.UUID) ([]models.FlashcardCard, error)
	GetDeckStats(ctx context.Context, deckID uuid.UUID) (*models.DeckStats, error)
}

type sourceReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Source, error)
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

type liveSessionDeleter interface {
	Delete(ctx context.Context, userID, deckID uuid.UUID) error
}

type FlashcardHandler struct {
	flashRepo  flashcardRepository
	sourceRepo sourceReader
	queue      jobEnqueuer
	sessions   liveSessionDeleter
}

func NewFlashcardHandler(flashRepo *repository.FlashcardRepo, sourceRepo *repository.SourceRepo, queue *services.JobQueue, sessions *repository.LiveSessionRepo) *FlashcardHandler {
	return &FlashcardHandler{
		flashRepo:  flashRepo,
		sourceRepo: sourceRepo,
		queue:      queue,
		sessions:   sessions,
	}
}

func validateGenerateRequest(req *models.GenerateFlashcardsRequest) map[string]string {
	fields := make(map[string]string)
	if req.SourceID == uuid.Nil {
		fields["source_id"] = "source_id is required"
	}
	if req.NumCards < 1 || req.NumCards > maxCardsPerDeck {
		fields["num_cards"] = "num_cards must be between 1 and 50"
	}
	req.Title = strings.TrimSpace(req.Title)
	if utf8.RuneCountInString(req.Title) > 200 {
		fields["title"] = "title must be at most 200 characters"
	}
	req.Language = strings.TrimSpace(req.Language)
	if len(req.Language) > 32 {
		fields["language"] = "language is too long"
	}
	return fields
}

func (h *FlashcardHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateFlashcardsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if fields := validateGenerateRequest(&req); len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	userID := middleware.GetUserID(r.Context())

	source, err := h.sourceRepo.GetByID(r.Context(), req.SourceID)
	if err != nil || source.UserID != userID {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Source not found", r))
		return
	}
	if source.Status == "failed" {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Source could not be processed", r))
		return
	}

	title := req.Title
	if title == "" {
		title = source.Title
	}

	deck := &models.FlashcardDeck{
		UserID:   userID,
		SourceID: &req.SourceID,
		Title:    title,
		Language: req.Language,
	}
	if err := h.flashRepo.CreateDeck(r.Context(), deck); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create deck", r))
		return
	}

	configBytes, _ := json.Marshal(req)
	job := &models.Job{
		UserID:      userID,
		Type:        models.JobTypeFlashcardGeneration,
		ReferenceID: deck.ID,
		ConfigJSON:  configBytes,
	}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":  job.ID,
		"deck_id": deck.ID,
	})
}

func (h *FlashcardHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := h.flashRepo.ListDecksByUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch decks", r))
		return
	}
	if decks == nil {
		decks = []*models.FlashcardDeck{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"decks": decks})
}

// ownedDeck loads the deck named by the {id} param and checks it belongs to the caller. It writes
// the error response itself and returns nil on failure.
func (h *FlashcardHandler) ownedDeck(w http.ResponseWriter, r *http.Request) *models.FlashcardDeck {
	id, ok := idParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid deck ID", r))
		return nil
	}

	deck, err := h.flashRepo.GetDeckByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Deck not found", r))
		return nil
	}

	if deck.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil
	}
	return deck
}

func (h *FlashcardHandler) writeDeck(w http.ResponseWriter, r *http.Request, deck *models.FlashcardDeck) {
	cards, err := h.flashRepo.GetCardsByDeck(r.Context(), deck.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch cards", r))
		return
	}
	if cards == nil {
		cards = []models.FlashcardCard{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deck":  deck,
		"cards": cards,
	})
}

func (h *FlashcardHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	if deck := h.ownedDeck(w, r); deck != nil {
		h.writeDeck(w, r, deck)
	}
}

// GetSharedDeck returns a deck by its share code to any signed-in user.
func (h *FlashcardHandler) GetSharedDeck(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid share code", r))
		return
	}

	deck, err := h.flashRepo.GetDeckByShareCode(r.Context(), code)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Deck not found", r))
		return
	}
	h.writeDeck(w, r, deck)
}

func (h *FlashcardHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	deck := h.ownedDeck(w, r)
	if deck == nil {
		return
	}

	if err := h.flashRepo.DeleteDeck(r.Context(), deck.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete deck", r))
		return
	}
	// The live session would otherwise linger until its TTL.
	h.sessions.Delete(r.Context(), deck.UserID, deck.ID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Deck deleted"})
}

func (h *FlashcardHandler) GetDeckStats(w http.ResponseWriter, r *http.Request) {
	deck := h.ownedDeck(w, r)
	if deck == nil {
		return
	}

	stats, err := h.flashRepo.GetDeckStats(r.Context(), deck.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch stats", r))
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
