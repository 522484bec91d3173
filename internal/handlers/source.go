package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"lingua-backend/internal/middleware"
	"lingua-backend/internal/models"
	"lingua-backend/internal/repository"
	"lingua-backend/internal/services"
)

const (
	maxUploadBytes = 20 * 1024 * 1024
	maxTextRunes   = 200000
)

type sourceRepository interface {
	Create(ctx context.Context, s *models.Source) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Source, error)
}

// SourceHandler accepts study material. Every source is processed into plain text by a
// source-processing job before flashcards can be generated from it.
type SourceHandler struct {
	sourceRepo  sourceRepository
	queue       jobEnqueuer
	storagePath string
}

func NewSourceHandler(sourceRepo *repository.SourceRepo, queue *services.JobQueue, storagePath string) *SourceHandler {
	return &SourceHandler{
		sourceRepo:  sourceRepo,
		queue:       queue,
		storagePath: storagePath,
	}
}

func (h *SourceHandler) CreateText(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTextSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	body := strings.TrimSpace(req.Body)
	fields := make(map[string]string)
	if body == "" {
		fields["body"] = "body is required"
	} else if utf8.RuneCountInString(body) > maxTextRunes {
		fields["body"] = fmt.Sprintf("body must be at most %d characters", maxTextRunes)
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	// An empty title is filled in when the source is processed.
	h.create(w, r, &models.Source{
		Type:  models.SourceTypeText,
		Title: strings.TrimSpace(req.Title),
		Body:  &body,
	})
}

func (h *SourceHandler) CreateURL(w http.ResponseWriter, r *http.Request) {
	var req models.CreateURLSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	pageURL := strings.TrimSpace(req.URL)
	if !isWebURL(pageURL) {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"url": "url must be an http or https address"}, r))
		return
	}

	h.create(w, r, &models.Source{
		Type:      models.SourceTypeURL,
		Title:     pageURL,
		SourceURL: &pageURL,
	})
}

func (h *SourceHandler) CreateYouTube(w http.ResponseWriter, r *http.Request) {
	var req models.CreateURLSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	videoID := services.ExtractVideoID(req.URL)
	if videoID == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid YouTube URL", r))
		return
	}

	metaBytes, _ := json.Marshal(models.YouTubeMetadata{
		VideoID:      videoID,
		ThumbnailURL: "https://img.youtube.com/vi/" + videoID + "/hqdefault.jpg",
		Language:     strings.TrimSpace(req.Language),
	})
	sourceURL := req.URL

	h.create(w, r, &models.Source{
		Type:         models.SourceTypeYouTube,
		Title:        "YouTube Video: " + videoID,
		SourceURL:    &sourceURL,
		MetadataJSON: metaBytes,
	})
}

func (h *SourceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File size exceeds 20MB limit", r))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !slices.Contains(services.SupportedUploadExtensions, ext) {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResp("UNSUPPORTED_FORMAT", "Only PDF and TXT files are supported", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	relPath := filepath.Join("users", userID.String(), "uploads", uuid.New().String()+ext)
	if err := h.saveUpload(relPath, file); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}

	sourceType := models.SourceTypeText
	if ext == ".pdf" {
		sourceType = models.SourceTypePDF
	}

	h.create(w, r, &models.Source{
		Type:     sourceType,
		Title:    strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename)),
		FilePath: &relPath,
	})
}

func (h *SourceHandler) saveUpload(relPath string, src io.Reader) error {
	fullPath := filepath.Join(h.storagePath, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return err
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(fullPath)
		return err
	}
	return dst.Close()
}

// create stores the source and queues its processing job.
func (h *SourceHandler) create(w http.ResponseWriter, r *http.Request, source *models.Source) {
	source.UserID = middleware.GetUserID(r.Context())
	source.Status = "pending"

	if err := h.sourceRepo.Create(r.Context(), source); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create source", r))
		return
	}

	job := &models.Job{
		UserID:      source.UserID,
		Type:        models.JobTypeSourceProcessing,
		ReferenceID: source.ID,
	}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"source_id": source.ID,
		"job_id":    job.ID,
		"source":    source,
	})
}

func (h *SourceHandler) GetSource(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid source ID", r))
		return
	}

	source, err := h.sourceRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Source not found", r))
		return
	}

	if source.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return
	}

	writeJSON(w, http.StatusOK, source)
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
