package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	SourceTypeText    = "text"
	SourceTypeURL     = "url"
	SourceTypePDF     = "pdf"
	SourceTypeYouTube = "youtube"
)

type Source struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         string          `json:"type"`   // "text" | "url" | "pdf" | "youtube"
	Status       string          `json:"status"` // "pending" | "processing" | "completed" | "failed"
	Title        string          `json:"title"`
	SourceURL    *string         `json:"source_url"`
	FilePath     *string         `json:"file_path"`
	Body         *string         `json:"body"`
	MetadataJSON json.RawMessage `json:"metadata"`
	CreatedAt    time.Time       `json:"created_at"`
}

type CreateTextSourceRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type CreateURLSourceRequest struct {
	URL      string `json:"url"`
	Language string `json:"language"` // caption language for YouTube sources
}

type YouTubeMetadata struct {
	VideoID      string `json:"video_id"`
	ThumbnailURL string `json:"thumbnail_url"`
	Language     string `json:"language,omitempty"`
}
