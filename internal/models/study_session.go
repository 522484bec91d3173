package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"lingua-backend/internal/learning"
)

type StudySession struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	DeckID          uuid.UUID       `json:"deck_id"`
	StartedAt       time.Time       `json:"started_at"`
	LastHeartbeatAt time.Time       `json:"last_heartbeat_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
	DurationSeconds int             `json:"duration_seconds"`
	ResultJSON      json.RawMessage `json:"result"`
	CreatedAt       time.Time       `json:"created_at"`
}

// StudyResult is stored on a study session once its deck is completed.
type StudyResult struct {
	TotalCards       int  `json:"total_cards"`
	TotalOK          int  `json:"total_ok"`
	TotalNG          int  `json:"total_ng"`
	ThoroughLearning bool `json:"thorough_learning"`
}

// LearningState is what the study UI renders after every request.
type LearningState struct {
	DeckID             uuid.UUID                     `json:"deck_id"`
	StudySessionID     uuid.UUID                     `json:"study_session_id"`
	CurrentCard        *learning.Card                `json:"current_card"`
	IsCompleted        bool                          `json:"is_completed"`
	ProgressPercentage int                           `json:"progress_percentage"`
	Remaining          int                           `json:"remaining"`
	Total              int                           `json:"total"`
	CardStats          map[string]learning.CardStats `json:"card_stats"`
	Config             learning.Config               `json:"config"`
}
