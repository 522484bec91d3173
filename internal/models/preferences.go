package models

import (
	"time"

	"github.com/google/uuid"
)

// StudyPreferences are the per-user flags applied to every learning session.
type StudyPreferences struct {
	UserID           uuid.UUID `json:"user_id"`
	Shuffle          bool      `json:"shuffle"`
	ThoroughLearning bool      `json:"thorough_learning"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type UpdatePreferencesRequest struct {
	Shuffle          *bool `json:"shuffle"`
	ThoroughLearning *bool `json:"thorough_learning"`
}
