package models

import (
	"time"

	"github.com/google/uuid"
)

type FlashcardDeck struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	SourceID  *uuid.UUID `json:"source_id"`
	Title     string     `json:"title"`
	Language  string     `json:"language"`
	ShareCode string     `json:"share_code"`
	CardCount int        `json:"card_count"`
	CreatedAt time.Time  `json:"created_at"`
}

type FlashcardCard struct {
	ID        uuid.UUID `json:"id"`
	DeckID    uuid.UUID `json:"deck_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Position  int       `json:"position"`
	OKCount   int       `json:"ok_count"`
	NGCount   int       `json:"ng_count"`
	CreatedAt time.Time `json:"created_at"`
}

type GenerateFlashcardsRequest struct {
	SourceID uuid.UUID `json:"source_id"`
	Title    string    `json:"title"`
	NumCards int       `json:"num_cards"`
	Language string    `json:"language"` // language the learner is studying, e.g. "ja"
}

type DeckStats struct {
	TotalCards  int     `json:"total_cards"`
	PassedCards int     `json:"passed_cards"`
	TotalOK     int     `json:"total_ok"`
	TotalNG     int     `json:"total_ng"`
	PassRate    float64 `json:"pass_rate"`
}
