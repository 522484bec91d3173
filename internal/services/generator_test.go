package services

import (
	"strings"
	"testing"

	"lingua-backend/internal/models"
)

func TestParseCardsJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"bare array", `[{"question":"猫","answer":"cat"}]`, 1},
		{"fenced", "```json\n[{\"question\":\"犬\",\"answer\":\"dog\"},{\"question\":\"鳥\",\"answer\":\"bird\"}]\n```", 2},
		{"wrapped in prose", `Here you go: [{"question":"a","answer":"b"}] enjoy`, 1},
		{"garbage", `not json at all`, 0},
		{"empty", ``, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseCardsJSON(tc.raw); len(got) != tc.want {
				t.Fatalf("expected %d cards, got %d (%v)", tc.want, len(got), got)
			}
		})
	}
}

func TestValidateCards_DropsBlankAndDuplicates(t *testing.T) {
	in := []cardJSON{
		{Question: " Hola ", Answer: " hello "},
		{Question: "hola", Answer: "hi"},
		{Question: "", Answer: "orphan"},
		{Question: "Adiós", Answer: ""},
		{Question: "Gracias", Answer: "thank you"},
	}

	got := validateCards(in, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 cards, got %d: %+v", len(got), got)
	}
	if got[0].Question != "Hola" || got[0].Answer != "hello" {
		t.Errorf("expected trimmed first card, got %+v", got[0])
	}
	if got[1].Question != "Gracias" {
		t.Errorf("expected second card Gracias, got %q", got[1].Question)
	}
}

func TestValidateCards_RespectsLimit(t *testing.T) {
	in := []cardJSON{{"a", "1"}, {"b", "2"}, {"c", "3"}}
	if got := validateCards(in, 2); len(got) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(got))
	}
}

func TestBuildFlashcardPrompt(t *testing.T) {
	cfg := models.GenerateFlashcardsRequest{NumCards: 12, Language: "Japanese"}
	prompt := buildFlashcardPrompt(cfg, "今日はいい天気です。")

	for _, want := range []string{"exactly 12 flashcards", "studying Japanese", "今日はいい天気です。", `"question"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("こんにちは", 3); got != "こんに" {
		t.Errorf("expected rune-safe truncation, got %q", got)
	}
	if got := truncateRunes("abc", 10); got != "abc" {
		t.Errorf("expected unchanged string, got %q", got)
	}
}
