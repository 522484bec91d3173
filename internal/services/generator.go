package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"lingua-backend/internal/models"
)

// maxSourceChars caps how much source text goes into one prompt.
const maxSourceChars = 60000

// GeneratorService turns source text into flashcards with Gemini.
type GeneratorService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{} // Token bucket
}

func NewGeneratorService(apiKey, modelName string, concurrentReqs int) (*GeneratorService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.4)
	model.SetTopP(0.95)
	model.ResponseMIMEType = "application/json"

	if concurrentReqs < 1 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeneratorService{
		client:   client,
		model:    model,
		rateChan: rateChan,
	}, nil
}

func (s *GeneratorService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeneratorService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeneratorService) releaseRate() {
	s.rateChan <- struct{}{}
}

// GenerateFlashcards asks Gemini for cfg.NumCards question/answer pairs drawn from content.
func (s *GeneratorService) GenerateFlashcards(ctx context.Context, cfg models.GenerateFlashcardsRequest, content string) ([]models.FlashcardCard, error) {
	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseRate()

	resp, err := s.model.GenerateContent(ctx, genai.Text(buildFlashcardPrompt(cfg, content)))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("WARNING: Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	cards := validateCards(parseCardsJSON(extractText(resp)), cfg.NumCards)
	if len(cards) == 0 {
		return nil, fmt.Errorf("Gemini returned no usable flashcards")
	}
	return cards, nil
}

// SuggestTitle returns a short deck title for content, or fallback if Gemini has none.
func (s *GeneratorService) SuggestTitle(ctx context.Context, content, fallback string) string {
	if err := s.acquireRate(ctx); err != nil {
		return fallback
	}
	defer s.releaseRate()

	prompt := fmt.Sprintf(`Return ONLY a valid JSON object {"title": "title under 60 chars"} naming the topic of this text:

%s`, truncateRunes(content, 2000))

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		log.Printf("title suggestion failed: %v", err)
		return fallback
	}

	var meta struct {
		Title string `json:"title"`
	}
	if json.Unmarshal([]byte(stripCodeFence(extractText(resp))), &meta) != nil {
		return fallback
	}
	if title := strings.TrimSpace(meta.Title); title != "" {
		return truncateRunes(title, 120)
	}
	return fallback
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}

type cardJSON struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// parseCardsJSON accepts a bare JSON array, optionally fenced or wrapped in prose.
func parseCardsJSON(raw string) []cardJSON {
	raw = stripCodeFence(raw)

	var cards []cardJSON
	if err := json.Unmarshal([]byte(raw), &cards); err == nil {
		return cards
	}

	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), &cards); err == nil {
			return cards
		}
	}
	return nil
}

// validateCards drops blank and repeated questions and keeps at most limit cards.
func validateCards(in []cardJSON, limit int) []models.FlashcardCard {
	seen := make(map[string]bool, len(in))
	var out []models.FlashcardCard
	for _, c := range in {
		q := strings.TrimSpace(c.Question)
		a := strings.TrimSpace(c.Answer)
		if q == "" || a == "" {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.FlashcardCard{Question: q, Answer: a})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func buildFlashcardPrompt(cfg models.GenerateFlashcardsRequest, content string) string {
	var b strings.Builder

	b.WriteString("You are an expert language teacher creating flashcards for a learner.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")
	b.WriteString(fmt.Sprintf("Generate exactly %d flashcards.\n", cfg.NumCards))

	if cfg.Language != "" {
		b.WriteString(fmt.Sprintf("The learner is studying %s. Questions are words, phrases or sentences in %s taken from the content; answers give the meaning and a short usage note in English.\n", cfg.Language, cfg.Language))
	} else {
		b.WriteString("Questions test one fact or term from the content; answers are concise and self-contained.\n")
	}

	b.WriteString(`
Rules:
- Question must be under 20 words
- Answer must be under 60 words
- No two cards may test the same item

JSON schema per card:
{"question": "string", "answer": "string"}
`)

	b.WriteString("\n---CONTENT---\n")
	b.WriteString(truncateRunes(content, maxSourceChars))
	b.WriteString("\n---END---\n")

	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
