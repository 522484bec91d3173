package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"lingua-backend/internal/models"
)

type stubSources struct {
	mu       sync.Mutex
	sources  map[uuid.UUID]*models.Source
	statuses []string
	onGet    func(s *models.Source)
}

func (s *stubSources) GetByID(ctx context.Context, id uuid.UUID) (*models.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return nil, errors.New("no rows in result set")
	}
	if s.onGet != nil {
		s.onGet(src)
	}
	cp := *src
	return &cp, nil
}

func (s *stubSources) UpdateBody(ctx context.Context, id uuid.UUID, title, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.sources[id]
	src.Body = &body
	if title != "" {
		src.Title = title
	}
	src.Status = "completed"
	return nil
}

func (s *stubSources) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	if src, ok := s.sources[id]; ok {
		src.Status = status
	}
	return nil
}

type stubDecks struct {
	deck  *models.FlashcardDeck
	cards []models.FlashcardCard
}

func (s *stubDecks) GetDeckByID(ctx context.Context, id uuid.UUID) (*models.FlashcardDeck, error) {
	if s.deck == nil || s.deck.ID != id {
		return nil, errors.New("no rows in result set")
	}
	return s.deck, nil
}

func (s *stubDecks) UpdateDeckTitle(ctx context.Context, id uuid.UUID, title string) error {
	s.deck.Title = title
	return nil
}

func (s *stubDecks) CreateCards(ctx context.Context, deckID uuid.UUID, cards []models.FlashcardCard) error {
	s.cards = cards
	s.deck.CardCount = len(cards)
	return nil
}

type jobUpdate struct {
	status  string
	retries int
}

type stubJobs struct {
	updates []jobUpdate
}

func (s *stubJobs) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	s.updates = append(s.updates, jobUpdate{status: status})
	return nil
}

func (s *stubJobs) RecordFailure(ctx context.Context, id uuid.UUID, status, errMsg string, retryCount int) error {
	s.updates = append(s.updates, jobUpdate{status: status, retries: retryCount})
	return nil
}

func (s *stubJobs) last() jobUpdate { return s.updates[len(s.updates)-1] }

type stubRequeuer struct {
	delays []time.Duration
}

func (s *stubRequeuer) Requeue(job *models.Job, delay time.Duration) {
	s.delays = append(s.delays, delay)
}

type stubPublisher struct {
	types []string
}

func (s *stubPublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	s.types = append(s.types, msg.Type)
}

func (s *stubPublisher) last() string { return s.types[len(s.types)-1] }

type stubYouTube struct {
	languages []string
	err       error
}

func (s *stubYouTube) GetTranscript(videoID string, languages []string) (string, error) {
	s.languages = languages
	if s.err != nil {
		return "", s.err
	}
	return "hola a todos", nil
}

func (s *stubYouTube) GetVideoTitle(videoID string) (string, error) {
	return "Spanish lesson 1", nil
}

type stubFiles struct{ err error }

func (s stubFiles) ExtractTextFromPath(path string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "texto del archivo", nil
}

type stubPages struct{}

func (stubPages) FetchText(ctx context.Context, pageURL string) (string, string, error) {
	return "", "article text", nil
}

type stubGenerator struct {
	cfg   models.GenerateFlashcardsRequest
	input string
	err   error
}

func (s *stubGenerator) GenerateFlashcards(ctx context.Context, cfg models.GenerateFlashcardsRequest, content string) ([]models.FlashcardCard, error) {
	s.cfg, s.input = cfg, content
	if s.err != nil {
		return nil, s.err
	}
	return []models.FlashcardCard{{Question: "hola", Answer: "hello"}, {Question: "adiós", Answer: "goodbye"}}, nil
}

func (s *stubGenerator) SuggestTitle(ctx context.Context, content, fallback string) string {
	return "Suggested"
}

type poolFixture struct {
	pool      *Pool
	sources   *stubSources
	decks     *stubDecks
	jobs      *stubJobs
	queue     *stubRequeuer
	notifier  *stubPublisher
	youtube   *stubYouTube
	generator *stubGenerator
}

func newPoolFixture() *poolFixture {
	f := &poolFixture{
		sources:   &stubSources{sources: map[uuid.UUID]*models.Source{}},
		decks:     &stubDecks{},
		jobs:      &stubJobs{},
		queue:     &stubRequeuer{},
		notifier:  &stubPublisher{},
		youtube:   &stubYouTube{},
		generator: &stubGenerator{},
	}
	f.pool = &Pool{
		sources:     f.sources,
		decks:       f.decks,
		jobs:        f.jobs,
		queue:       f.queue,
		notifier:    f.notifier,
		youtube:     f.youtube,
		files:       stubFiles{},
		pages:       stubPages{},
		generator:   f.generator,
		storagePath: "/data",
		pollEvery:   time.Millisecond,
	}
	return f
}

func (f *poolFixture) addSource(src *models.Source) *models.Job {
	src.ID = uuid.New()
	f.sources.sources[src.ID] = src
	return &models.Job{ID: uuid.New(), UserID: src.UserID, Type: models.JobTypeSourceProcessing, ReferenceID: src.ID, MaxRetries: 3}
}

func strPtr(s string) *string { return &s }

func TestPool_ProcessSource(t *testing.T) {
	tests := []struct {
		name      string
		source    *models.Source
		wantTitle string
		wantBody  string
	}{
		{"text body", &models.Source{Type: models.SourceTypeText, Title: "Notes", Body: strPtr("  uno \n\n\n dos ")}, "Notes", "uno\n\ndos"},
		{"untitled text", &models.Source{Type: models.SourceTypeText, Body: strPtr("uno")}, "Suggested", "uno"},
		{"uploaded txt", &models.Source{Type: models.SourceTypeText, Title: "Lesson", FilePath: strPtr("users/u/uploads/a.txt")}, "Lesson", "texto del archivo"},
		{"pdf", &models.Source{Type: models.SourceTypePDF, Title: "Book", FilePath: strPtr("users/u/uploads/b.pdf")}, "Book", "texto del archivo"},
		{"url without page title", &models.Source{Type: models.SourceTypeURL, Title: "https://example.com", SourceURL: strPtr("https://example.com")}, "https://example.com", "article text"},
		{"youtube", &models.Source{
			Type:         models.SourceTypeYouTube,
			Title:        "YouTube Video: dQw4w9WgXcQ",
			MetadataJSON: json.RawMessage(`{"video_id":"dQw4w9WgXcQ","language":"es"}`),
		}, "Spanish lesson 1", "hola a todos"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newPoolFixture()
			job := f.addSource(tc.source)

			f.pool.run(context.Background(), job)

			src := f.sources.sources[job.ReferenceID]
			if src.Status != "completed" {
				t.Fatalf("expected source completed, got %s", src.Status)
			}
			if src.Title != tc.wantTitle || *src.Body != tc.wantBody {
				t.Errorf("expected %q / %q, got %q / %q", tc.wantTitle, tc.wantBody, src.Title, *src.Body)
			}
			if f.jobs.last().status != "completed" || f.notifier.last() != "completed" {
				t.Errorf("expected job completed, got %+v / %s", f.jobs.last(), f.notifier.last())
			}
		})
	}
}

func TestPool_YouTubeCaptionLanguage(t *testing.T) {
	f := newPoolFixture()
	job := f.addSource(&models.Source{
		Type:         models.SourceTypeYouTube,
		MetadataJSON: json.RawMessage(`{"video_id":"dQw4w9WgXcQ","language":"ja"}`),
	})

	f.pool.run(context.Background(), job)

	if len(f.youtube.languages) == 0 || f.youtube.languages[0] != "ja" {
		t.Errorf("expected requested caption language first, got %v", f.youtube.languages)
	}
}

func TestPool_TransientFailureRetries(t *testing.T) {
	f := newPoolFixture()
	f.youtube.err = errors.New("captions temporarily unavailable")
	job := f.addSource(&models.Source{
		Type:         models.SourceTypeYouTube,
		MetadataJSON: json.RawMessage(`{"video_id":"dQw4w9WgXcQ"}`),
	})

	f.pool.run(context.Background(), job)

	if got := f.jobs.last(); got.status != "pending" || got.retries != 1 {
		t.Fatalf("expected job back to pending with one retry, got %+v", got)
	}
	if len(f.queue.delays) != 1 || f.queue.delays[0] != 2*time.Second {
		t.Errorf("expected one requeue after 2s, got %v", f.queue.delays)
	}
	if f.sources.sources[job.ReferenceID].Status == "failed" {
		t.Error("source should not be failed while retries remain")
	}

	job.RetryCount = 2
	f.pool.run(context.Background(), job)

	if got := f.jobs.last(); got.status != "failed" || got.retries != 3 {
		t.Fatalf("expected job failed after max retries, got %+v", got)
	}
	if f.sources.sources[job.ReferenceID].Status != "failed" || f.notifier.last() != "error" {
		t.Error("expected source failed and error event published")
	}
}

func TestPool_PermanentFailureSkipsRetry(t *testing.T) {
	f := newPoolFixture()
	f.pool.files = stubFiles{err: errors.New("malformed pdf")}
	job := f.addSource(&models.Source{Type: models.SourceTypePDF, FilePath: strPtr("users/u/uploads/c.pdf")})

	f.pool.run(context.Background(), job)

	if got := f.jobs.last(); got.status != "failed" {
		t.Fatalf("expected immediate failure, got %+v", got)
	}
	if len(f.queue.delays) != 0 {
		t.Error("permanent failures should not be requeued")
	}
}

func (f *poolFixture) addDeck(source *models.Source, cfg models.GenerateFlashcardsRequest) *models.Job {
	source.ID = uuid.New()
	f.sources.sources[source.ID] = source
	f.decks.deck = &models.FlashcardDeck{ID: uuid.New(), SourceID: &source.ID, Title: "YouTube Video: x"}
	cfg.SourceID = source.ID
	raw, _ := json.Marshal(cfg)
	return &models.Job{ID: uuid.New(), Type: models.JobTypeFlashcardGeneration, ReferenceID: f.decks.deck.ID, ConfigJSON: raw, MaxRetries: 3}
}

func TestPool_GenerateFlashcards(t *testing.T) {
	f := newPoolFixture()
	job := f.addDeck(&models.Source{Status: "completed", Title: "Spanish lesson 1", Body: strPtr("hola a todos")},
		models.GenerateFlashcardsRequest{NumCards: 2, Language: "Spanish"})

	f.pool.run(context.Background(), job)

	if len(f.decks.cards) != 2 {
		t.Fatalf("expected 2 cards saved, got %d", len(f.decks.cards))
	}
	if f.generator.input != "hola a todos" || f.generator.cfg.Language != "Spanish" {
		t.Errorf("generator got %q / %+v", f.generator.input, f.generator.cfg)
	}
	if f.decks.deck.Title != "Spanish lesson 1" {
		t.Errorf("expected deck to take the processed source title, got %q", f.decks.deck.Title)
	}
	if f.jobs.last().status != "completed" {
		t.Errorf("expected job completed, got %+v", f.jobs.last())
	}

	f.generator.input = ""
	f.pool.run(context.Background(), job)
	if f.generator.input != "" {
		t.Error("a deck that already has cards should not be generated again")
	}
}

func TestPool_GenerateKeepsExplicitTitle(t *testing.T) {
	f := newPoolFixture()
	job := f.addDeck(&models.Source{Status: "completed", Title: "Spanish lesson 1", Body: strPtr("hola")},
		models.GenerateFlashcardsRequest{NumCards: 2, Title: "My verbs"})
	f.decks.deck.Title = "My verbs"

	f.pool.run(context.Background(), job)

	if f.decks.deck.Title != "My verbs" {
		t.Errorf("explicit title should be kept, got %q", f.decks.deck.Title)
	}
}

func TestPool_GenerateWaitsForSource(t *testing.T) {
	f := newPoolFixture()
	source := &models.Source{Status: "pending"}
	job := f.addDeck(source, models.GenerateFlashcardsRequest{NumCards: 2})

	polls := 0
	f.sources.onGet = func(s *models.Source) {
		polls++
		if polls == 3 {
			s.Status = "completed"
			s.Body = strPtr("listo")
		}
	}

	f.pool.run(context.Background(), job)

	if f.generator.input != "listo" {
		t.Fatalf("expected generation after the source became ready, got %q", f.generator.input)
	}
}

func TestPool_GenerateFromFailedSource(t *testing.T) {
	f := newPoolFixture()
	job := f.addDeck(&models.Source{Status: "failed"}, models.GenerateFlashcardsRequest{NumCards: 2})

	f.pool.run(context.Background(), job)

	if f.jobs.last().status != "failed" || len(f.queue.delays) != 0 {
		t.Errorf("expected permanent failure, got %+v / %v", f.jobs.last(), f.queue.delays)
	}
}
