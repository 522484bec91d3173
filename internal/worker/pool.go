package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"lingua-backend/internal/models"
	"lingua-backend/internal/repository"
	"lingua-backend/internal/services"
)

const (
	sourceWaitTimeout = 2 * time.Minute
	sourcePollEvery   = 5 * time.Second
	jobLockTTL        = 10 * time.Minute
)

type sourceStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Source, error)
	UpdateBody(ctx context.Context, id uuid.UUID, title, body string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type deckStore interface {
	GetDeckByID(ctx context.Context, id uuid.UUID) (*models.FlashcardDeck, error)
	UpdateDeckTitle(ctx context.Context, id uuid.UUID, title string) error
	CreateCards(ctx context.Context, deckID uuid.UUID, cards []models.FlashcardCard) error
}

type jobStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	RecordFailure(ctx context.Context, id uuid.UUID, status, errMsg string, retryCount int) error
}

type requeuer interface {
	Requeue(job *models.Job, delay time.Duration)
}

type publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

type transcriptSource interface {
	GetTranscript(videoID string, languages []string) (string, error)
	GetVideoTitle(videoID string) (string, error)
}

type textExtractor interface {
	ExtractTextFromPath(path string) (string, error)
}

type pageFetcher interface {
	FetchText(ctx context.Context, pageURL string) (title, text string, err error)
}

type cardGenerator interface {
	GenerateFlashcards(ctx context.Context, cfg models.GenerateFlashcardsRequest, content string) ([]models.FlashcardCard, error)
	SuggestTitle(ctx context.Context, content, fallback string) string
}

// Pool consumes the job queues. Source-processing jobs turn uploads, pages and videos into plain
// text; flashcard-generation jobs turn that text into a deck's cards.
type Pool struct {
	redis       *redis.Client
	sources     sourceStore
	decks       deckStore
	jobs        jobStore
	queue       requeuer
	notifier    publisher
	youtube     transcriptSource
	files       textExtractor
	pages       pageFetcher
	generator   cardGenerator
	storagePath string
	workerCount int
	pollEvery   time.Duration
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	sourceRepo *repository.SourceRepo,
	flashRepo *repository.FlashcardRepo,
	jobRepo *repository.JobRepo,
	queue *services.JobQueue,
	notifier *services.Notifier,
	youtube *services.YouTubeService,
	fileExtract *services.FileExtractService,
	pages *services.WebPageService,
	generator *services.GeneratorService,
	storagePath string,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		sources:     sourceRepo,
		decks:       flashRepo,
		jobs:        jobRepo,
		queue:       queue,
		notifier:    notifier,
		youtube:     youtube,
		files:       fileExtract,
		pages:       pages,
		generator:   generator,
		storagePath: storagePath,
		workerCount: workerCount,
		pollEvery:   sourcePollEvery,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	queues := services.Queues()
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i, queues)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int, queues []string) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, queues...).Result()
		if err != nil || len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, id, jobLockTTL).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (type: %s, attempt %d)", id, job.ID, job.Type, job.RetryCount+1)
		p.run(ctx, &job)

		p.redis.Del(ctx, lockKey)
	}
}

// run executes one job and records its outcome.
func (p *Pool) run(ctx context.Context, job *models.Job) {
	p.jobs.UpdateStatus(ctx, job.ID, "processing")
	p.publishStep(ctx, job, 1, "Preparing")

	var err error
	switch job.Type {
	case models.JobTypeSourceProcessing:
		err = p.processSource(ctx, job)
	case models.JobTypeFlashcardGeneration:
		err = p.processFlashcards(ctx, job)
	default:
		err = permanent(fmt.Errorf("unknown job type: %s", job.Type))
	}

	if err != nil {
		p.handleFailure(ctx, job, err)
		return
	}
	p.handleSuccess(ctx, job)
}

func (p *Pool) publishStep(ctx context.Context, job *models.Job, step int, name string) {
	p.notifier.Publish(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID:    job.ID,
			Step:     step,
			StepName: name,
		},
	})
}

func (p *Pool) processSource(ctx context.Context, job *models.Job) error {
	source, err := p.sources.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get source: %w", err)
	}
	p.sources.UpdateStatus(ctx, source.ID, "processing")

	var title, body string
	switch source.Type {
	case models.SourceTypeText:
		if source.FilePath != nil {
			p.publishStep(ctx, job, 2, "Reading file")
			body, err = p.extractFile(*source.FilePath)
		} else if source.Body != nil {
			body = services.NormalizeText(*source.Body)
		}

	case models.SourceTypePDF:
		if source.FilePath == nil {
			return permanent(errors.New("pdf source has no file path"))
		}
		p.publishStep(ctx, job, 2, "Extracting text from PDF")
		body, err = p.extractFile(*source.FilePath)

	case models.SourceTypeURL:
		if source.SourceURL == nil {
			return permanent(errors.New("url source has no URL"))
		}
		p.publishStep(ctx, job, 2, "Fetching page")
		title, body, err = p.pages.FetchText(ctx, *source.SourceURL)

	case models.SourceTypeYouTube:
		p.publishStep(ctx, job, 2, "Extracting transcript from video")
		title, body, err = p.fetchTranscript(source)

	default:
		return permanent(fmt.Errorf("unsupported source type: %s", source.Type))
	}
	if err != nil {
		return err
	}

	if strings.TrimSpace(body) == "" {
		return permanent(errors.New("no text could be extracted from the source"))
	}

	if title == "" && source.Title == "" {
		p.publishStep(ctx, job, 3, "Naming source")
		title = p.generator.SuggestTitle(ctx, body, "Untitled text")
	}

	if err := p.sources.UpdateBody(ctx, source.ID, title, body); err != nil {
		return fmt.Errorf("failed to save source text: %w", err)
	}

	log.Printf("Processed source %s (%s, %d chars)", source.ID, source.Type, len(body))
	return nil
}

func (p *Pool) extractFile(relPath string) (string, error) {
	text, err := p.files.ExtractTextFromPath(filepath.Join(p.storagePath, relPath))
	if err != nil {
		// A file that cannot be parsed will not parse on retry either.
		return "", permanent(err)
	}
	return text, nil
}

func (p *Pool) fetchTranscript(source *models.Source) (title, body string, err error) {
	var meta models.YouTubeMetadata
	if len(source.MetadataJSON) > 0 {
		json.Unmarshal(source.MetadataJSON, &meta)
	}
	if meta.VideoID == "" && source.SourceURL != nil {
		meta.VideoID = services.ExtractVideoID(*source.SourceURL)
	}
	if meta.VideoID == "" {
		return "", "", permanent(errors.New("youtube source has no video id"))
	}

	body, err = p.youtube.GetTranscript(meta.VideoID, services.TranscriptLanguages(meta.Language))
	if err != nil {
		return "", "", fmt.Errorf("transcript extraction failed for video %s: %w", meta.VideoID, err)
	}

	title, err = p.youtube.GetVideoTitle(meta.VideoID)
	if err != nil {
		log.Printf("Could not fetch title for video %s: %v", meta.VideoID, err)
		title = ""
	}
	return title, body, nil
}

func (p *Pool) processFlashcards(ctx context.Context, job *models.Job) error {
	var cfg models.GenerateFlashcardsRequest
	if err := json.Unmarshal(job.ConfigJSON, &cfg); err != nil {
		return permanent(fmt.Errorf("invalid job config: %w", err))
	}

	deck, err := p.decks.GetDeckByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get flashcard deck: %w", err)
	}
	if deck.CardCount > 0 {
		// An earlier attempt already stored the cards.
		return nil
	}
	if deck.SourceID == nil {
		return permanent(errors.New("flashcard deck has no linked source"))
	}

	p.publishStep(ctx, job, 2, "Waiting for source text")
	source, err := p.waitForSourceReady(ctx, *deck.SourceID, sourceWaitTimeout)
	if err != nil {
		return err
	}

	if cfg.Title == "" && source.Title != "" && source.Title != deck.Title {
		if err := p.decks.UpdateDeckTitle(ctx, deck.ID, source.Title); err != nil {
			log.Printf("Failed to update title of deck %s: %v", deck.ID, err)
		}
	}

	p.publishStep(ctx, job, 3, "Generating flashcards")
	cards, err := p.generator.GenerateFlashcards(ctx, cfg, *source.Body)
	if err != nil {
		return err
	}

	p.publishStep(ctx, job, 4, "Saving flashcards")
	if err := p.decks.CreateCards(ctx, deck.ID, cards); err != nil {
		return fmt.Errorf("failed to save flashcards: %w", err)
	}

	log.Printf("Generated %d flashcards for deck %s", len(cards), deck.ID)
	return nil
}

// waitForSourceReady polls until the source has text. Generation can be queued right after the
// source itself, before its processing job has run.
func (p *Pool) waitForSourceReady(ctx context.Context, sourceID uuid.UUID, timeout time.Duration) (*models.Source, error) {
	deadline := time.Now().Add(timeout)

	for {
		source, err := p.sources.GetByID(ctx, sourceID)
		if err != nil {
			return nil, fmt.Errorf("failed to get source: %w", err)
		}

		switch source.Status {
		case "completed":
			if source.Body == nil || *source.Body == "" {
				return nil, permanent(errors.New("source completed without text"))
			}
			return source, nil
		case "failed":
			return nil, permanent(errors.New("source processing failed"))
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("source text not ready yet (status: %s)", source.Status)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.pollEvery):
		}
	}
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	p.jobs.UpdateStatus(ctx, job.ID, "completed")

	p.notifier.Publish(ctx, job.UserID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			ResultID:   job.ReferenceID,
			ResultType: resultType(job.Type),
		},
	})

	log.Printf("Job %s completed successfully", job.ID)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	maxRetries := job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	if job.RetryCount < maxRetries && !isPermanent(err) {
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)
		p.jobs.RecordFailure(ctx, job.ID, "pending", errMsg, job.RetryCount)
		p.queue.Requeue(job, backoff(job.RetryCount))
		return
	}

	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.jobs.RecordFailure(ctx, job.ID, "failed", errMsg, job.RetryCount)
	if job.Type == models.JobTypeSourceProcessing {
		p.sources.UpdateStatus(ctx, job.ReferenceID, "failed")
	}

	p.notifier.Publish(ctx, job.UserID, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func resultType(jobType string) string {
	if jobType == models.JobTypeFlashcardGeneration {
		return "flashcard_deck"
	}
	return "source"
}

// permanentError marks failures a retry cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

func isPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
