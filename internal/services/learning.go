package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"lingua-backend/internal/learning"
	"lingua-backend/internal/models"
	"lingua-backend/internal/repository"
)

type learningDeckStore interface {
	GetDeckByID(ctx context.Context, id uuid.UUID) (*models.FlashcardDeck, error)
	GetCardsByDeck(ctx context.Context, deckID uuid.UUID) ([]models.FlashcardCard, error)
	AddCardResults(ctx context.Context, deckID uuid.UUID, stats map[string]learning.CardStats) error
}

type preferenceStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.StudyPreferences, error)
}

type studySessionStore interface {
	Start(ctx context.Context, s *models.StudySession) error
	Heartbeat(ctx context.Context, sessionID, userID uuid.UUID) error
	Complete(ctx context.Context, sessionID, userID uuid.UUID, result models.StudyResult) error
}

type liveSessionStore interface {
	Get(ctx context.Context, userID, deckID uuid.UUID) (*repository.LiveSession, error)
	Save(ctx context.Context, userID, deckID uuid.UUID, ls *repository.LiveSession) error
	Lock(ctx context.Context, userID, deckID uuid.UUID) (func(), error)
}

type publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

// LearningService runs learning sessions over flashcard decks. Each (user, deck) pair has at
// most one live session, stored in Redis between requests.
type LearningService struct {
	decks    learningDeckStore
	prefs    preferenceStore
	studies  studySessionStore
	live     liveSessionStore
	notifier publisher
	opts     []learning.Option
}

func NewLearningService(
	decks *repository.FlashcardRepo,
	prefs *repository.PreferencesRepo,
	studies *repository.StudySessionRepo,
	live *repository.LiveSessionRepo,
	notifier *Notifier,
) *LearningService {
	return &LearningService{
		decks:    decks,
		prefs:    prefs,
		studies:  studies,
		live:     live,
		notifier: notifier,
	}
}

// Start resumes the live session for the deck, or opens a new one if there is none or the
// previous one has been completed.
func (s *LearningService) Start(ctx context.Context, userID, deckID uuid.UUID) (*models.LearningState, error) {
	return s.withSession(ctx, userID, deckID, true, func(ls *repository.LiveSession, sess *learning.Session) error {
		if sess.IsCompleted() && ls.Recorded {
			sess.Reset()
			sess.Configure(sess.Config())
			return s.openStudySession(ctx, userID, deckID, ls)
		}
		return nil
	})
}

// State returns the current view of the live session without changing it.
func (s *LearningService) State(ctx context.Context, userID, deckID uuid.UUID) (*models.LearningState, error) {
	return s.withSession(ctx, userID, deckID, false, nil)
}

// Judge applies result to the current card.
func (s *LearningService) Judge(ctx context.Context, userID, deckID uuid.UUID, result learning.Result) (*models.LearningState, error) {
	if result != learning.Pass && result != learning.Fail {
		return nil, &ValidationError{Fields: map[string]string{"result": "Must be pass or fail"}}
	}

	return s.withSession(ctx, userID, deckID, false, func(ls *repository.LiveSession, sess *learning.Session) error {
		card, ok := sess.CurrentCard()
		if !ok {
			return nil
		}
		sess.Judge(result)
		if err := s.studies.Heartbeat(ctx, ls.StudySessionID, userID); err != nil {
			log.Printf("learning: heartbeat for study session %s failed: %v", ls.StudySessionID, err)
		}

		s.notifier.Publish(ctx, userID, models.WSMessage{
			Type: "learning_progress",
			Payload: models.LearningProgressEvent{
				DeckID:             deckID,
				CardID:             card.ID,
				Result:             string(result),
				ProgressPercentage: sess.ProgressPercentage(),
				Remaining:          sess.Remaining(),
			},
		})
		return nil
	})
}

// Reset starts the deck over. Stats of the abandoned run are discarded.
func (s *LearningService) Reset(ctx context.Context, userID, deckID uuid.UUID) (*models.LearningState, error) {
	return s.withSession(ctx, userID, deckID, false, func(ls *repository.LiveSession, sess *learning.Session) error {
		sess.Reset()
		sess.Configure(sess.Config())
		return s.openStudySession(ctx, userID, deckID, ls)
	})
}

// withSession loads the live session under its lock, brings it in line with the deck's cards and
// the user's preferences, runs fn, records a completion once and saves the result.
func (s *LearningService) withSession(
	ctx context.Context,
	userID, deckID uuid.UUID,
	create bool,
	fn func(ls *repository.LiveSession, sess *learning.Session) error,
) (*models.LearningState, error) {
	deck, err := s.decks.GetDeckByID(ctx, deckID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "Deck not found"}
	}
	if err != nil {
		return nil, err
	}
	if deck.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}

	unlock, err := s.live.Lock(ctx, userID, deckID)
	if errors.Is(err, repository.ErrSessionBusy) {
		return nil, &ConflictError{Message: "Learning session is busy, try again"}
	}
	if err != nil {
		return nil, err
	}
	defer unlock()

	rows, err := s.decks.GetCardsByDeck(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}
	cards := toLearningCards(rows)

	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	cfg := learning.Config{Shuffle: prefs.Shuffle, ThoroughLearning: prefs.ThoroughLearning}

	ls, sess, err := s.load(ctx, userID, deckID)
	if err != nil {
		return nil, err
	}

	switch {
	case sess == nil && !create:
		return nil, &NotFoundError{Message: "No active learning session for this deck"}
	case sess == nil:
		sess = learning.New(cards, cfg, s.opts...)
		ls = &repository.LiveSession{}
		if err := s.openStudySession(ctx, userID, deckID, ls); err != nil {
			return nil, err
		}
	default:
		if sess.Load(cards) {
			// The deck's cards changed underneath the session; it starts over.
			ls.Recorded = false
		}
		sess.Configure(cfg)
	}

	if fn != nil {
		if err := fn(ls, sess); err != nil {
			return nil, err
		}
	}

	if sess.IsCompleted() && !ls.Recorded && sess.Total() > 0 {
		s.recordCompletion(ctx, userID, deckID, ls, sess)
	}

	ls.Snapshot = sess.Snapshot()
	if err := s.live.Save(ctx, userID, deckID, ls); err != nil {
		return nil, fmt.Errorf("failed to save learning session: %w", err)
	}

	return buildLearningState(deckID, ls, sess), nil
}

// load returns the stored session, or nils when there is none. A snapshot that no longer
// restores is dropped and treated as absent.
func (s *LearningService) load(ctx context.Context, userID, deckID uuid.UUID) (*repository.LiveSession, *learning.Session, error) {
	ls, err := s.live.Get(ctx, userID, deckID)
	if errors.Is(err, repository.ErrNoLiveSession) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	sess, err := learning.Restore(ls.Snapshot, s.opts...)
	if err != nil {
		log.Printf("learning: discarding session for user %s deck %s: %v", userID, deckID, err)
		return nil, nil, nil
	}
	return ls, sess, nil
}

func (s *LearningService) openStudySession(ctx context.Context, userID, deckID uuid.UUID, ls *repository.LiveSession) error {
	study := &models.StudySession{UserID: userID, DeckID: deckID}
	if err := s.studies.Start(ctx, study); err != nil {
		return fmt.Errorf("failed to start study session: %w", err)
	}
	ls.StudySessionID = study.ID
	ls.Recorded = false
	return nil
}

// recordCompletion folds the session's stats into the deck and closes the study session. A
// failure leaves Recorded unset so the next request retries.
func (s *LearningService) recordCompletion(ctx context.Context, userID, deckID uuid.UUID, ls *repository.LiveSession, sess *learning.Session) {
	stats := sess.CardStats()
	if err := s.decks.AddCardResults(ctx, deckID, stats); err != nil {
		log.Printf("learning: failed to record card results for deck %s: %v", deckID, err)
		return
	}

	result := summarize(sess, stats)
	if err := s.studies.Complete(ctx, ls.StudySessionID, userID, result); err != nil {
		log.Printf("learning: failed to complete study session %s: %v", ls.StudySessionID, err)
	}
	ls.Recorded = true

	s.notifier.Publish(ctx, userID, models.WSMessage{
		Type: "learning_completed",
		Payload: models.LearningCompletedEvent{
			DeckID:         deckID,
			StudySessionID: ls.StudySessionID,
			Result:         result,
		},
	})
}

func summarize(sess *learning.Session, stats map[string]learning.CardStats) models.StudyResult {
	result := models.StudyResult{
		TotalCards:       sess.Total(),
		ThoroughLearning: sess.Config().ThoroughLearning,
	}
	for _, st := range stats {
		result.TotalOK += st.OKCount
		result.TotalNG += st.NGCount
	}
	return result
}

func toLearningCards(rows []models.FlashcardCard) []learning.Card {
	cards := make([]learning.Card, len(rows))
	for i, c := range rows {
		cards[i] = learning.Card{
			ID:        c.ID.String(),
			Question:  c.Question,
			Answer:    c.Answer,
			DeckID:    c.DeckID.String(),
			CreatedAt: c.CreatedAt,
		}
	}
	return cards
}

func buildLearningState(deckID uuid.UUID, ls *repository.LiveSession, sess *learning.Session) *models.LearningState {
	state := &models.LearningState{
		DeckID:             deckID,
		StudySessionID:     ls.StudySessionID,
		IsCompleted:        sess.IsCompleted(),
		ProgressPercentage: sess.ProgressPercentage(),
		Remaining:          sess.Remaining(),
		Total:              sess.Total(),
		CardStats:          sess.CardStats(),
		Config:             sess.Config(),
	}
	if card, ok := sess.CurrentCard(); ok {
		state.CurrentCard = &card
	}
	return state
}
