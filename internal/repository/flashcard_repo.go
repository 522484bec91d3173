package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"lingua-backend/internal/learning"
	"lingua-backend/internal/models"
)

// shareCodeAlphabet leaves out look-alike characters so codes can be typed by hand.
const shareCodeAlphabet = "23456789abcdefghjkmnpqrstuvwxyz"

type FlashcardRepo struct {
	pool *pgxpool.Pool
}

func NewFlashcardRepo(pool *pgxpool.Pool) *FlashcardRepo {
	return &FlashcardRepo{pool: pool}
}

// Deck operations

func (r *FlashcardRepo) CreateDeck(ctx context.Context, d *models.FlashcardDeck) error {
	d.ID = uuid.New()

	code, err := gonanoid.Generate(shareCodeAlphabet, 10)
	if err != nil {
		return fmt.Errorf("failed to generate share code: %w", err)
	}
	d.ShareCode = code

	query := `INSERT INTO flashcard_decks (id, user_id, source_id, title, language, share_code, card_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		d.ID, d.UserID, d.SourceID, d.Title, d.Language, d.ShareCode, d.CardCount,
	).Scan(&d.CreatedAt)
}

const deckColumns = `id, user_id, source_id, title, language, share_code, card_count, created_at`

func scanDeck(row pgx.Row) (*models.FlashcardDeck, error) {
	d := &models.FlashcardDeck{}
	err := row.Scan(&d.ID, &d.UserID, &d.SourceID, &d.Title, &d.Language, &d.ShareCode, &d.CardCount, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *FlashcardRepo) GetDeckByID(ctx context.Context, id uuid.UUID) (*models.FlashcardDeck, error) {
	return scanDeck(r.pool.QueryRow(ctx, `SELECT `+deckColumns+` FROM flashcard_decks WHERE id = $1`, id))
}

func (r *FlashcardRepo) GetDeckByShareCode(ctx context.Context, code string) (*models.FlashcardDeck, error) {
	return scanDeck(r.pool.QueryRow(ctx, `SELECT `+deckColumns+` FROM flashcard_decks WHERE share_code = $1`, code))
}

func (r *FlashcardRepo) ListDecksByUser(ctx context.Context, userID uuid.UUID) ([]*models.FlashcardDeck, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+deckColumns+` FROM flashcard_decks WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decks []*models.FlashcardDeck
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			return nil, err
		}
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

func (r *FlashcardRepo) DeleteDeck(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM flashcard_decks WHERE id = $1", id)
	return err
}

func (r *FlashcardRepo) UpdateDeckTitle(ctx context.Context, id uuid.UUID, title string) error {
	_, err := r.pool.Exec(ctx, "UPDATE flashcard_decks SET title = $1 WHERE id = $2", title, id)
	return err
}

// Card operations

// CreateCards stores cards in the given order; position is what learning sessions sort by.
func (r *FlashcardRepo) CreateCards(ctx context.Context, deckID uuid.UUID, cards []models.FlashcardCard) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i := range cards {
		cards[i].ID = uuid.New()
		cards[i].DeckID = deckID
		cards[i].Position = i
		batch.Queue(
			`INSERT INTO flashcard_cards (id, deck_id, question, answer, position) VALUES ($1, $2, $3, $4, $5)`,
			cards[i].ID, deckID, cards[i].Question, cards[i].Answer, cards[i].Position,
		)
	}
	batch.Queue("UPDATE flashcard_decks SET card_count = $1 WHERE id = $2", len(cards), deckID)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert cards: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *FlashcardRepo) GetCardsByDeck(ctx context.Context, deckID uuid.UUID) ([]models.FlashcardCard, error) {
	query := `SELECT id, deck_id, question, answer, position, ok_count, ng_count, created_at
		FROM flashcard_cards WHERE deck_id = $1 ORDER BY position ASC, created_at ASC`

	rows, err := r.pool.Query(ctx, query, deckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []models.FlashcardCard
	for rows.Next() {
		c := models.FlashcardCard{}
		err := rows.Scan(&c.ID, &c.DeckID, &c.Question, &c.Answer, &c.Position, &c.OKCount, &c.NGCount, &c.CreatedAt)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// AddCardResults folds one finished session's counters into the cards' lifetime totals.
func (r *FlashcardRepo) AddCardResults(ctx context.Context, deckID uuid.UUID, stats map[string]learning.CardStats) error {
	batch := &pgx.Batch{}
	for id, st := range stats {
		cardID, err := uuid.Parse(id)
		if err != nil {
			return fmt.Errorf("invalid card id %q: %w", id, err)
		}
		batch.Queue(
			`UPDATE flashcard_cards SET ok_count = ok_count + $1, ng_count = ng_count + $2 WHERE id = $3 AND deck_id = $4`,
			st.OKCount, st.NGCount, cardID, deckID,
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func (r *FlashcardRepo) GetDeckStats(ctx context.Context, deckID uuid.UUID) (*models.DeckStats, error) {
	stats := &models.DeckStats{}

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE ok_count > 0),
			COALESCE(SUM(ok_count), 0),
			COALESCE(SUM(ng_count), 0)
		FROM flashcard_cards WHERE deck_id = $1
	`, deckID).Scan(&stats.TotalCards, &stats.PassedCards, &stats.TotalOK, &stats.TotalNG)
	if err != nil {
		return nil, err
	}

	if judged := stats.TotalOK + stats.TotalNG; judged > 0 {
		stats.PassRate = float64(stats.TotalOK) / float64(judged) * 100
	}

	return stats, nil
}
