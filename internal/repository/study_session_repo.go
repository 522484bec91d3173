package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"lingua-backend/internal/models"
)

type StudySessionRepo struct {
	pool *pgxpool.Pool
}

func NewStudySessionRepo(pool *pgxpool.Pool) *StudySessionRepo {
	return &StudySessionRepo{pool: pool}
}

// Start opens a study session row, closing any row left open for the same user and deck.
func (r *StudySessionRepo) Start(ctx context.Context, s *models.StudySession) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET ended_at = NOW(),
			duration_seconds = GREATEST(0, LEAST(43200, EXTRACT(EPOCH FROM (NOW() - started_at))::INT)),
			last_heartbeat_at = NOW()
		WHERE user_id = $1
		  AND deck_id = $2
		  AND ended_at IS NULL
	`, s.UserID, s.DeckID)
	if err != nil {
		return fmt.Errorf("failed to close previous study session: %w", err)
	}

	query := `
		INSERT INTO study_sessions (user_id, deck_id)
		VALUES ($1, $2)
		RETURNING id, started_at, last_heartbeat_at, created_at
	`

	return r.pool.QueryRow(ctx, query, s.UserID, s.DeckID).Scan(
		&s.ID,
		&s.StartedAt,
		&s.LastHeartbeatAt,
		&s.CreatedAt,
	)
}

func (r *StudySessionRepo) Heartbeat(ctx context.Context, sessionID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET last_heartbeat_at = NOW()
		WHERE id = $1
		  AND user_id = $2
		  AND ended_at IS NULL
	`, sessionID, userID)
	return err
}

// CloseIdle ends open sessions whose last heartbeat is before cutoff. Duration runs to the last
// heartbeat rather than to now.
func (r *StudySessionRepo) CloseIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET ended_at = last_heartbeat_at,
			duration_seconds = GREATEST(0, LEAST(43200, EXTRACT(EPOCH FROM (last_heartbeat_at - started_at))::INT))
		WHERE ended_at IS NULL
		  AND last_heartbeat_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Complete closes the session and stores its result. Closing twice keeps the first duration.
func (r *StudySessionRepo) Complete(ctx context.Context, sessionID, userID uuid.UUID, result models.StudyResult) error {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET ended_at = CASE WHEN ended_at IS NULL THEN NOW() ELSE ended_at END,
			last_heartbeat_at = NOW(),
			duration_seconds = CASE
				WHEN ended_at IS NULL THEN GREATEST(0, LEAST(43200, EXTRACT(EPOCH FROM (NOW() - started_at))::INT))
				ELSE duration_seconds
			END,
			result_json = $3
		WHERE id = $1
		  AND user_id = $2
	`, sessionID, userID, resultBytes)
	return err
}
