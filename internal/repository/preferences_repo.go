package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lingua-backend/internal/models"
)

// PreferencesRepo is the persisted store behind the shuffle and thorough-learning toggles.
type PreferencesRepo struct {
	pool     *pgxpool.Pool
	defaults models.StudyPreferences
}

func NewPreferencesRepo(pool *pgxpool.Pool, defaultShuffle, defaultThorough bool) *PreferencesRepo {
	return &PreferencesRepo{
		pool: pool,
		defaults: models.StudyPreferences{
			Shuffle:          defaultShuffle,
			ThoroughLearning: defaultThorough,
		},
	}
}

// Get returns the stored preferences, or the configured defaults for users who never saved any.
func (r *PreferencesRepo) Get(ctx context.Context, userID uuid.UUID) (*models.StudyPreferences, error) {
	p := &models.StudyPreferences{}
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, shuffle, thorough_learning, updated_at FROM user_settings WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.Shuffle, &p.ThoroughLearning, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		d := r.defaults
		d.UserID = userID
		return &d, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PreferencesRepo) Save(ctx context.Context, p *models.StudyPreferences) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO user_settings (user_id, shuffle, thorough_learning, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE
			SET shuffle = EXCLUDED.shuffle,
				thorough_learning = EXCLUDED.thorough_learning,
				updated_at = NOW()
		RETURNING updated_at
	`, p.UserID, p.Shuffle, p.ThoroughLearning).Scan(&p.UpdatedAt)
}
