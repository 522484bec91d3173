package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"lingua-backend/internal/models"
)

type SourceRepo struct {
	pool *pgxpool.Pool
}

func NewSourceRepo(pool *pgxpool.Pool) *SourceRepo {
	return &SourceRepo{pool: pool}
}

func (r *SourceRepo) Create(ctx context.Context, s *models.Source) error {
	s.ID = uuid.New()
	if s.Status == "" {
		s.Status = "pending"
	}

	metaBytes := []byte(s.MetadataJSON)
	if len(metaBytes) == 0 {
		metaBytes = []byte("{}")
	}

	query := `INSERT INTO sources (id, user_id, type, status, title, source_url, file_path, body, metadata_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		s.ID, s.UserID, s.Type, s.Status, s.Title, s.SourceURL, s.FilePath, s.Body, metaBytes,
	).Scan(&s.CreatedAt)
}

func (r *SourceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Source, error) {
	s := &models.Source{}
	query := `SELECT id, user_id, type, status, title, source_url, file_path, body, metadata_json, created_at
		FROM sources WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.Type, &s.Status, &s.Title, &s.SourceURL, &s.FilePath,
		&s.Body, &s.MetadataJSON, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateBody stores the extracted text and marks the source ready for generation.
func (r *SourceRepo) UpdateBody(ctx context.Context, id uuid.UUID, title, body string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE sources SET body = $1, title = CASE WHEN $2 = '' THEN title ELSE $2 END, status = 'completed' WHERE id = $3",
		body, title, id)
	return err
}

func (r *SourceRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, "UPDATE sources SET status = $1 WHERE id = $2", status, id)
	return err
}
