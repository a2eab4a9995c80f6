package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/recshare/internal/models"
	"github.com/lalith-99/recshare/internal/repository"
)

type TagStore struct {
	db DBTX
}

func NewTagStore(db DBTX) *TagStore {
	return &TagStore{db: db}
}

func (s *TagStore) Create(ctx context.Context, label string) (*models.Tag, error) {
	query := `
		INSERT INTO tags (label, created_at, updated_at)
		VALUES ($1, now(), now())
		RETURNING id, label, created_at, updated_at`

	var t models.Tag
	err := s.db.QueryRow(ctx, query, label).Scan(&t.ID, &t.Label, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert tag: %w", err)
	}
	return &t, nil
}

func (s *TagStore) GetByID(ctx context.Context, tagID int64) (*models.Tag, error) {
	query := `
		SELECT id, label, created_at, updated_at
		FROM tags
		WHERE id = $1`

	var t models.Tag
	err := s.db.QueryRow(ctx, query, tagID).Scan(&t.ID, &t.Label, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return &t, nil
}

func (s *TagStore) List(ctx context.Context) ([]models.Tag, error) {
	query := `
		SELECT id, label, created_at, updated_at
		FROM tags
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tags := make([]models.Tag, 0)
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Label, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}

	return tags, nil
}

func (s *TagStore) Update(ctx context.Context, tagID int64, label string) (*models.Tag, error) {
	query := `
		UPDATE tags SET label = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, label, created_at, updated_at`

	var t models.Tag
	err := s.db.QueryRow(ctx, query, tagID, label).Scan(&t.ID, &t.Label, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update tag: %w", err)
	}
	return &t, nil
}

// Delete also drops the tag from every recommendation (cascade on the
// link table).
func (s *TagStore) Delete(ctx context.Context, tagID int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM tags WHERE id = $1`, tagID)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
