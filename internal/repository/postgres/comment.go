package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/recshare/internal/models"
	"github.com/lalith-99/recshare/internal/repository"
)

type CommentStore struct {
	db DBTX
}

func NewCommentStore(db DBTX) *CommentStore {
	return &CommentStore{db: db}
}

// Create inserts and joins the author's username in the same statement.
// A recommendation deleted between the handler's lookup and this insert
// fails the foreign key and comes back as ErrInvalidReference.
func (s *CommentStore) Create(ctx context.Context, recID, userID int64, body string) (*models.Comment, error) {
	query := `
		WITH ins AS (
			INSERT INTO comments (user_id, recommendation_id, comment, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
			RETURNING id, user_id, recommendation_id, comment, created_at, updated_at
		)
		SELECT ins.id, ins.user_id, u.username, ins.recommendation_id, ins.comment, ins.created_at, ins.updated_at
		FROM ins
		JOIN users u ON u.id = ins.user_id`

	c, err := scanComment(s.db.QueryRow(ctx, query, userID, recID, body))
	if err != nil {
		return nil, classify("insert comment", err)
	}
	return c, nil
}

func (s *CommentStore) GetByID(ctx context.Context, commentID int64) (*models.Comment, error) {
	query := `
		SELECT c.id, c.user_id, u.username, c.recommendation_id, c.comment, c.created_at, c.updated_at
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.id = $1`

	c, err := scanComment(s.db.QueryRow(ctx, query, commentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

// ListByRecommendation returns a thread oldest first.
func (s *CommentStore) ListByRecommendation(ctx context.Context, recID int64, page repository.Page) ([]models.Comment, error) {
	query := `
		SELECT c.id, c.user_id, u.username, c.recommendation_id, c.comment, c.created_at, c.updated_at
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.recommendation_id = $1
		ORDER BY c.created_at, c.id
		LIMIT $2 OFFSET $3`

	rows, err := s.db.Query(ctx, query, recID, int64(page.Limit), int64(page.Offset))
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]models.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}

	return comments, nil
}

func (s *CommentStore) Delete(ctx context.Context, commentID int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanComment(row scanner) (*models.Comment, error) {
	var c models.Comment
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Username,
		&c.RecommendationID,
		&c.Body,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
