package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/recshare/internal/models"
	"github.com/lalith-99/recshare/internal/repository"
)

type FollowStore struct {
	db DBTX
}

func NewFollowStore(db DBTX) *FollowStore {
	return &FollowStore{db: db}
}

const followSelect = `
	SELECT f.id,
	       fr.id, fr.username, fr.avatar_url,
	       fe.id, fe.username, fe.avatar_url,
	       f.created_at
	FROM follows f
	JOIN users fr ON fr.id = f.follower_id
	JOIN users fe ON fe.id = f.followee_id`

// Create is a single insert-or-ignore on the (follower_id, followee_id)
// unique constraint. Two concurrent identical requests both reach the
// insert; exactly one gets a row back, the other sees created=false.
func (s *FollowStore) Create(ctx context.Context, followerID, followeeID int64) (*models.Follow, bool, error) {
	// The CTE inserts and joins both usernames in one round trip. When the
	// edge already exists, ins is empty and so is the whole SELECT.
	//
	// Why not SELECT first and INSERT only if absent?
	//   - Two requests can both see "absent" and both insert; the unique
	//     constraint then fails one of them with a 23505.
	//   - ON CONFLICT DO NOTHING lets Postgres settle the race, and an
	//     empty result is exactly "already following".
	query := `
		WITH ins AS (
			INSERT INTO follows (follower_id, followee_id, created_at)
			VALUES ($1, $2, now())
			ON CONFLICT (follower_id, followee_id) DO NOTHING
			RETURNING id, follower_id, followee_id, created_at
		)
		SELECT ins.id,
		       fr.id, fr.username, fr.avatar_url,
		       fe.id, fe.username, fe.avatar_url,
		       ins.created_at
		FROM ins
		JOIN users fr ON fr.id = ins.follower_id
		JOIN users fe ON fe.id = ins.followee_id`

	f, err := scanFollow(s.db.QueryRow(ctx, query, followerID, followeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, classify("insert follow", err)
	}
	return f, true, nil
}

func (s *FollowStore) Delete(ctx context.Context, followerID, followeeID int64) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`,
		followerID, followeeID,
	)
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListFollowers returns edges pointing at userID.
func (s *FollowStore) ListFollowers(ctx context.Context, userID int64) ([]models.Follow, error) {
	return s.list(ctx, followSelect+` WHERE f.followee_id = $1 ORDER BY f.created_at DESC`, userID)
}

// ListFollowees returns edges starting at userID.
func (s *FollowStore) ListFollowees(ctx context.Context, userID int64) ([]models.Follow, error) {
	return s.list(ctx, followSelect+` WHERE f.follower_id = $1 ORDER BY f.created_at DESC`, userID)
}

func (s *FollowStore) list(ctx context.Context, query string, userID int64) ([]models.Follow, error) {
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list follows: %w", err)
	}
	defer rows.Close()

	follows := make([]models.Follow, 0)
	for rows.Next() {
		f, err := scanFollow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan follow: %w", err)
		}
		follows = append(follows, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate follows: %w", err)
	}

	return follows, nil
}

func scanFollow(row scanner) (*models.Follow, error) {
	var f models.Follow
	err := row.Scan(
		&f.ID,
		&f.Follower.ID,
		&f.Follower.Username,
		&f.Follower.AvatarURL,
		&f.Followee.ID,
		&f.Followee.Username,
		&f.Followee.AvatarURL,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
