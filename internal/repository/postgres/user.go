package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/recshare/internal/models"
	"github.com/lalith-99/recshare/internal/repository"
)

type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, username, email, password_hash, avatar_url, created_at, updated_at`

// Create inserts a new user. A taken username comes back as ErrDuplicate
// from the unique index, so concurrent signups cannot both win.
func (s *UserStore) Create(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, username, email, passwordHash))
	if err != nil {
		return nil, classify("insert user", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByUsername is the login lookup.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	u, err := scanUser(s.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *UserStore) UpdateAvatar(ctx context.Context, userID int64, avatarURL string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET avatar_url = $2, updated_at = now() WHERE id = $1`,
		userID, avatarURL,
	)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, userID int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Profile loads the public view: the user row with follow counts, then
// the followee list.
func (s *UserStore) Profile(ctx context.Context, userID int64) (*models.Profile, error) {
	query := `
		SELECT u.id, u.username, u.avatar_url, u.created_at,
		       (SELECT count(*) FROM follows f WHERE f.followee_id = u.id),
		       (SELECT count(*) FROM follows f WHERE f.follower_id = u.id)
		FROM users u
		WHERE u.id = $1`

	var p models.Profile
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&p.ID,
		&p.Username,
		&p.AvatarURL,
		&p.CreatedAt,
		&p.FollowerCount,
		&p.FolloweeCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.username, u.avatar_url
		FROM follows f
		JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list followees: %w", err)
	}
	defer rows.Close()

	p.Followees = make([]models.UserSummary, 0)
	for rows.Next() {
		var f models.UserSummary
		if err := rows.Scan(&f.ID, &f.Username, &f.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan followee: %w", err)
		}
		p.Followees = append(p.Followees, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate followees: %w", err)
	}

	return &p, nil
}

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.AvatarURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
