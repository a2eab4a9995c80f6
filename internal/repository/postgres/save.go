package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lalith-99/recshare/internal/models"
	"github.com/lalith-99/recshare/internal/repository"
)

// SaveStore backs the per-user saved set. The watchlist and the watched
// list are the same rows distinguished by status.
type SaveStore struct {
	db DBTX
}

func NewSaveStore(db DBTX) *SaveStore {
	return &SaveStore{db: db}
}

// Save is an upsert on (user_id, recommendation_id): saving again only
// moves the status, it never adds a second row.
func (s *SaveStore) Save(ctx context.Context, userID, recID int64, status models.SaveStatus) error {
	// Why the WHERE on DO UPDATE?
	//   - Without it, re-adding to the same list rewrites the row and bumps
	//     updated_at, which reorders the saved list for no visible change.
	//   - With it, a same-status save touches nothing; a status change
	//     moves the row and its position.
	query := `
		INSERT INTO saves (user_id, recommendation_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (user_id, recommendation_id)
		DO UPDATE SET status = EXCLUDED.status, updated_at = now()
		WHERE saves.status IS DISTINCT FROM EXCLUDED.status`

	if _, err := s.db.Exec(ctx, query, userID, recID, string(status)); err != nil {
		return classify("save recommendation", err)
	}
	return nil
}

func (s *SaveStore) Remove(ctx context.Context, userID, recID int64, status models.SaveStatus) error {
	q := psql.Delete("saves").
		Where(sq.Eq{"user_id": userID, "recommendation_id": recID})
	if status != "" {
		q = q.Where(sq.Eq{"status": string(status)})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build remove: %w", err)
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("remove save: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *SaveStore) List(ctx context.Context, userID int64, status models.SaveStatus) ([]models.SavedRecommendation, error) {
	query, args, err := buildSavedQuery(userID, status)
	if err != nil {
		return nil, fmt.Errorf("build saved query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	defer rows.Close()

	var (
		saved = make([]models.SavedRecommendation, 0)
		recs  []models.Recommendation
	)
	for rows.Next() {
		var entry models.SavedRecommendation
		var st string
		rec, err := scanRecommendation(rows, &st, &entry.SavedAt)
		if err != nil {
			return nil, fmt.Errorf("scan save: %w", err)
		}
		entry.Status = models.SaveStatus(st)
		saved = append(saved, entry)
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saves: %w", err)
	}

	if err := loadTags(ctx, s.db, recs); err != nil {
		return nil, err
	}
	for i := range saved {
		saved[i].Recommendation = recs[i]
	}
	return saved, nil
}

func buildSavedQuery(userID int64, status models.SaveStatus) (string, []any, error) {
	q := selectRecommendations("s.status", "s.updated_at").
		Join("saves s ON s.recommendation_id = r.id").
		Where(sq.Eq{"s.user_id": userID})
	if status != "" {
		q = q.Where(sq.Eq{"s.status": string(status)})
	}
	return q.OrderBy("s.updated_at DESC", "r.id DESC").ToSql()
}
