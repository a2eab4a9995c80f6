package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/recshare/internal/models"
	"github.com/lalith-99/recshare/internal/repository"
)

type RecommendationStore struct {
	db DBTX
}

func NewRecommendationStore(db DBTX) *RecommendationStore {
	return &RecommendationStore{db: db}
}

func (s *RecommendationStore) Create(ctx context.Context, ownerID int64, in repository.RecommendationInput) (*models.Recommendation, error) {
	query := `
		INSERT INTO recommendations (
			user_id, title, medium, description, reason, imdbid, poster,
			genre, streaming_service, related_shows, keywords, actors,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING id`

	var recID int64
	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, query,
			ownerID,
			in.Title,
			in.Medium,
			in.Description,
			in.Reason,
			in.IMDbID,
			in.Poster,
			nonNil(in.Genre),
			nonNil(in.StreamingService),
			nonNil(in.RelatedShows),
			nonNil(in.Keywords),
			nonNil(in.Actors),
		).Scan(&recID)
		if err != nil {
			return classify("insert recommendation", err)
		}
		return linkTags(ctx, tx, recID, in.TagIDs)
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, recID)
}

func (s *RecommendationStore) GetByID(ctx context.Context, recID int64) (*models.Recommendation, error) {
	return getRecommendation(ctx, s.db, recID)
}

func (s *RecommendationStore) List(ctx context.Context, filter repository.RecommendationFilter) ([]models.Recommendation, error) {
	query, args, err := buildListQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	recs := make([]models.Recommendation, 0)
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recommendations: %w", err)
	}

	if err := loadTags(ctx, s.db, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Update applies the patch and, if given, replaces the tag set, all in
// one transaction. user_id is never in the SET list.
func (s *RecommendationStore) Update(ctx context.Context, recID int64, patch repository.RecommendationPatch) (*models.Recommendation, error) {
	query, args, err := psql.Update("recommendations").
		SetMap(patchSetMap(patch)).
		Where("id = ?", recID).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	err = inTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return classify("update recommendation", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}

		if patch.TagIDs == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM recommendation_tags WHERE recommendation_id = $1`, recID); err != nil {
			return fmt.Errorf("clear tags: %w", err)
		}
		return linkTags(ctx, tx, recID, *patch.TagIDs)
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, recID)
}

// Delete removes the recommendation; comments, tag links and saves go
// with it via ON DELETE CASCADE.
func (s *RecommendationStore) Delete(ctx context.Context, recID int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM recommendations WHERE id = $1`, recID)
	if err != nil {
		return fmt.Errorf("delete recommendation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func getRecommendation(ctx context.Context, q querier, recID int64) (*models.Recommendation, error) {
	query, args, err := selectRecommendations().Where("r.id = ?", recID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}

	rec, err := scanRecommendation(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get recommendation: %w", err)
	}

	recs := []models.Recommendation{*rec}
	if err := loadTags(ctx, q, recs); err != nil {
		return nil, err
	}
	return &recs[0], nil
}

func scanRecommendation(row scanner, extra ...any) (*models.Recommendation, error) {
	var rec models.Recommendation
	dest := append(extra,
		&rec.ID,
		&rec.UserID,
		&rec.Username,
		&rec.Title,
		&rec.Medium,
		&rec.Description,
		&rec.Reason,
		&rec.IMDbID,
		&rec.Poster,
		&rec.Genre,
		&rec.StreamingService,
		&rec.RelatedShows,
		&rec.Keywords,
		&rec.Actors,
		&rec.SavedCount,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &rec, nil
}

// linkTags attaches tag ids to a recommendation. An unknown id fails the
// foreign key and surfaces as ErrInvalidReference.
func linkTags(ctx context.Context, q querier, recID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		INSERT INTO recommendation_tags (recommendation_id, tag_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`,
		recID, tagIDs,
	)
	if err != nil {
		return classify("link tags", err)
	}
	return nil
}

// loadTags fills Tags on each recommendation with one query for the batch.
func loadTags(ctx context.Context, q querier, recs []models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}

	ids := make([]int64, len(recs))
	index := make(map[int64]int, len(recs))
	for i := range recs {
		ids[i] = recs[i].ID
		index[recs[i].ID] = i
		recs[i].Tags = make([]models.Tag, 0)
	}

	rows, err := q.Query(ctx, `
		SELECT rt.recommendation_id, t.id, t.label, t.created_at, t.updated_at
		FROM recommendation_tags rt
		JOIN tags t ON t.id = rt.tag_id
		WHERE rt.recommendation_id = ANY($1)
		ORDER BY t.label`, ids)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recID int64
		var t models.Tag
		if err := rows.Scan(&recID, &t.ID, &t.Label, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return fmt.Errorf("scan tag: %w", err)
		}
		if i, ok := index[recID]; ok {
			recs[i].Tags = append(recs[i].Tags, t)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tags: %w", err)
	}
	return nil
}
