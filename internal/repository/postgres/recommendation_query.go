package postgres

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lalith-99/recshare/internal/repository"
)

// recommendationColumns must stay in step with scanRecommendation.
var recommendationColumns = []string{
	"r.id",
	"r.user_id",
	"u.username",
	"r.title",
	"r.medium",
	"r.description",
	"r.reason",
	"r.imdbid",
	"r.poster",
	"r.genre",
	"r.streaming_service",
	"r.related_shows",
	"r.keywords",
	"r.actors",
	"(SELECT count(*) FROM saves sc WHERE sc.recommendation_id = r.id) AS saved_count",
	"r.created_at",
	"r.updated_at",
}

// searchFields are the columns free-text search looks at.
var searchFields = []string{"r.title", "r.description", "r.imdbid"}

func selectRecommendations(extra ...string) sq.SelectBuilder {
	cols := append(append([]string{}, extra...), recommendationColumns...)
	return psql.Select(cols...).
		From("recommendations r").
		Join("users u ON u.id = r.user_id")
}

// buildListQuery renders the filtered list. Each filter is an exact match;
// Search splits on whitespace and every term must appear (ILIKE) in at
// least one search field.
func buildListQuery(f repository.RecommendationFilter) (string, []any, error) {
	q := selectRecommendations()

	if f.ID != 0 {
		q = q.Where(sq.Eq{"r.id": f.ID})
	}
	if f.UserID != 0 {
		q = q.Where(sq.Eq{"r.user_id": f.UserID})
	}
	if f.Title != "" {
		q = q.Where(sq.Eq{"r.title": f.Title})
	}
	if f.IMDbID != "" {
		q = q.Where(sq.Eq{"r.imdbid": f.IMDbID})
	}
	if f.Medium != "" {
		q = q.Where(sq.Eq{"r.medium": f.Medium})
	}
	if f.TagID != 0 {
		q = q.Where(sq.Expr(
			"EXISTS (SELECT 1 FROM recommendation_tags rt WHERE rt.recommendation_id = r.id AND rt.tag_id = ?)",
			f.TagID,
		))
	}
	for _, term := range strings.Fields(f.Search) {
		pattern := "%" + escapeLike(term) + "%"
		anyField := sq.Or{}
		for _, field := range searchFields {
			anyField = append(anyField, sq.ILike{field: pattern})
		}
		q = q.Where(anyField)
	}

	q = q.OrderBy("r.created_at DESC", "r.id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	return q.ToSql()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes % and _ in user input literal. Backslash is the
// default LIKE escape character in Postgres.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// patchSetMap lists the columns a patch touches. updated_at is always
// refreshed.
func patchSetMap(p repository.RecommendationPatch) map[string]any {
	set := map[string]any{"updated_at": sq.Expr("now()")}

	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Medium != nil {
		set["medium"] = *p.Medium
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Reason != nil {
		set["reason"] = *p.Reason
	}
	if p.IMDbID != nil {
		set["imdbid"] = *p.IMDbID
	}
	if p.ClearPoster {
		set["poster"] = nil
	} else if p.Poster != nil {
		set["poster"] = *p.Poster
	}
	if p.Genre != nil {
		set["genre"] = nonNil(*p.Genre)
	}
	if p.StreamingService != nil {
		set["streaming_service"] = nonNil(*p.StreamingService)
	}
	if p.RelatedShows != nil {
		set["related_shows"] = nonNil(*p.RelatedShows)
	}
	if p.Keywords != nil {
		set["keywords"] = nonNil(*p.Keywords)
	}
	if p.Actors != nil {
		set["actors"] = nonNil(*p.Actors)
	}
	return set
}
