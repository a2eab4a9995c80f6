package repository

import (
	"context"
	"errors"

	"github.com/lalith-99/recshare/internal/models"
)

// Every method takes ctx first so a cancelled request cancels its query.
//
// Lookups by id return (nil, nil) when the row does not exist; handlers
// turn that into a 404. Mutations that target a missing row return
// ErrNotFound.

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is a unique-constraint violation (e.g. username taken).
	ErrDuplicate = errors.New("duplicate")
	// ErrInvalidReference is a foreign-key violation (e.g. unknown tag id).
	ErrInvalidReference = errors.New("invalid reference")
)

// Page bounds a list query.
type Page struct {
	Limit  uint64
	Offset uint64
}

// RecommendationFilter is the closed set of list filters. Zero values are
// ignored. Everything is exact match except Search, which is a
// case-insensitive substring match of every term against title,
// description or imdbid.
type RecommendationFilter struct {
	ID     int64
	TagID  int64
	Title  string
	IMDbID string
	Medium string
	UserID int64
	Search string
	Page
}

// RecommendationInput carries the client-writable fields. The owner is
// never part of it.
type RecommendationInput struct {
	Title            string
	Medium           string
	Description      string
	Reason           string
	IMDbID           string
	Poster           *string
	Genre            []string
	StreamingService []string
	RelatedShows     []string
	Keywords         []string
	Actors           []string
	TagIDs           []int64
}

// RecommendationPatch is a partial update: nil fields are left alone.
// A non-nil TagIDs replaces the whole tag set.
type RecommendationPatch struct {
	Title            *string
	Medium           *string
	Description      *string
	Reason           *string
	IMDbID           *string
	Poster           *string
	ClearPoster      bool
	Genre            *[]string
	StreamingService *[]string
	RelatedShows     *[]string
	Keywords         *[]string
	Actors           *[]string
	TagIDs           *[]int64
}

type UserRepository interface {
	// Create returns ErrDuplicate if the username is taken.
	Create(ctx context.Context, username, email, passwordHash string) (*models.User, error)
	GetByID(ctx context.Context, userID int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateAvatar(ctx context.Context, userID int64, avatarURL string) error
	// Delete cascades to the user's recommendations, comments, follows and saves.
	Delete(ctx context.Context, userID int64) error
	// Profile returns the public profile with followees, or nil if missing.
	Profile(ctx context.Context, userID int64) (*models.Profile, error)
}

type TagRepository interface {
	Create(ctx context.Context, label string) (*models.Tag, error)
	GetByID(ctx context.Context, tagID int64) (*models.Tag, error)
	List(ctx context.Context) ([]models.Tag, error)
	// Update returns nil, nil if the tag does not exist.
	Update(ctx context.Context, tagID int64, label string) (*models.Tag, error)
	Delete(ctx context.Context, tagID int64) error
}

type RecommendationRepository interface {
	// Create returns ErrInvalidReference if a tag id does not exist.
	Create(ctx context.Context, ownerID int64, in RecommendationInput) (*models.Recommendation, error)
	GetByID(ctx context.Context, recID int64) (*models.Recommendation, error)
	List(ctx context.Context, filter RecommendationFilter) ([]models.Recommendation, error)
	Update(ctx context.Context, recID int64, patch RecommendationPatch) (*models.Recommendation, error)
	Delete(ctx context.Context, recID int64) error
}

type CommentRepository interface {
	Create(ctx context.Context, recID, userID int64, body string) (*models.Comment, error)
	GetByID(ctx context.Context, commentID int64) (*models.Comment, error)
	ListByRecommendation(ctx context.Context, recID int64, page Page) ([]models.Comment, error)
	Delete(ctx context.Context, commentID int64) error
}

type FollowRepository interface {
	// Create inserts the edge if absent. created is false when the edge
	// already existed; the returned Follow is nil in that case.
	Create(ctx context.Context, followerID, followeeID int64) (follow *models.Follow, created bool, err error)
	// Delete returns ErrNotFound if there was no edge.
	Delete(ctx context.Context, followerID, followeeID int64) error
	ListFollowers(ctx context.Context, userID int64) ([]models.Follow, error)
	ListFollowees(ctx context.Context, userID int64) ([]models.Follow, error)
}

type SaveRepository interface {
	// Save upserts membership with the given status. Saving twice leaves
	// one row.
	Save(ctx context.Context, userID, recID int64, status models.SaveStatus) error
	// Remove deletes membership only if it currently has status; a zero
	// status removes regardless. Returns ErrNotFound if nothing matched.
	Remove(ctx context.Context, userID, recID int64, status models.SaveStatus) error
	// List returns saved entries newest first; a zero status lists all.
	List(ctx context.Context, userID int64, status models.SaveStatus) ([]models.SavedRecommendation, error)
}
