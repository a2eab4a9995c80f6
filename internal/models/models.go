package models

import (
	"time"
)

// User is an account. PasswordHash never leaves the server.
//
// IDs are bigserial int64 across the schema: every row is created through
// this API, so a single sequence per table is enough and keeps URLs short
// (/v1/recommendations/5).
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"avatar_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserSummary is the slice of a user embedded in other payloads.
type UserSummary struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// Profile is the public view of a user, with the derived followee list.
type Profile struct {
	ID            int64         `json:"id"`
	Username      string        `json:"username"`
	AvatarURL     string        `json:"avatar_url"`
	Followees     []UserSummary `json:"followees"`
	FollowerCount int           `json:"follower_count"`
	FolloweeCount int           `json:"followee_count"`
	CreatedAt     time.Time     `json:"created_at"`
}

type Tag struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Recommendation is a user's pitch for a movie or show.
//
// UserID is set from the authenticated requester at creation and never
// changes afterwards. Tags and SavedCount are joined in by the store; they
// are not columns on the recommendations table.
type Recommendation struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	Username         string    `json:"username"`
	Title            string    `json:"title"`
	Medium           string    `json:"medium"`
	Description      string    `json:"description"`
	Reason           string    `json:"reason"`
	IMDbID           string    `json:"imdbid"`
	Poster           *string   `json:"poster"`
	Genre            []string  `json:"genre"`
	StreamingService []string  `json:"streaming_service"`
	RelatedShows     []string  `json:"related_shows"`
	Keywords         []string  `json:"keywords"`
	Actors           []string  `json:"actors"`
	Tags             []Tag     `json:"tags"`
	SavedCount       int       `json:"saved_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (r *Recommendation) OwnerID() int64 {
	return r.UserID
}

type Comment struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	Username         string    `json:"username"`
	RecommendationID int64     `json:"recommendation_id"`
	Body             string    `json:"comment"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (c *Comment) OwnerID() int64 {
	return c.UserID
}

// Follow is a directed edge: Follower receives Followee's content.
// (follower, followee) is unique and never self-referential.
type Follow struct {
	ID        int64       `json:"id"`
	Follower  UserSummary `json:"follower"`
	Followee  UserSummary `json:"followee"`
	CreatedAt time.Time   `json:"created_at"`
}

// SaveStatus distinguishes the two halves of a user's saved set.
type SaveStatus string

const (
	SaveToWatch SaveStatus = "to_watch"
	SaveWatched SaveStatus = "watched"
)

func (s SaveStatus) Valid() bool {
	return s == SaveToWatch || s == SaveWatched
}

// SavedRecommendation is a saved-set entry with the recommendation inlined.
type SavedRecommendation struct {
	Status         SaveStatus     `json:"status"`
	SavedAt        time.Time      `json:"saved_at"`
	Recommendation Recommendation `json:"recommendation"`
}
