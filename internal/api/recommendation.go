package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/recshare/internal/apperr"
	"github.com/lalith-99/recshare/internal/auth"
	"github.com/lalith-99/recshare/internal/middleware"
	"github.com/lalith-99/recshare/internal/models"
	"github.com/lalith-99/recshare/internal/repository"
	"go.uber.org/zap"
)

const maxPosterLen = 400

type RecommendationHandler struct {
	repo   repository.RecommendationRepository
	logger *zap.Logger
}

func NewRecommendationHandler(repo repository.RecommendationRepository, logger *zap.Logger) *RecommendationHandler {
	return &RecommendationHandler{repo: repo, logger: logger}
}

// recommendationRequest is the body of POST and PUT. There is no owner
// field: the owner is always the caller.
type recommendationRequest struct {
	Title            string   `json:"title" binding:"required,max=125"`
	Medium           string   `json:"medium" binding:"required,max=255"`
	Description      string   `json:"description" binding:"max=1000"`
	Reason           string   `json:"reason" binding:"max=750"`
	IMDbID           string   `json:"imdbid" binding:"max=100"`
	Poster           *string  `json:"poster"`
	Genre            []string `json:"genre"`
	StreamingService []string `json:"streaming_service"`
	RelatedShows     []string `json:"related_shows"`
	Keywords         []string `json:"keywords"`
	Actors           []string `json:"actors"`
	TagIDs           []int64  `json:"tag_ids"`
}

// patchRecommendationRequest is the body of PATCH. Absent fields are kept;
// "poster": "" clears the poster.
type patchRecommendationRequest struct {
	Title            *string   `json:"title" binding:"omitempty,max=125"`
	Medium           *string   `json:"medium" binding:"omitempty,max=255"`
	Description      *string   `json:"description" binding:"omitempty,max=1000"`
	Reason           *string   `json:"reason" binding:"omitempty,max=750"`
	IMDbID           *string   `json:"imdbid" binding:"omitempty,max=100"`
	Poster           *string   `json:"poster"`
	Genre            *[]string `json:"genre"`
	StreamingService *[]string `json:"streaming_service"`
	RelatedShows     *[]string `json:"related_shows"`
	Keywords         *[]string `json:"keywords"`
	Actors           *[]string `json:"actors"`
	TagIDs           *[]int64  `json:"tag_ids"`
}

// List handles GET /v1/recommendations
//
// Filters: id, tag, user, title, imdbid, medium (exact) and search
// (every whitespace-separated term must appear in title, description
// or imdbid). Unknown parameters are ignored.
func (h *RecommendationHandler) List(c *gin.Context) {
	filter, err := parseRecommendationFilter(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	recs, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to list recommendations", err))
		return
	}

	c.JSON(http.StatusOK, recs)
}

func parseRecommendationFilter(c *gin.Context) (repository.RecommendationFilter, error) {
	var (
		f   repository.RecommendationFilter
		err error
	)
	if f.ID, err = queryID(c, "id"); err != nil {
		return f, err
	}
	if f.TagID, err = queryID(c, "tag"); err != nil {
		return f, err
	}
	if f.UserID, err = queryID(c, "user"); err != nil {
		return f, err
	}
	if f.Page, err = pageParams(c); err != nil {
		return f, err
	}
	f.Title = c.Query("title")
	f.IMDbID = c.Query("imdbid")
	f.Medium = c.Query("medium")
	f.Search = c.Query("search")
	return f, nil
}

// Create handles POST /v1/recommendations
func (h *RecommendationHandler) Create(c *gin.Context) {
	var req recommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	poster, err := validatePoster(req.Poster)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	in := repository.RecommendationInput{
		Title:            req.Title,
		Medium:           req.Medium,
		Description:      req.Description,
		Reason:           req.Reason,
		IMDbID:           req.IMDbID,
		Poster:           poster,
		Genre:            req.Genre,
		StreamingService: req.StreamingService,
		RelatedShows:     req.RelatedShows,
		Keywords:         req.Keywords,
		Actors:           req.Actors,
		TagIDs:           req.TagIDs,
	}

	rec, err := h.repo.Create(c.Request.Context(), middleware.GetUserID(c), in)
	if err != nil {
		respondError(c, h.logger, storeError(err, "failed to create recommendation", "recommendation not found", "unknown tag id"))
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// Get handles GET /v1/recommendations/:id
func (h *RecommendationHandler) Get(c *gin.Context) {
	rec, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Replace handles PUT /v1/recommendations/:id
//
// Every writable field is overwritten: omitted arrays become empty, an
// omitted poster is cleared and the tag set is replaced.
func (h *RecommendationHandler) Replace(c *gin.Context) {
	var req recommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	poster, err := validatePoster(req.Poster)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	tagIDs := req.TagIDs
	patch := repository.RecommendationPatch{
		Title:            &req.Title,
		Medium:           &req.Medium,
		Description:      &req.Description,
		Reason:           &req.Reason,
		IMDbID:           &req.IMDbID,
		Poster:           poster,
		ClearPoster:      poster == nil,
		Genre:            &req.Genre,
		StreamingService: &req.StreamingService,
		RelatedShows:     &req.RelatedShows,
		Keywords:         &req.Keywords,
		Actors:           &req.Actors,
		TagIDs:           &tagIDs,
	}
	h.update(c, patch)
}

// Patch handles PATCH /v1/recommendations/:id
func (h *RecommendationHandler) Patch(c *gin.Context) {
	var req patchRecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		respondError(c, h.logger, apperr.Validation("title cannot be empty"))
		return
	}
	if req.Medium != nil && strings.TrimSpace(*req.Medium) == "" {
		respondError(c, h.logger, apperr.Validation("medium cannot be empty"))
		return
	}

	patch := repository.RecommendationPatch{
		Title:            req.Title,
		Medium:           req.Medium,
		Description:      req.Description,
		Reason:           req.Reason,
		IMDbID:           req.IMDbID,
		Genre:            req.Genre,
		StreamingService: req.StreamingService,
		RelatedShows:     req.RelatedShows,
		Keywords:         req.Keywords,
		Actors:           req.Actors,
		TagIDs:           req.TagIDs,
	}
	if req.Poster != nil {
		if *req.Poster == "" {
			patch.ClearPoster = true
		} else {
			poster, err := validatePoster(req.Poster)
			if err != nil {
				respondError(c, h.logger, err)
				return
			}
			patch.Poster = poster
		}
	}
	h.update(c, patch)
}

func (h *RecommendationHandler) update(c *gin.Context, patch repository.RecommendationPatch) {
	rec, ok := h.load(c)
	if !ok {
		return
	}
	if err := auth.Authorize(middleware.GetUserID(c), rec); err != nil {
		respondError(c, h.logger, err)
		return
	}

	updated, err := h.repo.Update(c.Request.Context(), rec.ID, patch)
	if err != nil {
		respondError(c, h.logger, storeError(err, "failed to update recommendation", "recommendation not found", "unknown tag id"))
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /v1/recommendations/:id
func (h *RecommendationHandler) Delete(c *gin.Context) {
	rec, ok := h.load(c)
	if !ok {
		return
	}
	if err := auth.Authorize(middleware.GetUserID(c), rec); err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.repo.Delete(c.Request.Context(), rec.ID); err != nil {
		respondError(c, h.logger, storeError(err, "failed to delete recommendation", "recommendation not found", ""))
		return
	}

	c.Status(http.StatusNoContent)
}

// load resolves :id or writes the error response and reports false.
func (h *RecommendationHandler) load(c *gin.Context) (*models.Recommendation, bool) {
	recID, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}

	rec, err := h.repo.GetByID(c.Request.Context(), recID)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to get recommendation", err))
		return nil, false
	}
	if rec == nil {
		respondError(c, h.logger, apperr.NotFound("recommendation not found"))
		return nil, false
	}
	return rec, true
}

// validatePoster accepts nil, or an absolute http(s) URL of at most 400
// bytes. An empty string is treated as nil.
func validatePoster(poster *string) (*string, error) {
	if poster == nil || *poster == "" {
		return nil, nil
	}
	if len(*poster) > maxPosterLen {
		return nil, apperr.Validation("poster url is too long")
	}
	u, err := url.Parse(*poster)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperr.Validation("poster must be an http(s) url")
	}
	return poster, nil
}
