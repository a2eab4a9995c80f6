package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/recshare/internal/apperr"
	"github.com/lalith-99/recshare/internal/repository"
	"go.uber.org/zap"
)

// TagHandler serves the shared tag vocabulary. Tags have no owner; any
// authenticated user may edit them.
type TagHandler struct {
	repo   repository.TagRepository
	logger *zap.Logger
}

func NewTagHandler(repo repository.TagRepository, logger *zap.Logger) *TagHandler {
	return &TagHandler{repo: repo, logger: logger}
}

type tagRequest struct {
	Label string `json:"label" binding:"required,max=50"`
}

func (r *tagRequest) bind(c *gin.Context) error {
	if err := c.ShouldBindJSON(r); err != nil {
		return bindError(err)
	}
	r.Label = strings.TrimSpace(r.Label)
	if r.Label == "" {
		return apperr.Validation("label cannot be empty")
	}
	return nil
}

// List handles GET /v1/tags
func (h *TagHandler) List(c *gin.Context) {
	tags, err := h.repo.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to list tags", err))
		return
	}
	c.JSON(http.StatusOK, tags)
}

// Create handles POST /v1/tags
func (h *TagHandler) Create(c *gin.Context) {
	var req tagRequest
	if err := req.bind(c); err != nil {
		respondError(c, h.logger, err)
		return
	}

	tag, err := h.repo.Create(c.Request.Context(), req.Label)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to create tag", err))
		return
	}
	c.JSON(http.StatusCreated, tag)
}

// Get handles GET /v1/tags/:id
func (h *TagHandler) Get(c *gin.Context) {
	tagID, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	tag, err := h.repo.GetByID(c.Request.Context(), tagID)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to get tag", err))
		return
	}
	if tag == nil {
		respondError(c, h.logger, apperr.NotFound("tag not found"))
		return
	}
	c.JSON(http.StatusOK, tag)
}

// Update handles PUT /v1/tags/:id
func (h *TagHandler) Update(c *gin.Context) {
	tagID, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req tagRequest
	if err := req.bind(c); err != nil {
		respondError(c, h.logger, err)
		return
	}

	tag, err := h.repo.Update(c.Request.Context(), tagID, req.Label)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to update tag", err))
		return
	}
	if tag == nil {
		respondError(c, h.logger, apperr.NotFound("tag not found"))
		return
	}
	c.JSON(http.StatusOK, tag)
}

// Delete handles DELETE /v1/tags/:id
func (h *TagHandler) Delete(c *gin.Context) {
	tagID, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.repo.Delete(c.Request.Context(), tagID); err != nil {
		respondError(c, h.logger, storeError(err, "failed to delete tag", "tag not found", ""))
		return
	}
	c.Status(http.StatusNoContent)
}
