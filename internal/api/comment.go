package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/recshare/internal/apperr"
	"github.com/lalith-99/recshare/internal/auth"
	"github.com/lalith-99/recshare/internal/middleware"
	"github.com/lalith-99/recshare/internal/repository"
	"go.uber.org/zap"
)

type CommentHandler struct {
	commentRepo repository.CommentRepository
	recRepo     repository.RecommendationRepository
	logger      *zap.Logger
}

func NewCommentHandler(commentRepo repository.CommentRepository, recRepo repository.RecommendationRepository, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{
		commentRepo: commentRepo,
		recRepo:     recRepo,
		logger:      logger,
	}
}

type createCommentRequest struct {
	Comment string `json:"comment" binding:"required,max=750"`
}

// List handles GET /v1/recommendations/:id/comments
func (h *CommentHandler) List(c *gin.Context) {
	recID, ok := h.requireRecommendation(c)
	if !ok {
		return
	}
	page, err := pageParams(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	comments, err := h.commentRepo.ListByRecommendation(c.Request.Context(), recID, page)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to list comments", err))
		return
	}

	c.JSON(http.StatusOK, comments)
}

// Create handles POST /v1/recommendations/:id/comments
//
// The recommendation is looked up before anything is written; a missing
// one is a 404 with no comment row.
func (h *CommentHandler) Create(c *gin.Context) {
	recID, ok := h.requireRecommendation(c)
	if !ok {
		return
	}

	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}
	if strings.TrimSpace(req.Comment) == "" {
		respondError(c, h.logger, apperr.Validation("comment cannot be empty"))
		return
	}

	comment, err := h.commentRepo.Create(c.Request.Context(), recID, middleware.GetUserID(c), req.Comment)
	if err != nil {
		respondError(c, h.logger, storeError(err, "failed to create comment", "recommendation not found", ""))
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// Delete handles DELETE /v1/comments/:id
func (h *CommentHandler) Delete(c *gin.Context) {
	commentID, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	comment, err := h.commentRepo.GetByID(c.Request.Context(), commentID)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to get comment", err))
		return
	}
	if comment == nil {
		respondError(c, h.logger, apperr.NotFound("comment not found"))
		return
	}
	if err := auth.Authorize(middleware.GetUserID(c), comment); err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.commentRepo.Delete(c.Request.Context(), commentID); err != nil {
		respondError(c, h.logger, storeError(err, "failed to delete comment", "comment not found", ""))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *CommentHandler) requireRecommendation(c *gin.Context) (int64, bool) {
	recID, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return 0, false
	}

	rec, err := h.recRepo.GetByID(c.Request.Context(), recID)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to get recommendation", err))
		return 0, false
	}
	if rec == nil {
		respondError(c, h.logger, apperr.NotFound("recommendation not found"))
		return 0, false
	}
	return recID, true
}
