package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/recshare/internal/apperr"
	"github.com/lalith-99/recshare/internal/middleware"
	"github.com/lalith-99/recshare/internal/models"
	"github.com/lalith-99/recshare/internal/repository"
	"go.uber.org/zap"
)

// SaveHandler serves the watchlist and watched routes. Both are views of
// one saved set keyed by (user, recommendation) with a status, so the
// handlers are built per status.
type SaveHandler struct {
	saveRepo repository.SaveRepository
	recRepo  repository.RecommendationRepository
	logger   *zap.Logger
}

func NewSaveHandler(saveRepo repository.SaveRepository, recRepo repository.RecommendationRepository, logger *zap.Logger) *SaveHandler {
	return &SaveHandler{
		saveRepo: saveRepo,
		recRepo:  recRepo,
		logger:   logger,
	}
}

// Add handles POST /v1/watchlist/:id and POST /v1/watched/:id.
// Adding again is a no-op; adding under the other status moves it.
func (h *SaveHandler) Add(status models.SaveStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		recID, err := pathID(c, "id")
		if err != nil {
			respondError(c, h.logger, err)
			return
		}

		rec, err := h.recRepo.GetByID(c.Request.Context(), recID)
		if err != nil {
			respondError(c, h.logger, apperr.Internal("failed to get recommendation", err))
			return
		}
		if rec == nil {
			respondError(c, h.logger, apperr.NotFound("recommendation not found"))
			return
		}

		if err := h.saveRepo.Save(c.Request.Context(), middleware.GetUserID(c), recID, status); err != nil {
			respondError(c, h.logger, storeError(err, "failed to save recommendation", "recommendation not found", ""))
			return
		}

		// Reload so saved_count includes this save.
		rec, err = h.recRepo.GetByID(c.Request.Context(), recID)
		if err != nil {
			respondError(c, h.logger, apperr.Internal("failed to get recommendation", err))
			return
		}
		if rec == nil {
			respondError(c, h.logger, apperr.NotFound("recommendation not found"))
			return
		}

		c.JSON(http.StatusCreated, rec)
	}
}

// Remove handles DELETE /v1/watchlist/:id and DELETE /v1/watched/:id.
func (h *SaveHandler) Remove(status models.SaveStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		recID, err := pathID(c, "id")
		if err != nil {
			respondError(c, h.logger, err)
			return
		}

		err = h.saveRepo.Remove(c.Request.Context(), middleware.GetUserID(c), recID, status)
		if err != nil {
			respondError(c, h.logger, storeError(err, "failed to remove recommendation", "recommendation is not in this list", ""))
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// List handles GET /v1/watchlist and GET /v1/watched.
func (h *SaveHandler) List(status models.SaveStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.list(c, status)
	}
}

// ListAll handles GET /v1/saves with an optional ?status= filter.
func (h *SaveHandler) ListAll(c *gin.Context) {
	status := models.SaveStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		respondError(c, h.logger, apperr.Validation("status must be 'to_watch' or 'watched'"))
		return
	}
	h.list(c, status)
}

func (h *SaveHandler) list(c *gin.Context, status models.SaveStatus) {
	saved, err := h.saveRepo.List(c.Request.Context(), middleware.GetUserID(c), status)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to list saved recommendations", err))
		return
	}
	c.JSON(http.StatusOK, saved)
}
