package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/recshare/internal/apperr"
	"github.com/lalith-99/recshare/internal/cache"
	"github.com/lalith-99/recshare/internal/middleware"
	"github.com/lalith-99/recshare/internal/repository"
	"go.uber.org/zap"
)

type FollowHandler struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	profiles   cache.ProfileCache
	logger     *zap.Logger
}

func NewFollowHandler(followRepo repository.FollowRepository, userRepo repository.UserRepository, profiles cache.ProfileCache, logger *zap.Logger) *FollowHandler {
	return &FollowHandler{
		followRepo: followRepo,
		userRepo:   userRepo,
		profiles:   profiles,
		logger:     logger,
	}
}

// Followers handles GET /v1/follows/followers
func (h *FollowHandler) Followers(c *gin.Context) {
	follows, err := h.followRepo.ListFollowers(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to list followers", err))
		return
	}
	c.JSON(http.StatusOK, follows)
}

// Followees handles GET /v1/follows/followees
func (h *FollowHandler) Followees(c *gin.Context) {
	follows, err := h.followRepo.ListFollowees(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to list followees", err))
		return
	}
	c.JSON(http.StatusOK, follows)
}

// Create handles POST /v1/follows/:user_id
//
// The insert is ON CONFLICT DO NOTHING, so two racing requests for the
// same edge produce one row; the loser sees created=false and gets 409.
func (h *FollowHandler) Create(c *gin.Context) {
	followerID := middleware.GetUserID(c)
	followeeID, err := pathID(c, "user_id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if followeeID == followerID {
		respondError(c, h.logger, apperr.Validation("you cannot follow yourself"))
		return
	}

	target, err := h.userRepo.GetByID(c.Request.Context(), followeeID)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to get user", err))
		return
	}
	if target == nil {
		respondError(c, h.logger, apperr.NotFound("user not found"))
		return
	}

	follow, created, err := h.followRepo.Create(c.Request.Context(), followerID, followeeID)
	if err != nil {
		respondError(c, h.logger, storeError(err, "failed to follow user", "user not found", ""))
		return
	}
	if !created {
		respondError(c, h.logger, apperr.Conflict("already following this user"))
		return
	}

	invalidateProfiles(c.Request.Context(), h.profiles, h.logger, followerID, followeeID)
	c.JSON(http.StatusCreated, follow)
}

// Delete handles DELETE /v1/follows/:user_id
func (h *FollowHandler) Delete(c *gin.Context) {
	followerID := middleware.GetUserID(c)
	followeeID, err := pathID(c, "user_id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.followRepo.Delete(c.Request.Context(), followerID, followeeID); err != nil {
		respondError(c, h.logger, storeError(err, "failed to unfollow user", "not following this user", ""))
		return
	}

	invalidateProfiles(c.Request.Context(), h.profiles, h.logger, followerID, followeeID)
	c.Status(http.StatusNoContent)
}
