package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/recshare/internal/apperr"
	"github.com/lalith-99/recshare/internal/cache"
	"github.com/lalith-99/recshare/internal/media"
	"github.com/lalith-99/recshare/internal/middleware"
	"github.com/lalith-99/recshare/internal/models"
	"github.com/lalith-99/recshare/internal/repository"
	"go.uber.org/zap"
)

// multipartOverhead is headroom over the image limit for form boundaries
// and part headers.
const multipartOverhead = 64 << 10

// AvatarStore is satisfied by *media.Avatars.
type AvatarStore interface {
	Put(src io.Reader) (string, error)
	Remove(url string) error
}

type UserHandler struct {
	userRepo   repository.UserRepository
	recRepo    repository.RecommendationRepository
	followRepo repository.FollowRepository
	profiles   cache.ProfileCache
	avatars    AvatarStore
	logger     *zap.Logger
}

func NewUserHandler(
	userRepo repository.UserRepository,
	recRepo repository.RecommendationRepository,
	followRepo repository.FollowRepository,
	profiles cache.ProfileCache,
	avatars AvatarStore,
	logger *zap.Logger,
) *UserHandler {
	return &UserHandler{
		userRepo:   userRepo,
		recRepo:    recRepo,
		followRepo: followRepo,
		profiles:   profiles,
		avatars:    avatars,
		logger:     logger,
	}
}

// GetMe handles GET /v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	h.respondProfile(c, middleware.GetUserID(c))
}

// Get handles GET /v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respondProfile(c, userID)
}

// respondProfile serves from the cache when it can. Cache errors are
// logged and fall through to Postgres.
func (h *UserHandler) respondProfile(c *gin.Context, userID int64) {
	ctx := c.Request.Context()

	profile, err := h.profiles.Get(ctx, userID)
	if err != nil {
		h.logger.Warn("profile cache read failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	if profile != nil {
		c.JSON(http.StatusOK, profile)
		return
	}

	profile, err = h.userRepo.Profile(ctx, userID)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to get user", err))
		return
	}
	// A valid token for a deleted account lands here too.
	if profile == nil {
		respondError(c, h.logger, apperr.NotFound("user not found"))
		return
	}

	if err := h.profiles.Set(ctx, profile); err != nil {
		h.logger.Warn("profile cache write failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	c.JSON(http.StatusOK, profile)
}

// ListRecommendations handles GET /v1/users/:id/recommendations
func (h *UserHandler) ListRecommendations(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	page, err := pageParams(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to get user", err))
		return
	}
	if user == nil {
		respondError(c, h.logger, apperr.NotFound("user not found"))
		return
	}

	recs, err := h.recRepo.List(c.Request.Context(), repository.RecommendationFilter{
		UserID: userID,
		Page:   page,
	})
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to list recommendations", err))
		return
	}
	c.JSON(http.StatusOK, recs)
}

// DeleteMe handles DELETE /v1/users/me
//
// Everything the account owns goes with it through ON DELETE CASCADE.
// Profiles that listed this user as a followee are invalidated too.
func (h *UserHandler) DeleteMe(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to get user", err))
		return
	}
	if user == nil {
		respondError(c, h.logger, apperr.NotFound("user not found"))
		return
	}

	affected, err := h.relatedUsers(ctx, userID)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to delete user", err))
		return
	}

	if err := h.userRepo.Delete(ctx, userID); err != nil {
		respondError(c, h.logger, storeError(err, "failed to delete user", "user not found", ""))
		return
	}

	invalidateProfiles(ctx, h.profiles, h.logger, append(affected, userID)...)
	if err := h.avatars.Remove(user.AvatarURL); err != nil {
		h.logger.Warn("failed to remove avatar file", zap.String("url", user.AvatarURL), zap.Error(err))
	}

	h.logger.Info("user deleted",
		zap.Int64("user_id", userID),
		zap.String("username", middleware.GetUsername(c)),
	)
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) relatedUsers(ctx context.Context, userID int64) ([]int64, error) {
	followers, err := h.followRepo.ListFollowers(ctx, userID)
	if err != nil {
		return nil, err
	}
	followees, err := h.followRepo.ListFollowees(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(followers)+len(followees))
	for _, f := range followers {
		ids = append(ids, f.Follower.ID)
	}
	for _, f := range followees {
		ids = append(ids, f.Followee.ID)
	}
	return ids, nil
}

// UploadAvatar handles PATCH /v1/users/me/avatar
//
// Expects multipart/form-data with the image in the "avatar" field. The
// new file is written first; the old one is removed only after the row
// points at the new URL.
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to get user", err))
		return
	}
	if user == nil {
		respondError(c, h.logger, apperr.NotFound("user not found"))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, media.MaxAvatarBytes+multipartOverhead)
	header, err := c.FormFile("avatar")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, h.logger, apperr.Validation("avatar exceeds 5 MiB"))
			return
		}
		respondError(c, h.logger, apperr.Validation("multipart field 'avatar' is required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to read upload", err))
		return
	}
	defer file.Close()

	url, err := h.avatars.Put(file)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrImageTooLarge):
			respondError(c, h.logger, apperr.Validation("avatar exceeds 5 MiB or 40 megapixels"))
		case errors.Is(err, media.ErrUnsupportedImage):
			respondError(c, h.logger, apperr.Validation("avatar must be a jpeg, png, gif or webp image"))
		default:
			respondError(c, h.logger, apperr.Internal("failed to store avatar", err))
		}
		return
	}

	if err := h.userRepo.UpdateAvatar(ctx, userID, url); err != nil {
		if rmErr := h.avatars.Remove(url); rmErr != nil {
			h.logger.Warn("failed to remove orphaned avatar", zap.String("url", url), zap.Error(rmErr))
		}
		respondError(c, h.logger, storeError(err, "failed to update avatar", "user not found", ""))
		return
	}

	if err := h.avatars.Remove(user.AvatarURL); err != nil {
		h.logger.Warn("failed to remove previous avatar", zap.String("url", user.AvatarURL), zap.Error(err))
	}

	// Follower and followee lists embed the avatar URL, so every profile
	// listing this user is stale too.
	affected, err := h.relatedUsers(ctx, userID)
	if err != nil {
		h.logger.Warn("failed to list related users", zap.Int64("user_id", userID), zap.Error(err))
	}
	invalidateProfiles(ctx, h.profiles, h.logger, append(affected, userID)...)

	h.logger.Info("avatar updated",
		zap.Int64("user_id", userID),
		zap.String("username", middleware.GetUsername(c)),
	)

	c.JSON(http.StatusOK, models.UserSummary{
		ID:        user.ID,
		Username:  user.Username,
		AvatarURL: url,
	})
}

// invalidateProfiles drops cached profiles. A failure only delays
// freshness until the TTL, so it is logged rather than returned.
func invalidateProfiles(ctx context.Context, profiles cache.ProfileCache, logger *zap.Logger, userIDs ...int64) {
	if err := profiles.Invalidate(ctx, userIDs...); err != nil {
		logger.Warn("profile cache invalidation failed",
			zap.Int64s("user_ids", userIDs),
			zap.Error(err),
		)
	}
}
