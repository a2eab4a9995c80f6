package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/recshare/internal/apperr"
	"github.com/lalith-99/recshare/internal/auth"
	"github.com/lalith-99/recshare/internal/models"
	"github.com/lalith-99/recshare/internal/repository"
	"go.uber.org/zap"
)

// AuthHandler serves signup and login, the only routes outside the JWT
// group.
type AuthHandler struct {
	userRepo  repository.UserRepository
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewAuthHandler(userRepo repository.UserRepository, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

type signupRequest struct {
	Username string `json:"username" binding:"required,min=3,max=150"`
	Email    string `json:"email" binding:"omitempty,email,max=254"`
	// bcrypt ignores bytes past 72.
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token string             `json:"token"`
	User  models.UserSummary `json:"user"`
}

// Signup handles POST /v1/auth/signup
//
// The unique index on username decides races; a second concurrent signup
// with the same name gets 409 from the insert itself.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("signup failed", err))
		return
	}

	user, err := h.userRepo.Create(c.Request.Context(), req.Username, req.Email, hash)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			respondError(c, h.logger, apperr.Conflict("username already taken"))
			return
		}
		respondError(c, h.logger, apperr.Internal("signup failed", err))
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, bindError(err))
		return
	}

	user, err := h.userRepo.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("login failed", err))
		return
	}

	// Same answer for unknown user and wrong password.
	if user == nil {
		respondError(c, h.logger, apperr.Unauthorized("invalid username or password"))
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			respondError(c, h.logger, apperr.Unauthorized("invalid username or password"))
			return
		}
		respondError(c, h.logger, apperr.Internal("login failed", err))
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := auth.GenerateToken(user.ID, user.Username, h.jwtSecret, h.tokenTTL)
	if err != nil {
		respondError(c, h.logger, apperr.Internal("failed to generate token", err))
		return
	}

	c.JSON(status, authResponse{
		Token: token,
		User: models.UserSummary{
			ID:        user.ID,
			Username:  user.Username,
			AvatarURL: user.AvatarURL,
		},
	})
}
