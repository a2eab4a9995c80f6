package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/recshare/internal/cache"
	"github.com/lalith-99/recshare/internal/middleware"
	"github.com/lalith-99/recshare/internal/models"
	"github.com/lalith-99/recshare/internal/observ"
	"github.com/lalith-99/recshare/internal/repository"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps is everything the HTTP layer needs. Repositories are interfaces so
// tests can swap in in-memory fakes.
type Deps struct {
	Users           repository.UserRepository
	Tags            repository.TagRepository
	Recommendations repository.RecommendationRepository
	Comments        repository.CommentRepository
	Follows         repository.FollowRepository
	Saves           repository.SaveRepository

	Profiles    cache.ProfileCache
	Avatars     AvatarStore
	DB          Pinger
	AuthLimiter middleware.Limiter

	JWTSecret string
	TokenTTL  time.Duration
	// MediaDir is served at MediaURLPrefix when set.
	MediaDir       string
	MediaURLPrefix string

	Logger *zap.Logger
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(d Deps) *gin.Engine {
	if d.Profiles == nil {
		d.Profiles = cache.NopProfileCache{}
	}

	r := gin.New()
	r.Use(
		observ.RequestID(),
		observ.Metrics(),
		observ.AccessLog(d.Logger, middleware.ContextKeyUserID),
		gin.Recovery(),
	)

	health := NewHealthHandler(d.DB, d.Logger)
	authH := NewAuthHandler(d.Users, d.JWTSecret, d.TokenTTL, d.Logger)
	recH := NewRecommendationHandler(d.Recommendations, d.Logger)
	commentH := NewCommentHandler(d.Comments, d.Recommendations, d.Logger)
	followH := NewFollowHandler(d.Follows, d.Users, d.Profiles, d.Logger)
	saveH := NewSaveHandler(d.Saves, d.Recommendations, d.Logger)
	tagH := NewTagHandler(d.Tags, d.Logger)
	userH := NewUserHandler(d.Users, d.Recommendations, d.Follows, d.Profiles, d.Avatars, d.Logger)

	// Public routes.
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/v1/health", health.Health)
	if d.MediaDir != "" && d.MediaURLPrefix != "" {
		r.Static(d.MediaURLPrefix, d.MediaDir)
	}

	authGroup := r.Group("/v1/auth")
	if d.AuthLimiter != nil {
		authGroup.Use(middleware.RateLimitByIP(d.AuthLimiter))
	}
	authGroup.POST("/signup", authH.Signup)
	authGroup.POST("/login", authH.Login)

	// Everything else requires a valid JWT.
	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(d.JWTSecret))

	v1.GET("/recommendations", recH.List)
	v1.POST("/recommendations", recH.Create)
	v1.GET("/recommendations/:id", recH.Get)
	v1.PUT("/recommendations/:id", recH.Replace)
	v1.PATCH("/recommendations/:id", recH.Patch)
	v1.DELETE("/recommendations/:id", recH.Delete)

	v1.GET("/recommendations/:id/comments", commentH.List)
	v1.POST("/recommendations/:id/comments", commentH.Create)
	v1.DELETE("/comments/:id", commentH.Delete)

	v1.GET("/follows/followers", followH.Followers)
	v1.GET("/follows/followees", followH.Followees)
	v1.POST("/follows/:user_id", followH.Create)
	v1.DELETE("/follows/:user_id", followH.Delete)

	v1.GET("/watchlist", saveH.List(models.SaveToWatch))
	v1.POST("/watchlist/:id", saveH.Add(models.SaveToWatch))
	v1.DELETE("/watchlist/:id", saveH.Remove(models.SaveToWatch))
	v1.GET("/watched", saveH.List(models.SaveWatched))
	v1.POST("/watched/:id", saveH.Add(models.SaveWatched))
	v1.DELETE("/watched/:id", saveH.Remove(models.SaveWatched))
	v1.GET("/saves", saveH.ListAll)

	v1.GET("/tags", tagH.List)
	v1.POST("/tags", tagH.Create)
	v1.GET("/tags/:id", tagH.Get)
	v1.PUT("/tags/:id", tagH.Update)
	v1.DELETE("/tags/:id", tagH.Delete)

	v1.GET("/users/me", userH.GetMe)
	v1.DELETE("/users/me", userH.DeleteMe)
	v1.PATCH("/users/me/avatar", userH.UploadAvatar)
	v1.GET("/users/:id", userH.Get)
	v1.GET("/users/:id/recommendations", userH.ListRecommendations)

	return r
}
