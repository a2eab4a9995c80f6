package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/recshare/internal/apperr"
	"github.com/lalith-99/recshare/internal/auth"
)

// Keys under which AuthMiddleware stores the requester in gin.Context.
const (
	ContextKeyUserID   = "user_id"
	ContextKeyUsername = "username"
)

// AuthMiddleware validates the Bearer token and stores the requester's
// identity for downstream handlers. Requests without a valid token stop
// here with 401.
//
// Why trust the token's user id without a database lookup?
//   - The token is signed with secret, so the id cannot be forged.
//   - A deleted user's token still parses; handlers that load the user
//     return 404 in that case, and owner checks find nothing to own.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, apperr.Unauthorized("missing authorization header"))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abort(c, apperr.Unauthorized("invalid authorization format, expected: Bearer <token>"))
			return
		}

		claims, err := auth.ParseToken(strings.TrimSpace(parts[1]), secret)
		if err != nil {
			abort(c, apperr.Unauthorized("invalid or expired token"))
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Next()
	}
}

// GetUserID returns the authenticated user's id, or 0 outside the auth
// group. 0 never matches a row, so a missing identity fails closed.
func GetUserID(c *gin.Context) int64 {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0
	}
	id, ok := val.(int64)
	if !ok {
		return 0
	}
	return id
}

// GetUsername returns the username from the token, or "" outside
// AuthMiddleware. Handlers use it for log context only.
func GetUsername(c *gin.Context) string {
	val, exists := c.Get(ContextKeyUsername)
	if !exists {
		return ""
	}
	name, ok := val.(string)
	if !ok {
		return ""
	}
	return name
}

func abort(c *gin.Context, err *apperr.Error) {
	c.AbortWithStatusJSON(err.HTTPStatus(), gin.H{
		"error": err.Message,
		"code":  err.Code,
	})
}
