package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/promptash/promptash/internal/domain/entity"
	"github.com/promptash/promptash/pkg/helpers"
	"github.com/promptash/promptash/pkg/response"
)

const (
	CtxUserIDKey   = "userID"
	CtxUserNameKey = "userName"
	CtxUserRoleKey = "userRole"
)

// Auth validates the access token and ensures an active session exists in
// Redis. It sets userID, userName and userRole in the Gin context on success.
func Auth(rdb *redis.Client, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("access_token")
		if err != nil || token == "" {
			response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			c.Abort()
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid access token", err.Error())
			c.Abort()
			return
		}

		// The token is only as good as the session behind it: logout and
		// password reset kill the session hash.
		key := "user:session:" + claims.UserID
		data, err := rdb.HGetAll(c.Request.Context(), key).Result()
		if err != nil || len(data) == 0 || data["sid"] != claims.SessionID {
			response.Error[any](c, http.StatusUnauthorized, "session not found", nil)
			c.Abort()
			return
		}

		c.Set(CtxUserIDKey, data["user_id"])
		c.Set(CtxUserNameKey, data["username"])
		c.Set(CtxUserRoleKey, data["role"])
		c.Next()
	}
}

// RequireAdmin allows only sessions carrying the admin role. Must run after
// Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxUserRoleKey) != entity.RoleAdmin {
			response.Error[any](c, http.StatusForbidden, "admin access required", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
