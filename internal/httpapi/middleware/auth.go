package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/estate-chat/internal/auth"
	"github.com/suPer8Hu/estate-chat/internal/common"
	"github.com/suPer8Hu/estate-chat/internal/models"
)

// OptionalAuth lets anonymous callers through. A bearer token that is present
// but invalid is still rejected.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.Next()
			return
		}
		if !authenticate(c, header, secret) {
			return
		}
		c.Next()
	}
}

func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			common.Abort(c, http.StatusUnauthorized, 40101, "unauthorized")
			return
		}
		if !authenticate(c, header, secret) {
			return
		}
		c.Next()
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleKey) != models.RoleAdmin {
			common.Abort(c, http.StatusForbidden, 40301, "admin only")
			return
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, header, secret string) bool {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		common.Abort(c, http.StatusUnauthorized, 40101, "unauthorized")
		return false
	}
	uid, role, err := auth.ParseJWT(strings.TrimSpace(token), secret)
	if err != nil {
		common.Abort(c, http.StatusUnauthorized, 40102, "invalid token")
		return false
	}
	c.Set(UserIDKey, uid)
	c.Set(RoleKey, role)
	return true
}
