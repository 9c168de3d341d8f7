package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vinin2308/foodflow-cardapio/utils"
)

// AuthMiddleware requires a valid manager token, from the Authorization
// header or a token query parameter.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" && c.Query("token") != "" {
			token = "Bearer " + c.Query("token")
		}

		if token == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("authorization token missing"))
			c.Abort()
			return
		}
		if !strings.HasPrefix(token, "Bearer ") {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid token format"))
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(strings.TrimPrefix(token, "Bearer "))
		if err != nil {
			utils.RespondError(c, http.StatusUnauthorized, err)
			c.Abort()
			return
		}

		c.Set("manager_id", claims.ManagerID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// OptionalAuth decodes a token when present but lets anonymous callers
// through. Used on public paths that attribute actions to a staff member
// when one is logged in.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if strings.HasPrefix(token, "Bearer ") {
			if claims, err := utils.ValidateToken(strings.TrimPrefix(token, "Bearer ")); err == nil {
				c.Set("manager_id", claims.ManagerID)
				c.Set("role", claims.Role)
			}
		}
		c.Next()
	}
}
