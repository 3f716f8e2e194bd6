package auth

import (
	"errors"
	"net/http"

	"Kaupa/internal/model"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// Middleware authenticates every request on the chat REST surface and
// stashes the verified identity in the gin context.
func Middleware(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ExtractToken(c.Request)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "unauthorized",
				"message": "missing access token",
			})
			return
		}

		identity, err := tokens.VerifyToken(tokenStr)
		if err != nil {
			msg := "invalid access token"
			if errors.Is(err, ErrExpiredToken) {
				msg = "access token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "unauthorized",
				"message": msg,
			})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Middleware.
func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return model.Identity{}, false
	}
	id, ok := v.(model.Identity)
	return id, ok
}
