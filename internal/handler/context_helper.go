package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/forum-auth-api/internal/middleware"
	"github.com/noah-isme/forum-auth-api/internal/token"
)

func claimsFromContext(c *gin.Context) *token.Claims {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return nil
	}
	return claims
}
