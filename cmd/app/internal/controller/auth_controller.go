package controller

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"quizcoach-backend/utilities"
)

type AuthController struct {
	log *utilities.Logger
}

func NewAuthController(log *utilities.Logger) *AuthController {
	if log == nil {
		log = utilities.L()
	}
	return &AuthController{log: log.With("controller", "auth")}
}

// Token issues tokens to a trusted front end (a chat bridge, for instance)
// for the given user id. The client key is checked against CLIENT_KEY_HASH.
func (ac *AuthController) Token(c *gin.Context) {
	var req struct {
		UserID    string `json:"user_id" binding:"required"`
		ClientKey string `json:"client_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := utilities.CheckClientKey(req.ClientKey); err != nil {
		ac.log.Warn("client key rejected", "user_id", req.UserID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client key"})
		return
	}
	access, refresh, err := utilities.GenerateTokens(strings.TrimSpace(req.UserID))
	if err != nil {
		ac.log.Error("token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": access, "refresh_token": refresh})
}

func (ac *AuthController) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	access, refresh, err := utilities.RefreshTokens(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": access, "refresh_token": refresh})
}
