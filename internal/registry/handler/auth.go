package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/keyregistry/internal/credential"
	"github.com/jmerrifield20/keyregistry/internal/identity"
	"go.uber.org/zap"
)

// AuthHandler runs the signature challenge login that exchanges proof of an
// account key for a caller token.
type AuthHandler struct {
	challenges *identity.ChallengeStore
	tokens     *identity.TokenIssuer
	logger     *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(challenges *identity.ChallengeStore, tokens *identity.TokenIssuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{challenges: challenges, tokens: tokens, logger: logger}
}

// Register mounts the auth routes on the given router group.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	{
		a.POST("/challenge", h.Challenge)
		a.POST("/token", h.Token)
	}
}

type challengeRequest struct {
	Address string `json:"address" binding:"required"`
}

type tokenRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// Challenge handles POST /auth/challenge.
func (h *AuthHandler) Challenge(c *gin.Context) {
	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	addr, err := credential.ParseAddress(req.Address)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	ch, err := h.challenges.Issue(addr)
	if err != nil {
		respondError(c, h.logger, "issue challenge", err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// Token handles POST /auth/token.
func (h *AuthHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	addr, err := credential.ParseAddress(req.Address)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.challenges.Redeem(addr, req.Signature); err != nil {
		h.logger.Info("login rejected", zap.String("address", addr.Hex()), zap.Error(err))
		respondError(c, h.logger, "login", err)
		return
	}

	token, err := h.tokens.Issue(addr)
	if err != nil {
		h.logger.Error("issue caller token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token", "code": CodeInternal})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(h.tokens.TTL().Seconds()),
	})
}
