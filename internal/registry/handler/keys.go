package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/keyregistry/internal/credential"
	"github.com/jmerrifield20/keyregistry/internal/identity"
	"github.com/jmerrifield20/keyregistry/internal/keys"
	"go.uber.org/zap"
)

// KeyHandler exposes the key registry over HTTP. Writes require a caller
// token; reads are public.
type KeyHandler struct {
	registry *keys.Registry
	tokens   *identity.TokenIssuer
	logger   *zap.Logger
}

// NewKeyHandler creates a KeyHandler.
func NewKeyHandler(registry *keys.Registry, tokens *identity.TokenIssuer, logger *zap.Logger) *KeyHandler {
	return &KeyHandler{registry: registry, tokens: tokens, logger: logger}
}

// Register mounts the key routes on the given router group.
func (h *KeyHandler) Register(rg *gin.RouterGroup) {
	t := rg.Group("/tokens/:token_id")
	{
		t.POST("/keys", identity.RequireCaller(h.tokens), h.SetKey)
		t.GET("/keys", h.History)
		t.GET("/keys/latest", h.GetLatestKey)
		t.GET("/keys/:index", h.GetKey)
		t.GET("/names", h.Names)
	}
}

type setKeyRequest struct {
	Name      string `json:"name"`
	PublicKey string `json:"public_key"`
}

type keyResponse struct {
	TokenID string `json:"token_id"`
	Name    string `json:"name"`
	keys.Record
}

func newKeyResponse(tokenID credential.TokenID, name string, rec *keys.Record) keyResponse {
	return keyResponse{TokenID: credential.FormatTokenID(tokenID), Name: name, Record: *rec}
}

// SetKey handles POST /tokens/:token_id/keys.
func (h *KeyHandler) SetKey(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}
	caller, ok := identity.CallerFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "caller token required", "code": "unauthenticated"})
		return
	}

	var req setKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	rec, err := h.registry.SetKey(c.Request.Context(), tokenID, req.Name, req.PublicKey, caller)
	if err != nil {
		respondError(c, h.logger, "set key", err)
		return
	}
	c.JSON(http.StatusCreated, newKeyResponse(tokenID, req.Name, rec))
}

// GetKey handles GET /tokens/:token_id/keys/:index?name=.
func (h *KeyHandler) GetKey(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		badRequest(c, "index must be a non-negative integer")
		return
	}
	name := c.Query("name")

	rec, err := h.registry.GetRecord(c.Request.Context(), tokenID, name, index)
	if err != nil {
		respondError(c, h.logger, "get key", err)
		return
	}
	c.JSON(http.StatusOK, newKeyResponse(tokenID, name, rec))
}

// GetLatestKey handles GET /tokens/:token_id/keys/latest?name=.
func (h *KeyHandler) GetLatestKey(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}
	name := c.Query("name")

	rec, err := h.registry.LatestRecord(c.Request.Context(), tokenID, name)
	if err != nil {
		respondError(c, h.logger, "get latest key", err)
		return
	}
	c.JSON(http.StatusOK, newKeyResponse(tokenID, name, rec))
}

// History handles GET /tokens/:token_id/keys?name= and returns every record
// of the slot, oldest first.
func (h *KeyHandler) History(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}
	name := c.Query("name")

	history, err := h.registry.History(c.Request.Context(), tokenID, name)
	if err != nil {
		respondError(c, h.logger, "key history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token_id": credential.FormatTokenID(tokenID),
		"name":     name,
		"records":  history,
		"count":    len(history),
	})
}

// Names handles GET /tokens/:token_id/names.
func (h *KeyHandler) Names(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	names, err := h.registry.Names(c.Request.Context(), tokenID)
	if err != nil {
		respondError(c, h.logger, "list names", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"token_id": credential.FormatTokenID(tokenID),
		"names":    names,
	})
}
