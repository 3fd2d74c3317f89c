package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/keyregistry/internal/credential"
	"github.com/jmerrifield20/keyregistry/internal/identity"
	"github.com/jmerrifield20/keyregistry/internal/ledger"
	"go.uber.org/zap"
)

// CredentialHandler exposes the credential authority over HTTP. Minting is
// gated by the admin secret; approvals and transfers act for the caller.
type CredentialHandler struct {
	issuer    credential.Issuer
	tokens    *identity.TokenIssuer
	adminHash string
	ledger    ledger.Ledger // nil = no audit entries
	logger    *zap.Logger
}

// NewCredentialHandler creates a CredentialHandler. An empty adminHash
// disables minting over HTTP.
func NewCredentialHandler(issuer credential.Issuer, tokens *identity.TokenIssuer, adminHash string, logger *zap.Logger) *CredentialHandler {
	return &CredentialHandler{issuer: issuer, tokens: tokens, adminHash: adminHash, logger: logger}
}

// SetLedger configures the audit ledger for credential events.
func (h *CredentialHandler) SetLedger(l ledger.Ledger) {
	h.ledger = l
}

// Register mounts the credential routes on the given router group.
func (h *CredentialHandler) Register(rg *gin.RouterGroup) {
	cr := rg.Group("/credentials")
	{
		cr.POST("", identity.RequireAdminSecret(h.adminHash), h.Mint)
		cr.GET("/:token_id", h.OwnerOf)
		cr.GET("/by-owner/:address", h.TokenOf)
		cr.POST("/:token_id/transfer", identity.RequireCaller(h.tokens), h.Transfer)
		cr.POST("/:token_id/approve", identity.RequireCaller(h.tokens), h.Approve)
		cr.POST("/operators", identity.RequireCaller(h.tokens), h.SetOperator)
	}
}

type mintRequest struct {
	To string `json:"to" binding:"required"`
}

type transferRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

type approveRequest struct {
	To string `json:"to" binding:"required"`
}

type operatorRequest struct {
	Operator string `json:"operator" binding:"required"`
	Approved bool   `json:"approved"`
}

// Mint handles POST /credentials.
func (h *CredentialHandler) Mint(c *gin.Context) {
	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	to, err := credential.ParseAddress(req.To)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	id, err := h.issuer.Mint(ctx, to)
	if err != nil {
		respondError(c, h.logger, "mint credential", err)
		return
	}
	RecordMint()

	tokenID := credential.FormatTokenID(id)
	h.logger.Info("credential minted", zap.String("token_id", tokenID), zap.String("owner", to.Hex()))
	h.audit(ctx, credentialSubject(tokenID), ledger.ActionMint, ledger.SystemActor, gin.H{"owner": to.Hex()})

	c.JSON(http.StatusCreated, gin.H{"token_id": tokenID, "owner": to.Hex()})
}

// OwnerOf handles GET /credentials/:token_id.
func (h *CredentialHandler) OwnerOf(c *gin.Context) {
	id, ok := tokenIDParam(c)
	if !ok {
		return
	}
	owner, err := h.issuer.OwnerOf(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "owner of", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token_id": credential.FormatTokenID(id), "owner": owner.Hex()})
}

// TokenOf handles GET /credentials/by-owner/:address.
func (h *CredentialHandler) TokenOf(c *gin.Context) {
	addr, err := credential.ParseAddress(c.Param("address"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	id, err := h.issuer.TokenOf(c.Request.Context(), addr)
	if err != nil {
		respondError(c, h.logger, "token of", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token_id": credential.FormatTokenID(id), "owner": addr.Hex()})
}

// Transfer handles POST /credentials/:token_id/transfer.
func (h *CredentialHandler) Transfer(c *gin.Context) {
	id, ok := tokenIDParam(c)
	if !ok {
		return
	}
	caller, _ := identity.CallerFromCtx(c)

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	from, err := credential.ParseAddress(req.From)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	to, err := credential.ParseAddress(req.To)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := h.issuer.TransferFrom(ctx, caller, from, to, id); err != nil {
		respondError(c, h.logger, "transfer credential", err)
		return
	}

	tokenID := credential.FormatTokenID(id)
	h.logger.Info("credential transferred",
		zap.String("token_id", tokenID),
		zap.String("from", from.Hex()),
		zap.String("to", to.Hex()),
		zap.String("caller", caller.Hex()),
	)
	h.audit(ctx, credentialSubject(tokenID), ledger.ActionTransfer, caller.Hex(), gin.H{"from": from.Hex(), "to": to.Hex()})

	c.JSON(http.StatusOK, gin.H{"token_id": tokenID, "owner": to.Hex()})
}

// Approve handles POST /credentials/:token_id/approve. Approving the zero
// address clears the approval.
func (h *CredentialHandler) Approve(c *gin.Context) {
	id, ok := tokenIDParam(c)
	if !ok {
		return
	}
	caller, _ := identity.CallerFromCtx(c)

	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	to, err := credential.ParseAddress(req.To)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := h.issuer.Approve(ctx, caller, to, id); err != nil {
		respondError(c, h.logger, "approve", err)
		return
	}

	tokenID := credential.FormatTokenID(id)
	h.audit(ctx, credentialSubject(tokenID), ledger.ActionApprove, caller.Hex(), gin.H{"approved": to.Hex()})
	c.JSON(http.StatusOK, gin.H{"token_id": tokenID, "approved": to.Hex()})
}

// SetOperator handles POST /credentials/operators.
func (h *CredentialHandler) SetOperator(c *gin.Context) {
	caller, _ := identity.CallerFromCtx(c)

	var req operatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	operator, err := credential.ParseAddress(req.Operator)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := h.issuer.SetApprovalForAll(ctx, caller, operator, req.Approved); err != nil {
		respondError(c, h.logger, "set operator", err)
		return
	}

	h.audit(ctx, "owner/"+caller.Hex(), ledger.ActionOperator, caller.Hex(),
		gin.H{"operator": operator.Hex(), "approved": req.Approved})
	c.JSON(http.StatusOK, gin.H{"owner": caller.Hex(), "operator": operator.Hex(), "approved": req.Approved})
}

// audit appends a credential event to the ledger in a non-fatal manner.
func (h *CredentialHandler) audit(ctx context.Context, subject, action, actor string, payload gin.H) {
	if h.ledger == nil {
		return
	}
	if _, err := h.ledger.Append(ctx, subject, action, actor, payload); err != nil {
		h.logger.Error("ledger append failed (non-fatal)",
			zap.String("subject", subject),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func credentialSubject(tokenID string) string { return "credential/" + tokenID }
