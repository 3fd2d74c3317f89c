package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/keyregistry/internal/credential"
	"github.com/jmerrifield20/keyregistry/internal/identity"
	"github.com/jmerrifield20/keyregistry/internal/keys"
	"go.uber.org/zap"
)

// Machine-readable error codes returned in the "code" field.
const (
	CodeUnauthorized    = "unauthorized"
	CodeEmptyValue      = "empty_value"
	CodeEmptyName       = "empty_name"
	CodeNotFound        = "not_found"
	CodeIndexOutOfRange = "index_out_of_range"
	CodeNoSuchToken     = "no_such_token"
	CodeNoCredential    = "no_credential"
	CodeAlreadyIssued   = "already_issued"
	CodeNotOwner        = "not_owner"
	CodeZeroAddress     = "zero_address"
	CodeBadRequest      = "bad_request"
	CodeLoginFailed     = "login_failed"
	CodeRateLimited     = "rate_limited"
	CodeInternal        = "internal"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{keys.ErrUnauthorized, http.StatusForbidden, CodeUnauthorized},
	{keys.ErrEmptyValue, http.StatusBadRequest, CodeEmptyValue},
	{keys.ErrEmptyName, http.StatusBadRequest, CodeEmptyName},
	{keys.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{keys.ErrIndexOutOfRange, http.StatusNotFound, CodeIndexOutOfRange},
	{credential.ErrNoSuchToken, http.StatusNotFound, CodeNoSuchToken},
	{credential.ErrNoCredential, http.StatusNotFound, CodeNoCredential},
	{credential.ErrAlreadyIssued, http.StatusConflict, CodeAlreadyIssued},
	{credential.ErrNotOwner, http.StatusForbidden, CodeNotOwner},
	{credential.ErrNotApproved, http.StatusForbidden, CodeUnauthorized},
	{credential.ErrZeroAddress, http.StatusBadRequest, CodeZeroAddress},
	{identity.ErrNoChallenge, http.StatusUnauthorized, CodeLoginFailed},
	{identity.ErrChallengeExpired, http.StatusUnauthorized, CodeLoginFailed},
	{identity.ErrBadSignature, http.StatusUnauthorized, CodeLoginFailed},
	{identity.ErrTooManyChallenges, http.StatusTooManyRequests, CodeRateLimited},
}

// respondError writes the JSON error body for err. Unknown errors are logged
// and reported as 500 without leaking their text.
func respondError(c *gin.Context, logger *zap.Logger, op string, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{"error": m.target.Error(), "code": m.code})
			return
		}
	}
	logger.Error(op, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed", "code": CodeInternal})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": CodeBadRequest})
}

// tokenIDParam parses the :token_id path parameter, writing a 400 on failure.
func tokenIDParam(c *gin.Context) (credential.TokenID, bool) {
	id, err := credential.ParseTokenID(c.Param("token_id"))
	if err != nil {
		badRequest(c, "invalid token id")
		return credential.TokenID{}, false
	}
	return id, true
}
