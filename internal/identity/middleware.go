package identity

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const (
	ctxCallerClaims = "keyregistry_caller_claims"

	// AdminSecretHeader carries the plaintext admin secret on privileged routes.
	AdminSecretHeader = "X-Admin-Secret"
)

// RequireCaller returns a Gin middleware that enforces a valid Bearer caller
// token. On success it injects the *CallerClaims into the context.
func RequireCaller(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer token required",
				"code":  "unauthenticated",
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
				"code":  "unauthenticated",
			})
			return
		}

		c.Set(ctxCallerClaims, claims)
		c.Next()
	}
}

// ClaimsFromCtx retrieves the caller claims injected by RequireCaller.
func ClaimsFromCtx(c *gin.Context) *CallerClaims {
	v, _ := c.Get(ctxCallerClaims)
	claims, _ := v.(*CallerClaims)
	return claims
}

// CallerFromCtx returns the authenticated caller address. ok is false when
// the route is not behind RequireCaller.
func CallerFromCtx(c *gin.Context) (addr common.Address, ok bool) {
	claims := ClaimsFromCtx(c)
	if claims == nil {
		return common.Address{}, false
	}
	return claims.Caller(), true
}

// RequireAdminSecret returns a Gin middleware that compares the
// X-Admin-Secret header against a bcrypt hash. An empty hash disables the
// route entirely.
func RequireAdminSecret(hash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hash == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin operations are disabled",
				"code":  "forbidden",
			})
			return
		}
		secret := c.GetHeader(AdminSecretHeader)
		if secret == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin secret required",
				"code":  "forbidden",
			})
			return
		}
		c.Next()
	}
}
