package identity_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/jmerrifield20/keyregistry/internal/identity"
)

func init() { gin.SetMode(gin.TestMode) }

func callerEngine(ti *identity.TokenIssuer) *gin.Engine {
	r := gin.New()
	r.GET("/whoami", identity.RequireCaller(ti), func(c *gin.Context) {
		addr, ok := identity.CallerFromCtx(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, addr.Hex())
	})
	return r
}

func TestRequireCaller(t *testing.T) {
	ti := newTestTokenIssuer(t)
	token, err := ti.Issue(alice)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			callerEngine(ti).ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status: got %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusOK && w.Body.String() != alice.Hex() {
				t.Errorf("caller: got %q, want %q", w.Body.String(), alice.Hex())
			}
		})
	}
}

func TestCallerFromCtx_absent(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if _, ok := identity.CallerFromCtx(c); ok {
		t.Error("expected no caller on a bare context")
	}
}

func TestRequireAdminSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		hash   string
		secret string
		want   int
	}{
		{"correct", string(hash), "s3cret", http.StatusOK},
		{"wrong", string(hash), "guess", http.StatusForbidden},
		{"missing", string(hash), "", http.StatusForbidden},
		{"disabled", "", "s3cret", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/admin", identity.RequireAdminSecret(tt.hash), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodPost, "/admin", nil)
			if tt.secret != "" {
				req.Header.Set(identity.AdminSecretHeader, tt.secret)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestJWKSHandler(t *testing.T) {
	ti := newTestTokenIssuer(t)
	r := gin.New()
	r.GET("/.well-known/jwks.json", identity.JWKSHandler(ti))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}

	var set identity.JWKSet
	if err := json.Unmarshal(w.Body.Bytes(), &set); err != nil {
		t.Fatal(err)
	}
	if len(set.Keys) != 1 {
		t.Fatalf("keys: got %d, want 1", len(set.Keys))
	}
	k := set.Keys[0]
	if k.Kty != "RSA" || k.Alg != "RS256" || k.E != "AQAB" || k.N == "" {
		t.Errorf("unexpected JWK: %+v", k)
	}
}
