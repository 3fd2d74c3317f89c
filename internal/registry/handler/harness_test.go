package handler_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/keyregistry/internal/credential"
	"github.com/jmerrifield20/keyregistry/internal/identity"
	"github.com/jmerrifield20/keyregistry/internal/keys"
	"github.com/jmerrifield20/keyregistry/internal/ledger"
	"github.com/jmerrifield20/keyregistry/internal/registry/handler"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testAdminSecret = "let-me-mint"

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000ca201")
)

var (
	fixtureOnce sync.Once
	fixtureKey  *rsa.PrivateKey
	fixtureHash []byte
)

func fixtures(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	fixtureOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		h, err := bcrypt.GenerateFromPassword([]byte(testAdminSecret), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash secret: %v", err)
		}
		fixtureKey, fixtureHash = k, h
	})
	return fixtureKey, string(fixtureHash)
}

// harness is a fully wired in-memory registry API.
type harness struct {
	router     *gin.Engine
	authority  *credential.MemoryAuthority
	tokens     *identity.TokenIssuer
	challenges *identity.ChallengeStore
	ledger     *ledger.MemoryLedger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	key, adminHash := fixtures(t)
	logger := zap.NewNop()

	h := &harness{
		router:     gin.New(),
		authority:  credential.NewMemoryAuthority(),
		tokens:     identity.NewTokenIssuer(key, "http://keys.test", time.Hour),
		challenges: identity.NewChallengeStore(time.Minute),
		ledger:     ledger.New(),
	}

	registry := keys.NewRegistry(keys.NewMemoryStore(), h.authority, logger)
	registry.SetLedger(h.ledger)
	registry.SetMetrics(handler.RecordKeyWrite)

	creds := handler.NewCredentialHandler(h.authority, h.tokens, adminHash, logger)
	creds.SetLedger(h.ledger)

	v1 := h.router.Group("/api/v1")
	handler.NewKeyHandler(registry, h.tokens, logger).Register(v1)
	creds.Register(v1)
	handler.NewAuthHandler(h.challenges, h.tokens, logger).Register(v1)
	handler.NewLedgerHandler(h.ledger, logger).Register(v1)
	return h
}

func (h *harness) mint(t *testing.T, to common.Address) credential.TokenID {
	t.Helper()
	id, err := h.authority.Mint(context.Background(), to)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return id
}

func (h *harness) bearer(t *testing.T, addr common.Address) map[string]string {
	t.Helper()
	tok, err := h.tokens.Issue(addr)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + tok}
}

func (h *harness) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status: got %d, want %d: %s", w.Code, status, w.Body.String())
	}
	if got := decode(t, w)["code"]; got != code {
		t.Errorf("code: got %v, want %q", got, code)
	}
}

