package handler_test

import (
	"net/http"
	"testing"

	"github.com/jmerrifield20/keyregistry/internal/credential"
	"github.com/jmerrifield20/keyregistry/internal/keys"
)

func keysPath(id credential.TokenID) string {
	return "/api/v1/tokens/" + credential.FormatTokenID(id) + "/keys"
}

func TestSetKey_201(t *testing.T) {
	h := newHarness(t)
	id := h.mint(t, alice)

	w := h.do(t, http.MethodPost, keysPath(id),
		map[string]string{"name": "signing", "public_key": "PK1"}, h.bearer(t, alice))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["public_key"] != "PK1" || resp["name"] != "signing" || resp["index"] != float64(0) {
		t.Errorf("unexpected body: %v", resp)
	}
	if resp["token_id"] != "1" {
		t.Errorf("token_id: got %v, want \"1\"", resp["token_id"])
	}
}

func TestSetKey_401_noToken(t *testing.T) {
	h := newHarness(t)
	id := h.mint(t, alice)

	w := h.do(t, http.MethodPost, keysPath(id),
		map[string]string{"name": "signing", "public_key": "PK1"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSetKey_403_notOwner(t *testing.T) {
	h := newHarness(t)
	id := h.mint(t, alice)

	w := h.do(t, http.MethodPost, keysPath(id),
		map[string]string{"name": "signing", "public_key": "PK1"}, h.bearer(t, bob))
	expectError(t, w, http.StatusForbidden, "unauthorized")
	if decode(t, w)["error"] != keys.ErrUnauthorized.Error() {
		t.Errorf("error text: got %v", decode(t, w)["error"])
	}
}

func TestSetKey_400_emptyValue(t *testing.T) {
	h := newHarness(t)
	id := h.mint(t, alice)

	w := h.do(t, http.MethodPost, keysPath(id),
		map[string]string{"name": "signing", "public_key": ""}, h.bearer(t, alice))
	expectError(t, w, http.StatusBadRequest, "empty_value")
}

func TestSetKey_400_emptyName(t *testing.T) {
	h := newHarness(t)
	id := h.mint(t, alice)

	w := h.do(t, http.MethodPost, keysPath(id),
		map[string]string{"name": "", "public_key": "PK1"}, h.bearer(t, alice))
	expectError(t, w, http.StatusBadRequest, "empty_name")
}

func TestSetKey_404_noSuchToken(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, keysPath(credential.NewTokenID(42)),
		map[string]string{"name": "signing", "public_key": "PK1"}, h.bearer(t, alice))
	expectError(t, w, http.StatusNotFound, "no_such_token")
}

func TestSetKey_400_badTokenID(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/v1/tokens/not-a-number/keys",
		map[string]string{"name": "signing", "public_key": "PK1"}, h.bearer(t, alice))
	expectError(t, w, http.StatusBadRequest, "bad_request")
}

func TestGetKey_indexAndLatest(t *testing.T) {
	h := newHarness(t)
	id := h.mint(t, alice)
	auth := h.bearer(t, alice)
	for _, v := range []string{"PK1", "PK2"} {
		if w := h.do(t, http.MethodPost, keysPath(id), map[string]string{"name": "signing", "public_key": v}, auth); w.Code != http.StatusCreated {
			t.Fatalf("set %s: %d", v, w.Code)
		}
	}

	w := h.do(t, http.MethodGet, keysPath(id)+"/0?name=signing", nil, nil)
	if w.Code != http.StatusOK || decode(t, w)["public_key"] != "PK1" {
		t.Errorf("index 0: %d %s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodGet, keysPath(id)+"/latest?name=signing", nil, nil)
	if w.Code != http.StatusOK || decode(t, w)["public_key"] != "PK2" {
		t.Errorf("latest: %d %s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodGet, keysPath(id)+"/2?name=signing", nil, nil)
	expectError(t, w, http.StatusNotFound, "index_out_of_range")

	w = h.do(t, http.MethodGet, keysPath(id)+"/0?name=Signing", nil, nil)
	expectError(t, w, http.StatusNotFound, "not_found")

	w = h.do(t, http.MethodGet, keysPath(id)+"/latest?name=encryption", nil, nil)
	expectError(t, w, http.StatusNotFound, "not_found")

	w = h.do(t, http.MethodGet, keysPath(id)+"/-1?name=signing", nil, nil)
	expectError(t, w, http.StatusBadRequest, "bad_request")
}

func TestHistoryAndNames(t *testing.T) {
	h := newHarness(t)
	id := h.mint(t, alice)
	auth := h.bearer(t, alice)
	h.do(t, http.MethodPost, keysPath(id), map[string]string{"name": "signing", "public_key": "PK1"}, auth)
	h.do(t, http.MethodPost, keysPath(id), map[string]string{"name": "signing", "public_key": "PK1"}, auth)
	h.do(t, http.MethodPost, keysPath(id), map[string]string{"name": "encryption", "public_key": "EK1"}, auth)

	w := h.do(t, http.MethodGet, keysPath(id)+"?name=signing", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: %d %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["count"] != float64(2) {
		t.Errorf("count: got %v, want 2", resp["count"])
	}

	w = h.do(t, http.MethodGet, "/api/v1/tokens/"+credential.FormatTokenID(id)+"/names", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("names: %d", w.Code)
	}
	names, _ := decode(t, w)["names"].([]any)
	if len(names) != 2 || names[0] != "encryption" || names[1] != "signing" {
		t.Errorf("names: got %v", names)
	}

	w = h.do(t, http.MethodGet, keysPath(id)+"?name=missing", nil, nil)
	expectError(t, w, http.StatusNotFound, "not_found")
}

func TestTransferMovesWriteRight(t *testing.T) {
	h := newHarness(t)
	id := h.mint(t, alice)

	h.do(t, http.MethodPost, keysPath(id), map[string]string{"name": "signing", "public_key": "PK1"}, h.bearer(t, alice))

	w := h.do(t, http.MethodPost, "/api/v1/credentials/"+credential.FormatTokenID(id)+"/transfer",
		map[string]string{"from": alice.Hex(), "to": bob.Hex()}, h.bearer(t, alice))
	if w.Code != http.StatusOK {
		t.Fatalf("transfer: %d %s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodPost, keysPath(id), map[string]string{"name": "signing", "public_key": "PK2"}, h.bearer(t, alice))
	expectError(t, w, http.StatusForbidden, "unauthorized")

	w = h.do(t, http.MethodPost, keysPath(id), map[string]string{"name": "signing", "public_key": "PK2"}, h.bearer(t, bob))
	if w.Code != http.StatusCreated {
		t.Fatalf("new owner write: %d %s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodGet, keysPath(id)+"/0?name=signing", nil, nil)
	if decode(t, w)["public_key"] != "PK1" {
		t.Error("history entry written by previous owner must survive transfer")
	}
}
