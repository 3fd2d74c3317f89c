package identity_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jmerrifield20/keyregistry/internal/identity"
)

func TestLoadOrCreateKey_createsThenReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "signing.pem")

	first, err := identity.LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected key file on disk: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key file mode: got %o, want 600", perm)
	}

	second, err := identity.LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !first.Equal(second) {
		t.Error("reloaded key differs from generated key")
	}
}

func TestLoadOrCreateKey_rejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.pem")
	if err := os.WriteFile(path, []byte("not a key"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := identity.LoadOrCreateKey(path); err == nil {
		t.Error("expected error for malformed key file")
	}
}
