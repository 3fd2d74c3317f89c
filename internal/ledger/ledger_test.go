package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jmerrifield20/keyregistry/internal/ledger"
)

var ctx = context.Background()

const subject = "token/1/Hospital A"

func TestNew_genesisEntry(t *testing.T) {
	l := ledger.New()

	n, err := l.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 genesis entry, got %d", n)
	}

	entry, err := l.Get(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Action != ledger.ActionGenesis {
		t.Errorf("expected action 'genesis', got %q", entry.Action)
	}
	if entry.Hash != ledger.GenesisHash {
		t.Errorf("genesis hash: got %q, want GenesisHash", entry.Hash)
	}
}

func TestAppend_chainsCorrectly(t *testing.T) {
	l := ledger.New()

	e1, err := l.Append(ctx, subject, ledger.ActionSetKey, "0xA11CE", map[string]string{"public_key": "0xabc123"})
	if err != nil {
		t.Fatal(err)
	}
	e2, err := l.Append(ctx, "token/1", ledger.ActionTransfer, "0xA11CE", nil)
	if err != nil {
		t.Fatal(err)
	}

	if e2.PrevHash != e1.Hash {
		t.Errorf("chain broken: e2.PrevHash=%q, want e1.Hash=%q", e2.PrevHash, e1.Hash)
	}
	if e1.Index != 1 || e2.Index != 2 {
		t.Errorf("indices: got %d, %d; want 1, 2", e1.Index, e2.Index)
	}

	n, _ := l.Len(ctx)
	if n != 3 { // genesis + 2
		t.Errorf("expected 3 entries, got %d", n)
	}
}

func TestAppend_hashesPayloadNotStoresIt(t *testing.T) {
	l := ledger.New()

	a, _ := l.Append(ctx, subject, ledger.ActionSetKey, "0xA11CE", map[string]string{"public_key": "0xabc123"})
	b, _ := l.Append(ctx, subject, ledger.ActionSetKey, "0xA11CE", map[string]string{"public_key": "0xdef456"})

	if a.DataHash == b.DataHash {
		t.Error("different payloads produced the same data hash")
	}
	if len(a.DataHash) != 64 {
		t.Errorf("data hash should be hex SHA-256, got %q", a.DataHash)
	}
}

func TestGet_outOfRange(t *testing.T) {
	l := ledger.New()
	if _, err := l.Get(ctx, 5); !errors.Is(err, ledger.ErrEntryNotFound) {
		t.Errorf("Get(5): got %v, want ErrEntryNotFound", err)
	}
	if _, err := l.Get(ctx, -1); !errors.Is(err, ledger.ErrEntryNotFound) {
		t.Errorf("Get(-1): got %v, want ErrEntryNotFound", err)
	}
}

func TestVerify_valid(t *testing.T) {
	l := ledger.New()
	_, _ = l.Append(ctx, subject, ledger.ActionSetKey, "0xA11CE", nil)
	_, _ = l.Append(ctx, "token/1", ledger.ActionMint, ledger.SystemActor, nil)

	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify() failed on valid chain: %v", err)
	}
}

func TestVerify_genesisOnlyChain(t *testing.T) {
	l := ledger.New()
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify() on genesis-only chain should pass: %v", err)
	}
}

func TestRoot_returnsLastHash(t *testing.T) {
	l := ledger.New()
	e, _ := l.Append(ctx, subject, ledger.ActionSetKey, "0xA11CE", nil)

	root, err := l.Root(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if root != e.Hash {
		t.Errorf("Root(): got %q, want %q", root, e.Hash)
	}
}

func TestRoot_genesisOnly(t *testing.T) {
	l := ledger.New()
	root, err := l.Root(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if root != ledger.GenesisHash {
		t.Errorf("Root() on genesis-only: got %q, want GenesisHash", root)
	}
}
