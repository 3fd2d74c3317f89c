package keys

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmerrifield20/keyregistry/internal/credential"
)

// Store holds slot histories. Implementations serialise appends per slot and
// never modify or remove a record once appended.
type Store interface {
	// Append adds value to the end of the slot's history, creating the
	// history on first use, and returns the stored record.
	Append(ctx context.Context, slot SlotKey, value string, setBy common.Address) (*Record, error)

	// Get returns the record at index. It fails with ErrNotFound when the
	// slot has no history and ErrIndexOutOfRange when index is past the end.
	Get(ctx context.Context, slot SlotKey, index int) (*Record, error)

	// Latest returns the most recently appended record, or ErrNotFound.
	Latest(ctx context.Context, slot SlotKey) (*Record, error)

	// History returns every record in append order, or ErrNotFound.
	History(ctx context.Context, slot SlotKey) ([]Record, error)

	// Len returns the history length; 0 for a slot that was never written.
	Len(ctx context.Context, slot SlotKey) (int, error)

	// Names returns the sorted names that have a history under tokenID.
	Names(ctx context.Context, tokenID credential.TokenID) ([]string, error)
}
