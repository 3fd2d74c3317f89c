// Package keys implements the credential-gated public-key registry.
//
// Every slot is identified by a (token id, name) pair and holds an
// append-only history of public-key strings. Only the current owner of the
// token, or an address the Credential Authority reports as approved for it,
// may append. Authorization is queried on every write and never cached, so a
// token transfer moves the write-right immediately. Reads are public.
//
// Names are matched exactly: comparison is case-sensitive and whitespace is
// significant.
package keys

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmerrifield20/keyregistry/internal/credential"
)

var (
	// ErrUnauthorized is returned when the caller neither owns nor is approved
	// for the token at call time.
	ErrUnauthorized = errors.New("caller is not approved or the owner of the corresponding credential token")
	// ErrEmptyValue is returned when the submitted key material is empty.
	ErrEmptyValue = errors.New("public key cannot be empty")
	// ErrEmptyName is returned when the slot name is empty.
	ErrEmptyName = errors.New("slot name cannot be empty")
	// ErrNotFound is returned when a slot has no history yet.
	ErrNotFound = errors.New("public key does not exist for this token ID and name")
	// ErrIndexOutOfRange is returned when an index is not below the history length.
	ErrIndexOutOfRange = errors.New("public key index out of range")
)

// SlotKey identifies one independent key history.
type SlotKey struct {
	TokenID credential.TokenID
	Name    string
}

// Slot returns the SlotKey for tokenID and name.
func Slot(tokenID credential.TokenID, name string) SlotKey {
	return SlotKey{TokenID: tokenID, Name: name}
}

// String renders the slot as "token/<id>/<name>".
func (s SlotKey) String() string {
	return fmt.Sprintf("token/%s/%s", credential.FormatTokenID(s.TokenID), s.Name)
}

// Record is one entry of a slot's history. It never changes once appended.
type Record struct {
	Index int            `json:"index"`
	Value string         `json:"public_key"`
	SetBy common.Address `json:"set_by"`
	SetAt time.Time      `json:"set_at"`
}
