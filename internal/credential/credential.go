// Package credential implements the credential authority that the key
// registry consults for write authorization.
//
// A credential is a non-fungible token: exactly one address owns it at a time,
// and the owner may approve another address for that token or an operator for
// all of its tokens. The registry only consumes OwnerOf and IsApprovedOrOwner;
// Mint, Approve, SetApprovalForAll and TransferFrom exist so tests and
// development deployments can drive ownership changes.
//
// Two implementations of the Authority interface are provided:
//   - MemoryAuthority: in-process, for testing and development.
//   - PostgresAuthority: durable, for production use.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrNoSuchToken is returned when a token id was never issued.
	ErrNoSuchToken = errors.New("credential token does not exist")
	// ErrNoCredential is returned by TokenOf when an address holds no credential.
	ErrNoCredential = errors.New("address holds no credential")
	// ErrAlreadyIssued is returned when minting to, or transferring to, an
	// address that already holds a credential.
	ErrAlreadyIssued = errors.New("address already holds a credential")
	// ErrNotOwner is returned when the from address of a transfer is not the owner.
	ErrNotOwner = errors.New("you are not the owner of this token")
	// ErrNotApproved is returned when the caller may not act for the token.
	ErrNotApproved = errors.New("caller is not token owner or approved")
	// ErrZeroAddress is returned when the zero address is used as a recipient.
	ErrZeroAddress = errors.New("zero address is not a valid recipient")
)

// TokenID identifies a credential token. It is a 256-bit unsigned integer,
// the same width as an ERC-721 token id.
type TokenID = uint256.Int

// NewTokenID returns the TokenID for a small integer.
func NewTokenID(n uint64) TokenID {
	return *uint256.NewInt(n)
}

// ParseTokenID parses a decimal token id. Hex ids must carry a 0x prefix.
func ParseTokenID(s string) (TokenID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TokenID{}, fmt.Errorf("parse token id: empty")
	}
	var (
		id  *uint256.Int
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		id, err = uint256.FromHex(s)
	} else {
		id, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return TokenID{}, fmt.Errorf("parse token id %q: %w", s, err)
	}
	return *id, nil
}

// FormatTokenID returns the decimal form of id.
func FormatTokenID(id TokenID) string {
	return id.Dec()
}

// ParseAddress parses a hex account address. Case is ignored.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// Authority answers ownership and approval queries for credential tokens.
type Authority interface {
	// OwnerOf returns the current owner of tokenID.
	OwnerOf(ctx context.Context, tokenID TokenID) (common.Address, error)

	// IsApprovedOrOwner reports whether addr owns tokenID, is the address
	// approved for tokenID, or is an operator approved by the owner.
	IsApprovedOrOwner(ctx context.Context, addr common.Address, tokenID TokenID) (bool, error)
}

// Issuer is the full credential lifecycle surface.
type Issuer interface {
	Authority

	// Mint issues a new credential to the given address.
	Mint(ctx context.Context, to common.Address) (TokenID, error)

	// TokenOf returns the credential currently held by addr.
	TokenOf(ctx context.Context, addr common.Address) (TokenID, error)

	// Approve lets to act for tokenID until the next transfer.
	// The zero address clears the approval.
	Approve(ctx context.Context, caller, to common.Address, tokenID TokenID) error

	// SetApprovalForAll grants or revokes operator rights over all of the
	// caller's tokens.
	SetApprovalForAll(ctx context.Context, caller, operator common.Address, approved bool) error

	// TransferFrom moves tokenID from from to to. caller must be approved or
	// the owner.
	TransferFrom(ctx context.Context, caller, from, to common.Address, tokenID TokenID) error
}
